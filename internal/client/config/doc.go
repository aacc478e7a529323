// Package config loads runtime configuration for the EduMarket CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. A .env file in the working directory and EDUMARKET_* environment
//     variables (see parseEnv).
//  3. Optional JSON file selected via -c or -config (see parseJSON).
//  4. Command-line flags (see parseFlags).
//
// Supported flags
//
//	-a string   API base URL
//	-e string   environment (development|production)
//	-d string   local database path
//	-i int      storage monitor interval (seconds)
//	-m string   metrics listen address
//
// # JSON schema
//
// Durations accept Go duration strings or integer nanoseconds:
//
//	{
//	  "api_base_url": "https://edumarket.example/api/v1/",
//	  "environment": "production",
//	  "monitor_interval": "30s",
//	  "refresh_token_ttl": "1200h",
//	  "cart_handoff": "retain"
//	}
//
// The result is validated before it is returned; production requires an
// https API URL.
package config
