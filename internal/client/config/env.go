package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable the client reads.
const EnvPrefix = "EDUMARKET_"

// loadDotEnv reads .env from the working directory when present. Variables
// already set in the environment are not overridden.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	_ = godotenv.Load()
}

type lookupFunc func(key string) (string, bool)

// parseEnv overlays cfg with EDUMARKET_* variables. Durations use Go syntax
// ("30s", "24h").
func parseEnv(cfg *Config, lookup lookupFunc) error {
	strs := map[string]*string{
		"API_URL":         &cfg.APIBaseURL,
		"ENV":             &cfg.Environment,
		"DB":              &cfg.DatabasePath,
		"GEOCODER_URL":    &cfg.GeocoderURL,
		"DEFAULT_COUNTRY": &cfg.DefaultCountry,
		"CART_HANDOFF":    &cfg.CartHandoff,
		"LOG_BACKEND":     &cfg.LogBackend,
		"LOG_LEVEL":       &cfg.LogLevel,
		"LOG_FORMAT":      &cfg.LogFormat,
		"LOG_FILE":        &cfg.LogFile,
		"METRICS_ADDR":    &cfg.MetricsAddr,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"REQUEST_TIMEOUT":  &cfg.RequestTimeout,
		"ACCESS_TTL":       &cfg.AccessTokenTTL,
		"REFRESH_TTL":      &cfg.RefreshTokenTTL,
		"MONITOR_INTERVAL": &cfg.MonitorInterval,
		"GEO_TIMEOUT":      &cfg.GeoTimeout,
		"CART_SYNC_RATE":   &cfg.CartSyncRate,
	}
	for name, dst := range durations {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
	}

	if v, ok := lookup(EnvPrefix + "READ_RETRIES"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sREAD_RETRIES: %w", EnvPrefix, err)
		}
		cfg.ReadRetries = n
	}
	if v, ok := lookup(EnvPrefix + "STORAGE_QUOTA"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sSTORAGE_QUOTA: %w", EnvPrefix, err)
		}
		cfg.StorageQuotaBytes = n
	}
	return nil
}
