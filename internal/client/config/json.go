package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/edumarket/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations are
// timex.Duration so the file can say "30s" or give nanoseconds. Absent keys
// leave the current value alone.
type JsonConfig struct {
	APIBaseURL        *string         `json:"api_base_url"`
	Environment       *string         `json:"environment"`
	DatabasePath      *string         `json:"database_path"`
	RequestTimeout    *timex.Duration `json:"request_timeout"`
	ReadRetries       *uint64         `json:"read_retries"`
	AccessTokenTTL    *timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTL   *timex.Duration `json:"refresh_token_ttl"`
	StorageQuotaBytes *int64          `json:"storage_quota_bytes"`
	MonitorInterval   *timex.Duration `json:"monitor_interval"`
	GeocoderURL       *string         `json:"geocoder_url"`
	GeoTimeout        *timex.Duration `json:"geo_timeout"`
	DefaultCountry    *string         `json:"default_country"`
	CartHandoff       *string         `json:"cart_handoff"`
	CartSyncRate      *timex.Duration `json:"cart_sync_rate"`
	LogBackend        *string         `json:"log_backend"`
	LogLevel          *string         `json:"log_level"`
	LogFormat         *string         `json:"log_format"`
	LogFile           *string         `json:"log_file"`
	MetricsAddr       *string         `json:"metrics_addr"`
}

// parseJSON overlays cfg with the JSON file at path. An empty path loads
// nothing.
func parseJSON(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return err
	}

	setString(&cfg.APIBaseURL, jc.APIBaseURL)
	setString(&cfg.Environment, jc.Environment)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.GeocoderURL, jc.GeocoderURL)
	setString(&cfg.DefaultCountry, jc.DefaultCountry)
	setString(&cfg.CartHandoff, jc.CartHandoff)
	setString(&cfg.LogBackend, jc.LogBackend)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)
	setString(&cfg.LogFile, jc.LogFile)
	setString(&cfg.MetricsAddr, jc.MetricsAddr)

	setDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	setDuration(&cfg.AccessTokenTTL, jc.AccessTokenTTL)
	setDuration(&cfg.RefreshTokenTTL, jc.RefreshTokenTTL)
	setDuration(&cfg.MonitorInterval, jc.MonitorInterval)
	setDuration(&cfg.GeoTimeout, jc.GeoTimeout)
	setDuration(&cfg.CartSyncRate, jc.CartSyncRate)

	if jc.ReadRetries != nil {
		cfg.ReadRetries = *jc.ReadRetries
	}
	if jc.StorageQuotaBytes != nil {
		cfg.StorageQuotaBytes = *jc.StorageQuotaBytes
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
