package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/edumarket/internal/client/cart"
	"github.com/dmitrijs2005/edumarket/internal/flagx"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds runtime settings for the EduMarket CLI.
type Config struct {
	APIBaseURL     string
	Environment    string
	DatabasePath   string
	RequestTimeout time.Duration
	ReadRetries    uint64

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	StorageQuotaBytes int64
	MonitorInterval   time.Duration

	GeocoderURL    string
	GeoTimeout     time.Duration
	DefaultCountry string

	CartHandoff  string
	CartSyncRate time.Duration

	LogBackend string
	LogLevel   string
	LogFormat  string
	LogFile    string

	MetricsAddr string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8000/api/v1/"
	c.Environment = EnvDevelopment
	c.DatabasePath = "edumarket.db"
	c.RequestTimeout = 10 * time.Second
	c.ReadRetries = 2
	c.AccessTokenTTL = 24 * time.Hour
	c.RefreshTokenTTL = 50 * 24 * time.Hour
	c.StorageQuotaBytes = 5 << 20
	c.MonitorInterval = 30 * time.Second
	c.GeocoderURL = "https://nominatim.openstreetmap.org/reverse"
	c.GeoTimeout = 10 * time.Second
	c.DefaultCountry = "United States"
	c.CartHandoff = cart.HandoffDiscard.String()
	c.CartSyncRate = 2 * time.Second
	c.LogBackend = "slog"
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// Load builds a Config from defaults, then .env and the environment, then
// the JSON file named by -c/-config, then flags. Later sources win.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	loadDotEnv()
	if err := parseEnv(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if err := parseJSON(cfg, flagx.ConfigPath(args)); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig is Load over the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.APIBaseURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("api url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https", u.Host == "":
		errs = append(errs, fmt.Errorf("api url %q must be an absolute http(s) URL", c.APIBaseURL))
	case c.IsProduction() && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("api url must use https in production"))
	}

	switch c.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("unknown environment %q", c.Environment))
	}

	if strings.TrimSpace(c.DatabasePath) == "" {
		errs = append(errs, errors.New("database path is empty"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.StorageQuotaBytes < 0 {
		errs = append(errs, errors.New("storage quota must not be negative"))
	}
	if c.MonitorInterval <= 0 {
		errs = append(errs, errors.New("monitor interval must be positive"))
	}
	if c.GeoTimeout <= 0 {
		errs = append(errs, errors.New("geo timeout must be positive"))
	}
	if c.CartSyncRate < 0 {
		errs = append(errs, errors.New("cart sync rate must not be negative"))
	}
	if _, err := cart.ParseHandoff(c.CartHandoff); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogBackend) {
	case "slog", "zap":
	default:
		errs = append(errs, fmt.Errorf("unknown log backend %q", c.LogBackend))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether credentials must be kept secure-only.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}
