// Package geo resolves the buyer's tax country from coordinates.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/edumarket/internal/logging"
)

const (
	DefaultEndpoint = "https://nominatim.openstreetmap.org/reverse"
	DefaultTimeout  = 10 * time.Second
)

type Options struct {
	Endpoint       string
	Timeout        time.Duration
	DefaultCountry string
	HTTPClient     *http.Client
	// UserAgent is sent with every lookup; public geocoders reject anonymous clients.
	UserAgent string
}

type Locator struct {
	endpoint  string
	timeout   time.Duration
	fallback  string
	userAgent string
	http      *http.Client
	log       logging.Logger
}

type reverseResponse struct {
	Address struct {
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

func NewLocator(log logging.Logger, opts Options) *Locator {
	if log == nil {
		log = logging.Nop()
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "edumarket-cli"
	}
	return &Locator{
		endpoint:  opts.Endpoint,
		timeout:   opts.Timeout,
		fallback:  opts.DefaultCountry,
		userAgent: opts.UserAgent,
		http:      opts.HTTPClient,
		log:       log.With("component", "geo"),
	}
}

// Country returns the country name at (lat, lon), or the default country
// when the lookup fails for any reason.
func (l *Locator) Country(ctx context.Context, lat, lon float64) string {
	country, err := l.lookup(ctx, lat, lon)
	if err != nil {
		l.log.Warn(ctx, "country lookup failed, using default", "error", err, "default", l.fallback)
		return l.fallback
	}
	return country
}

func (l *Locator) lookup(ctx context.Context, lat, lon float64) (string, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", fmt.Errorf("coordinates out of range: %v,%v", lat, lon)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", l.userAgent)

	resp, err := l.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reverse geocode: status %d", resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	country := strings.TrimSpace(body.Address.Country)
	if country == "" {
		return "", fmt.Errorf("response has no country")
	}
	return country, nil
}
