package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/edumarket/internal/client/credentials"
	"github.com/dmitrijs2005/edumarket/internal/client/models"
	"github.com/dmitrijs2005/edumarket/internal/client/token"
	"github.com/dmitrijs2005/edumarket/internal/common"
	"github.com/dmitrijs2005/edumarket/internal/logging"
	"github.com/dmitrijs2005/edumarket/internal/observability"
	"github.com/dmitrijs2005/edumarket/internal/syncx"
)

const (
	pathLogin     = "user/token/"
	pathRefresh   = "user/token/refresh/"
	pathRegister  = "user/register/"
	pathCartCount = "cart/cart-count/%s/"
	pathProfile   = "user/profile/%s/"
)

// Options configure an HTTPClient.
type Options struct {
	BaseURL string
	// Timeout bounds every network call. Defaults to 10s.
	Timeout time.Duration
	// ReadRetries is how many times a failed GET is retried on ErrUnavailable.
	ReadRetries uint64
	// RetryBase is the first backoff delay. Defaults to 200ms.
	RetryBase time.Duration
	// Transport is the underlying round tripper. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
	Now       func() time.Time
	Logger    logging.Logger
}

// HTTPClient talks to the REST backend. Requests that need authentication
// go through authTransport, which attaches and refreshes the bearer token.
type HTTPClient struct {
	base    *url.URL
	plain   *http.Client
	authed  *http.Client
	tokens  TokenStore
	refresh syncx.Coordinator[string]

	retries   uint64
	retryBase time.Duration
	now       func() time.Time
	log       logging.Logger

	hooksMu sync.RWMutex
	hooks   SessionHooks
}

func New(tokens TokenStore, opts Options) (*HTTPClient, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 200 * time.Millisecond
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	c := &HTTPClient{
		base:      base,
		tokens:    tokens,
		retries:   opts.ReadRetries,
		retryBase: opts.RetryBase,
		now:       opts.Now,
		log:       opts.Logger.With("component", "api"),
		hooks:     nopHooks{},
	}
	c.plain = &http.Client{Timeout: opts.Timeout, Transport: opts.Transport}
	c.authed = &http.Client{Timeout: opts.Timeout, Transport: &authTransport{next: opts.Transport, c: c}}
	return c, nil
}

// SetHooks installs the session callbacks. A nil h removes them.
func (c *HTTPClient) SetHooks(h SessionHooks) {
	if h == nil {
		h = nopHooks{}
	}
	c.hooksMu.Lock()
	c.hooks = h
	c.hooksMu.Unlock()
}

func (c *HTTPClient) sessionHooks() SessionHooks {
	c.hooksMu.RLock()
	defer c.hooksMu.RUnlock()
	return c.hooks
}

// BaseURL returns the normalised API root.
func (c *HTTPClient) BaseURL() *url.URL {
	u := *c.base
	return &u
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (models.TokenPair, error) {
	var pair models.TokenPair
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, c.plain, http.MethodPost, pathLogin, body, &pair); err != nil {
		return models.TokenPair{}, err
	}
	return pair, nil
}

func (c *HTTPClient) Register(ctx context.Context, form models.RegisterForm) error {
	return c.do(ctx, c.plain, http.MethodPost, pathRegister, form, nil)
}

// Refresh exchanges a refresh token for a new pair. It never goes through
// the auth transport.
func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	var pair models.TokenPair
	body := map[string]string{"refresh": refreshToken}
	if err := c.do(ctx, c.plain, http.MethodPost, pathRefresh, body, &pair); err != nil {
		return models.TokenPair{}, err
	}
	return pair, nil
}

func (c *HTTPClient) CartCount(ctx context.Context, cartID string) (int, error) {
	var out models.CartCount
	if err := c.do(ctx, c.plain, http.MethodGet, fmt.Sprintf(pathCartCount, url.PathEscape(cartID)), nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *HTTPClient) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	if err := c.do(ctx, c.authed, http.MethodGet, fmt.Sprintf(pathProfile, url.PathEscape(userID)), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// EnsureFresh refreshes the access token if it has expired, without sending
// any other request. It fails with ErrUnauthorized when no complete pair is
// stored or the refresh is rejected, and with ErrUnavailable when the
// backend cannot be reached.
func (c *HTTPClient) EnsureFresh(ctx context.Context) error {
	pair, err := c.tokens.Tokens(ctx, c.base)
	if err != nil {
		return fmt.Errorf("%w: read credentials: %v", ErrUnavailable, err)
	}
	if !pair.Complete() {
		return fmt.Errorf("%w: no stored credentials", ErrUnauthorized)
	}
	if !c.expired(pair.Access) {
		return nil
	}
	_, err = c.freshAccess(ctx)
	return err
}

// do sends one API call. GETs are retried on ErrUnavailable; other methods
// are sent once.
func (c *HTTPClient) do(ctx context.Context, hc *http.Client, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}

	ctx = logging.WithRequestID(ctx, uuid.NewString())
	attempt := func(ctx context.Context) error {
		return c.send(ctx, hc, method, path, payload, out)
	}

	if method != http.MethodGet || c.retries == 0 {
		return attempt(ctx)
	}

	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(c.retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := attempt(ctx)
		if errors.Is(err, ErrUnavailable) {
			c.log.Warn(ctx, "retrying read", "path", path, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *HTTPClient) send(ctx context.Context, hc *http.Client, method, path string, payload []byte, out any) error {
	u := c.base.ResolveReference(&url.URL{Path: path})

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(common.RequestIDHeaderName, logging.RequestIDFromContext(ctx))

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		observability.APIRequestDuration.WithLabelValues(method, "error").Observe(time.Since(start).Seconds())
		c.log.Warn(ctx, "request failed", "method", method, "path", path, "error", err)
		return mapTransportError(err)
	}
	defer resp.Body.Close()
	observability.APIRequestDuration.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := mapError(resp)
		c.log.Debug(ctx, "request rejected", "method", method, "path", path, "status", resp.StatusCode, "error", err)
		return err
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) expired(access string) bool {
	return token.IsExpired(access, c.now())
}

var _ TokenStore = (*credentials.Jar)(nil)
