package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/edumarket/internal/client/credentials"
	"github.com/dmitrijs2005/edumarket/internal/client/token"
	"github.com/dmitrijs2005/edumarket/internal/common"
	"github.com/dmitrijs2005/edumarket/internal/observability"
)

// authTransport attaches the bearer token to outgoing requests.
//
// With no complete token pair the request is sent as is. An expired access
// token is refreshed first; concurrent requests that find it expired share a
// single refresh call.
type authTransport struct {
	next http.RoundTripper
	c    *HTTPClient
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	pair, err := t.c.tokens.Tokens(ctx, req.URL)
	if err != nil {
		t.c.log.Error(ctx, "read credentials", "error", err)
		pair = credentials.Pair{}
	}
	if !pair.Complete() {
		return t.next.RoundTrip(req)
	}

	access := pair.Access
	if t.c.expired(access) {
		access, err = t.c.freshAccess(ctx)
		if err != nil {
			return nil, err
		}
	}

	out := req.Clone(ctx)
	out.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+access)
	return t.next.RoundTrip(out)
}

// freshAccess returns a usable access token, refreshing it at most once for
// all callers that arrive while a refresh is in flight.
func (c *HTTPClient) freshAccess(ctx context.Context) (string, error) {
	access, shared, err := c.refresh.RunExclusive(ctx, c.refreshOnce)
	if shared {
		c.log.Debug(ctx, "joined in-flight token refresh")
	}
	return access, err
}

// refreshOnce runs inside the exclusive section.
func (c *HTTPClient) refreshOnce(ctx context.Context) (string, error) {
	// A refresh that finished just before this one started has already
	// stored a good token.
	pair, err := c.tokens.Tokens(ctx, c.base)
	if err != nil {
		return "", fmt.Errorf("%w: read credentials: %v", ErrUnavailable, err)
	}
	if pair.Access != "" && !c.expired(pair.Access) {
		return pair.Access, nil
	}
	if pair.Refresh == "" {
		return "", fmt.Errorf("%w: no refresh token", ErrUnauthorized)
	}

	fresh, err := c.Refresh(ctx, pair.Refresh)
	if err == nil && (fresh.Access == "" || fresh.Refresh == "") {
		err = fmt.Errorf("%w: incomplete refresh response", ErrUnauthorized)
	}

	switch {
	case err == nil:
	case errors.Is(err, ErrUnauthorized):
		observability.TokenRefreshes.WithLabelValues("unauthorized").Inc()
		c.log.Warn(ctx, "token refresh rejected, ending session", "error", err)
		if cerr := c.tokens.Clear(ctx); cerr != nil {
			c.log.Error(ctx, "clear credentials", "error", cerr)
		}
		c.sessionHooks().SessionExpired(ctx)
		return "", err
	default:
		observability.TokenRefreshes.WithLabelValues("unavailable").Inc()
		c.log.Warn(ctx, "token refresh failed, keeping session", "error", err)
		if !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return "", err
	}

	observability.TokenRefreshes.WithLabelValues("ok").Inc()
	if err := c.tokens.Save(ctx, credentials.Pair{Access: fresh.Access, Refresh: fresh.Refresh}); err != nil {
		c.log.Error(ctx, "store refreshed credentials", "error", err)
	}

	claims, derr := token.Decode(fresh.Access)
	if derr != nil {
		c.log.Warn(ctx, "refreshed access token is not decodable", "error", derr)
		claims = nil
	}
	c.sessionHooks().TokensRefreshed(ctx, claims)
	c.log.Info(ctx, "token refreshed")
	return fresh.Access, nil
}
