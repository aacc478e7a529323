package client

import (
	"context"
	"net/url"

	"github.com/dmitrijs2005/edumarket/internal/client/credentials"
	"github.com/dmitrijs2005/edumarket/internal/client/models"
	"github.com/dmitrijs2005/edumarket/internal/client/token"
)

// Client is the backend API used by the session layer.
type Client interface {
	Login(ctx context.Context, email, password string) (models.TokenPair, error)
	Register(ctx context.Context, form models.RegisterForm) error
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
	CartCount(ctx context.Context, cartID string) (int, error)
	Profile(ctx context.Context, userID string) (*models.Profile, error)
	EnsureFresh(ctx context.Context) error
}

// TokenStore is where the pipeline reads and writes credentials.
// *credentials.Jar implements it.
type TokenStore interface {
	Tokens(ctx context.Context, target *url.URL) (credentials.Pair, error)
	Save(ctx context.Context, p credentials.Pair) error
	Clear(ctx context.Context) error
}

// SessionHooks receive the outcome of background token refreshes.
type SessionHooks interface {
	// TokensRefreshed is called after a refreshed pair has been stored.
	// claims is nil when the new access token cannot be decoded.
	TokensRefreshed(ctx context.Context, claims *token.Claims)
	// SessionExpired is called once per rejected refresh, after the stored
	// tokens have been cleared.
	SessionExpired(ctx context.Context)
}

type nopHooks struct{}

func (nopHooks) TokensRefreshed(context.Context, *token.Claims) {}
func (nopHooks) SessionExpired(context.Context)                 {}
