// Package services contains application services for the EduMarket client.
// This file defines the authentication service: login, register, logout,
// startup session validation and profile loading. It also receives the
// outcome of background token refreshes from the API client.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/edumarket/internal/client/client"
	"github.com/dmitrijs2005/edumarket/internal/client/credentials"
	"github.com/dmitrijs2005/edumarket/internal/client/models"
	"github.com/dmitrijs2005/edumarket/internal/client/session"
	"github.com/dmitrijs2005/edumarket/internal/client/token"
	"github.com/dmitrijs2005/edumarket/internal/common"
	"github.com/dmitrijs2005/edumarket/internal/logging"
)

// Notice texts shown on logout.
const (
	MsgLoggedOut      = "You have been logged out"
	MsgSessionExpired = "Your session has expired, please log in again"
	MsgBadCredentials = "Stored credentials are invalid, please log in again"
)

type Level int

const (
	LevelInfo Level = iota
	LevelError
)

// Notifier shows short toast-style notices.
type Notifier interface {
	Notify(ctx context.Context, level Level, text string)
}

// Navigator knows the current route and can move to another one.
type Navigator interface {
	CurrentRoute() string
	Navigate(route string)
}

// SessionStore is the part of the session container the service mutates.
// *session.Store implements it.
type SessionStore interface {
	Snapshot() session.State
	SetClaims(ctx context.Context, c *token.Claims)
	SetProfile(ctx context.Context, p *models.Profile)
	SetLoading(loading bool)
	Reset(ctx context.Context)
}

// CartReleaser is told when the user logs out. *cart.Resolver implements it.
type CartReleaser interface {
	Released(ctx context.Context) error
}

type Options struct {
	// Target is the API URL; credentials are read as a request to it would see them.
	Target    *url.URL
	Navigator Navigator
	Notifier  Notifier
	Cart      CartReleaser
	Now       func() time.Time
}

// AuthService drives the session lifecycle for the CLI.
type AuthService struct {
	api     client.Client
	tokens  client.TokenStore
	session SessionStore
	cart    CartReleaser
	nav     Navigator
	notify  Notifier
	target  *url.URL
	now     func() time.Time
	log     logging.Logger

	logoutMu sync.Mutex
}

var _ client.SessionHooks = (*AuthService)(nil)

// NewAuthService constructs an AuthService bound to the API client, the
// credential store and the session container.
func NewAuthService(api client.Client, tokens client.TokenStore, sess SessionStore, log logging.Logger, opts Options) *AuthService {
	if log == nil {
		log = logging.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &AuthService{
		api:     api,
		tokens:  tokens,
		session: sess,
		cart:    opts.Cart,
		nav:     opts.Navigator,
		notify:  opts.Notifier,
		target:  opts.Target,
		now:     opts.Now,
		log:     log.With("component", "auth"),
	}
}

// Login validates the form, authenticates and stores the session. Backend
// error details are returned to the caller unchanged.
func (a *AuthService) Login(ctx context.Context, form models.LoginForm) (*token.Claims, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}

	a.session.SetLoading(true)
	defer a.session.SetLoading(false)

	pair, err := a.api.Login(ctx, form.Email, form.Password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return a.setAuthUser(ctx, credentials.Pair{Access: pair.Access, Refresh: pair.Refresh})
}

// Register creates the account and logs in with the same credentials.
func (a *AuthService) Register(ctx context.Context, form models.RegisterForm) (*token.Claims, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	if err := a.api.Register(ctx, form); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	claims, err := a.Login(ctx, form.Login())
	if err != nil {
		return nil, fmt.Errorf("registered, but %w", err)
	}
	return claims, nil
}

// setAuthUser stores the pair and puts the decoded access claims into the
// session. An undecodable access token leaves the session logged out.
func (a *AuthService) setAuthUser(ctx context.Context, pair credentials.Pair) (*token.Claims, error) {
	if !pair.Complete() {
		return nil, fmt.Errorf("%w: backend returned an incomplete token pair", client.ErrUnauthorized)
	}
	if err := a.tokens.Save(ctx, pair); err != nil {
		return nil, err
	}

	claims, err := token.Decode(pair.Access)
	if err == nil && claims.UserID == "" {
		err = fmt.Errorf("%w: access token has no user_id", token.ErrDecode)
	}
	if err != nil {
		a.log.Error(ctx, "cannot decode access token", "error", err)
		a.session.SetClaims(ctx, nil)
		return nil, err
	}

	a.session.SetClaims(ctx, claims)
	a.log.Info(ctx, "user authenticated", "user_id", claims.UserID.String())
	return claims, nil
}

// Logout removes credentials and session state. Calling it on an already
// logged out session changes nothing and shows no notice.
func (a *AuthService) Logout(ctx context.Context, reason string) {
	a.logoutMu.Lock()
	defer a.logoutMu.Unlock()

	active := a.session.Snapshot().IsLoggedIn()
	if pair, err := a.tokens.Tokens(ctx, nil); err == nil && (pair.Access != "" || pair.Refresh != "") {
		active = true
	}

	if err := a.tokens.Clear(ctx); err != nil {
		a.log.Error(ctx, "failed to clear credentials", "error", err)
	}
	a.session.Reset(ctx)
	if a.cart != nil {
		if err := a.cart.Released(ctx); err != nil {
			a.log.Warn(ctx, "failed to release cart", "error", err)
		}
	}

	if !active {
		return
	}
	a.log.Info(ctx, "logged out", "reason", reason)
	if a.notify != nil {
		a.notify.Notify(ctx, LevelError, reason)
	}
}

// CheckUser validates the stored session at startup. It returns false, after
// logging out, when no usable session exists. A backend that cannot be
// reached keeps the current state.
func (a *AuthService) CheckUser(ctx context.Context) bool {
	err := a.checkUser(ctx)
	switch {
	case err == nil:
		return true
	case errors.Is(err, client.ErrUnavailable):
		a.log.Warn(ctx, "token refresh unavailable, keeping session", "error", err)
		return true
	default:
		a.log.Info(ctx, "no valid session", "error", err)
		return false
	}
}

func (a *AuthService) checkUser(ctx context.Context) error {
	pair, err := a.tokens.Tokens(ctx, a.target)
	if err != nil {
		a.Logout(ctx, MsgBadCredentials)
		return fmt.Errorf("read credentials: %w", err)
	}
	if !pair.Complete() {
		a.Logout(ctx, MsgSessionExpired)
		return common.ErrNoSession
	}

	refresh, err := token.Decode(pair.Refresh)
	if err != nil {
		a.Logout(ctx, MsgBadCredentials)
		return err
	}
	if refresh.ExpiredAt(a.now()) {
		a.Logout(ctx, MsgSessionExpired)
		return common.ErrSessionExpired
	}

	if token.IsExpired(pair.Access, a.now()) {
		err := a.api.EnsureFresh(ctx)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, client.ErrUnauthorized):
			// A rejected refresh has already logged out through SessionExpired.
			a.Logout(ctx, MsgSessionExpired)
			return fmt.Errorf("%w: %v", common.ErrSessionExpired, err)
		default:
			return err
		}
	}

	if a.session.Snapshot().Claims == nil {
		if claims, err := token.Decode(pair.Access); err == nil && claims.UserID != "" {
			a.session.SetClaims(ctx, claims)
			a.log.Debug(ctx, "restored claims from access token")
		}
	}
	return nil
}

// Startup runs CheckUser and routes the user: to the login page when there
// is no session and the current page is not public, and home when a logged
// in user is on the login page.
func (a *AuthService) Startup(ctx context.Context) bool {
	ok := a.CheckUser(ctx)
	if a.nav == nil {
		return ok
	}

	route := a.nav.CurrentRoute()
	switch {
	case !ok && !slices.Contains(common.PublicRoutes, route):
		a.nav.Navigate(common.LoginRoute)
	case ok && route == common.LoginRoute:
		a.nav.Navigate(common.HomeRoute)
	}
	return ok
}

// FetchProfile loads the profile of the logged in user into the session.
func (a *AuthService) FetchProfile(ctx context.Context) (*models.Profile, error) {
	uid := a.session.Snapshot().UserID()
	if uid == "" {
		return nil, common.ErrNoSession
	}

	p, err := a.api.Profile(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	a.session.SetProfile(ctx, p)
	return p, nil
}

// TokensRefreshed puts the claims of a refreshed access token into the session.
func (a *AuthService) TokensRefreshed(ctx context.Context, claims *token.Claims) {
	if claims == nil || claims.UserID == "" {
		a.log.Error(ctx, "refreshed access token carries no identity")
		a.session.SetClaims(ctx, nil)
		return
	}
	a.session.SetClaims(ctx, claims)
}

// SessionExpired logs out and sends the user to the login page.
func (a *AuthService) SessionExpired(ctx context.Context) {
	a.Logout(ctx, MsgSessionExpired)
	if a.nav != nil && a.nav.CurrentRoute() != common.LoginRoute {
		a.nav.Navigate(common.LoginRoute)
	}
}
