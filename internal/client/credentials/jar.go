// Package credentials keeps the access/refresh token pair in the local
// cookie table with distinct expirations, the way the web client keeps them
// in browser cookies.
package credentials

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/dmitrijs2005/edumarket/internal/client/repositories/cookies"
	"github.com/dmitrijs2005/edumarket/internal/dbx"
	"github.com/dmitrijs2005/edumarket/internal/logging"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

// Pair is an access/refresh token pair. Empty fields mean "absent".
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Complete reports whether both tokens are present.
func (p Pair) Complete() bool { return p.Access != "" && p.Refresh != "" }

// Options control cookie lifetimes and the secure flag.
type Options struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Secure marks stored tokens as https-only. Set in production.
	Secure bool
	Now    func() time.Time
}

// Jar reads and writes the token pair.
type Jar struct {
	db   *sql.DB
	repo cookies.Repository
	opts Options
	log  logging.Logger
}

func NewJar(db *sql.DB, log logging.Logger, opts Options) *Jar {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 24 * time.Hour
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 50 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Jar{
		db:   db,
		repo: cookies.NewSQLiteRepository(db),
		opts: opts,
		log:  log.With("component", "credentials"),
	}
}

// Tokens returns the stored pair as seen by a request to target. Expired
// cookies are absent, and secure cookies are absent for non-https targets.
// A nil target sees every unexpired cookie.
func (j *Jar) Tokens(ctx context.Context, target *url.URL) (Pair, error) {
	access, err := j.value(ctx, AccessCookie, target)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := j.value(ctx, RefreshCookie, target)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

func (j *Jar) value(ctx context.Context, name string, target *url.URL) (string, error) {
	c, err := j.repo.Get(ctx, name)
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", nil
	}
	if !j.opts.Now().Before(c.ExpiresAt) {
		j.log.Debug(ctx, "cookie expired", "name", name)
		return "", nil
	}
	if c.Secure && target != nil && target.Scheme != "https" {
		return "", nil
	}
	return c.Value, nil
}

// Save stores both tokens in one transaction.
func (j *Jar) Save(ctx context.Context, p Pair) error {
	now := j.opts.Now()
	err := dbx.WithTx(ctx, j.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := cookies.NewSQLiteRepository(tx)
		if err := repo.Put(ctx, cookies.Cookie{
			Name:      AccessCookie,
			Value:     p.Access,
			ExpiresAt: now.Add(j.opts.AccessTTL),
			Secure:    j.opts.Secure,
		}); err != nil {
			return err
		}
		return repo.Put(ctx, cookies.Cookie{
			Name:      RefreshCookie,
			Value:     p.Refresh,
			ExpiresAt: now.Add(j.opts.RefreshTTL),
			Secure:    j.opts.Secure,
		})
	})
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// Clear removes both tokens. Clearing an empty jar is not an error.
func (j *Jar) Clear(ctx context.Context) error {
	if err := j.repo.Delete(ctx, AccessCookie, RefreshCookie); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
