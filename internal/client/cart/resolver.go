// Package cart derives and persists the cart identifier and keeps the cart
// item count of the session in sync with the backend.
package cart

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/edumarket/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/edumarket/internal/client/session"
	"github.com/dmitrijs2005/edumarket/internal/common"
	"github.com/dmitrijs2005/edumarket/internal/logging"
)

const (
	// KeyCurrent holds the active cart id.
	KeyCurrent = "cart_id"
	// KeyAnonymous holds the anonymous id set aside at login under HandoffRetain.
	KeyAnonymous = "cart_id_anonymous"

	keyUserPrefix = "cart_id_user_"
)

// UserKey is the storage key of a user's cart id.
func UserKey(userID string) string { return keyUserPrefix + userID }

// Handoff decides what happens to the anonymous cart id when a user logs in.
type Handoff int

const (
	// HandoffDiscard overwrites the anonymous id at login. Items added
	// anonymously stay under an id nothing refers to any more.
	HandoffDiscard Handoff = iota
	// HandoffRetain sets the anonymous id aside at login and makes it
	// active again when the user logs out.
	HandoffRetain
)

func (h Handoff) String() string {
	if h == HandoffRetain {
		return "retain"
	}
	return "discard"
}

// ParseHandoff accepts "discard" and "retain".
func ParseHandoff(s string) (Handoff, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "discard":
		return HandoffDiscard, nil
	case "retain":
		return HandoffRetain, nil
	}
	return HandoffDiscard, fmt.Errorf("unknown cart handoff policy %q", s)
}

// UserSource reports who is logged in. *session.Store implements it.
type UserSource interface {
	User() session.Identity
}

type Resolver struct {
	local   metadata.Repository
	users   UserSource
	handoff Handoff
	rand    io.Reader
	log     logging.Logger
}

type ResolverOption func(*Resolver)

// WithHandoff sets the login hand-off policy.
func WithHandoff(h Handoff) ResolverOption { return func(r *Resolver) { r.handoff = h } }

// WithRandom replaces the random source used for anonymous ids.
func WithRandom(rd io.Reader) ResolverOption { return func(r *Resolver) { r.rand = rd } }

func NewResolver(local metadata.Repository, users UserSource, log logging.Logger, opts ...ResolverOption) *Resolver {
	if log == nil {
		log = logging.Nop()
	}
	r := &Resolver{local: local, users: users, log: log.With("component", "cart")}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns the active cart id, creating and persisting it if needed.
// Repeated calls without a login or logout in between return the same id.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	if uid := r.users.User().UserID; uid != "" {
		return r.resolveUser(ctx, uid)
	}
	return r.resolveAnonymous(ctx)
}

func (r *Resolver) resolveUser(ctx context.Context, uid string) (string, error) {
	stored, err := r.get(ctx, UserKey(uid))
	if err != nil {
		return "", err
	}

	id := stored
	if !Valid(id) {
		id = UserCartID(uid)
		if err := r.local.Set(ctx, UserKey(uid), []byte(id)); err != nil {
			r.log.Error(ctx, "persist user cart id", "user_id", uid, "error", err)
		}
	}

	if r.handoff == HandoffRetain {
		r.setAside(ctx, id)
	}
	if err := r.local.Set(ctx, KeyCurrent, []byte(id)); err != nil {
		r.log.Error(ctx, "persist current cart id", "error", err)
	}
	return id, nil
}

// setAside keeps the anonymous id that is about to be replaced by userCart.
func (r *Resolver) setAside(ctx context.Context, userCart string) {
	cur, err := r.get(ctx, KeyCurrent)
	if err != nil || !Valid(cur) || cur == userCart {
		return
	}
	if kept, err := r.get(ctx, KeyAnonymous); err != nil || kept != "" {
		return
	}
	if err := r.local.Set(ctx, KeyAnonymous, []byte(cur)); err != nil {
		r.log.Error(ctx, "set aside anonymous cart id", "error", err)
		return
	}
	r.log.Info(ctx, "anonymous cart id set aside", "cart_id", cur)
}

func (r *Resolver) resolveAnonymous(ctx context.Context) (string, error) {
	cur, err := r.get(ctx, KeyCurrent)
	if err != nil {
		return "", err
	}
	if Valid(cur) {
		return cur, nil
	}

	id, err := RandomCartID(r.rand)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrNoCartID, err)
	}
	if err := r.local.Set(ctx, KeyCurrent, []byte(id)); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrNoCartID, err)
	}
	r.log.Debug(ctx, "new anonymous cart id", "cart_id", id)
	return id, nil
}

// Released is called after logout. Under HandoffRetain the id set aside at
// login becomes active again, or the active id is dropped so the next
// Resolve starts a new anonymous cart. Under HandoffDiscard nothing changes.
func (r *Resolver) Released(ctx context.Context) error {
	if r.handoff != HandoffRetain {
		return nil
	}
	kept, err := r.get(ctx, KeyAnonymous)
	if err != nil {
		return err
	}
	if kept == "" {
		if err := r.local.Delete(ctx, KeyCurrent); err != nil {
			return fmt.Errorf("drop user cart id: %w", err)
		}
		return nil
	}
	if err := r.local.Set(ctx, KeyCurrent, []byte(kept)); err != nil {
		return fmt.Errorf("restore anonymous cart id: %w", err)
	}
	if err := r.local.Delete(ctx, KeyAnonymous); err != nil {
		r.log.Warn(ctx, "remove set-aside cart id", "error", err)
	}
	r.log.Info(ctx, "anonymous cart id restored", "cart_id", kept)
	return nil
}

// Current returns the stored active id without creating one.
func (r *Resolver) Current(ctx context.Context) (string, error) {
	return r.get(ctx, KeyCurrent)
}

// DropInvalid removes a stored active id that is not usable and reports
// whether it did.
func (r *Resolver) DropInvalid(ctx context.Context) (bool, error) {
	raw, err := r.local.Get(ctx, KeyCurrent)
	if err != nil {
		return false, fmt.Errorf("%w: %v", common.ErrNoCartID, err)
	}
	if raw == nil || Valid(string(raw)) {
		return false, nil
	}
	if err := r.local.Delete(ctx, KeyCurrent); err != nil {
		return false, fmt.Errorf("drop invalid cart id: %w", err)
	}
	r.log.Info(ctx, "invalid cart id removed", "value", string(raw))
	return true, nil
}

// Forget removes the active id so that the next Resolve derives a new one.
func (r *Resolver) Forget(ctx context.Context) error {
	return r.local.Delete(ctx, KeyCurrent)
}

func (r *Resolver) get(ctx context.Context, key string) (string, error) {
	v, err := r.local.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrNoCartID, err)
	}
	return string(v), nil
}
