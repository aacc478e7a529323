package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/dmitrijs2005/edumarket/internal/client/session"
	"github.com/dmitrijs2005/edumarket/internal/logging"
	"github.com/dmitrijs2005/edumarket/internal/observability"
)

// ErrThrottled is returned by ManualSync when called too often.
var ErrThrottled = errors.New("cart sync throttled")

// CountSource fetches the item count of a cart. *client.HTTPClient
// implements it.
type CountSource interface {
	CartCount(ctx context.Context, cartID string) (int, error)
}

// SessionState is the part of the session the syncer reads and updates.
type SessionState interface {
	Snapshot() session.State
	SetCartCount(ctx context.Context, n int)
	Subscribe(fn func(session.State)) (cancel func())
}

type Syncer struct {
	resolver *Resolver
	counts   CountSource
	sess     SessionState
	limiter  *rate.Limiter
	log      logging.Logger
}

// NewSyncer builds a syncer whose ManualSync admits one call per interval.
// A non-positive interval disables throttling.
func NewSyncer(resolver *Resolver, counts CountSource, sess SessionState, interval time.Duration, log logging.Logger) *Syncer {
	if log == nil {
		log = logging.Nop()
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Syncer{
		resolver: resolver,
		counts:   counts,
		sess:     sess,
		limiter:  rate.NewLimiter(limit, 1),
		log:      log.With("component", "cart_sync"),
	}
}

// Sync refreshes the cart count. It does nothing before hydration. When no
// cart id can be resolved the count is reset to 0; when the count cannot be
// fetched it is left unchanged. Anonymous sessions only get their id
// resolved.
func (s *Syncer) Sync(ctx context.Context) error {
	st := s.sess.Snapshot()
	if !st.Hydrated {
		return nil
	}

	id, err := s.resolver.Resolve(ctx)
	if err != nil {
		observability.CartSyncs.WithLabelValues("no_cart_id").Inc()
		s.log.Warn(ctx, "cart id unavailable, resetting count", "error", err)
		s.sess.SetCartCount(ctx, 0)
		return err
	}
	if !st.IsLoggedIn() {
		observability.CartSyncs.WithLabelValues("anonymous").Inc()
		return nil
	}

	n, err := s.counts.CartCount(ctx, id)
	if err != nil {
		observability.CartSyncs.WithLabelValues("count_failed").Inc()
		s.log.Warn(ctx, "cart count unavailable", "cart_id", id, "error", err)
		return nil
	}
	s.sess.SetCartCount(ctx, n)
	observability.CartSyncs.WithLabelValues("ok").Inc()
	return nil
}

// ManualSync is the user-triggered sync. Unlike Sync it fetches the count
// for anonymous carts too, and any failure resets the count to 0.
func (s *Syncer) ManualSync(ctx context.Context) (int, error) {
	if !s.limiter.Allow() {
		return 0, ErrThrottled
	}

	id, err := s.resolver.Resolve(ctx)
	if err == nil {
		var n int
		if n, err = s.counts.CartCount(ctx, id); err == nil {
			s.sess.SetCartCount(ctx, n)
			observability.CartSyncs.WithLabelValues("ok").Inc()
			return n, nil
		}
	}

	observability.CartSyncs.WithLabelValues("manual_failed").Inc()
	s.sess.SetCartCount(ctx, 0)
	return 0, fmt.Errorf("manual cart sync: %w", err)
}

// Watch syncs once the session is hydrated and again whenever the logged in
// user changes. It blocks until ctx is done.
func (s *Syncer) Watch(ctx context.Context) {
	type key struct {
		hydrated bool
		userID   string
	}

	trigger := make(chan key, 1)
	push := func(st session.State) {
		k := key{hydrated: st.Hydrated, userID: st.UserID()}
		select {
		case trigger <- k:
		default:
			// Replace the pending key with the newer one.
			select {
			case <-trigger:
			default:
			}
			select {
			case trigger <- k:
			default:
			}
		}
	}

	cancel := s.sess.Subscribe(push)
	defer cancel()
	push(s.sess.Snapshot())

	var last *key
	for {
		select {
		case <-ctx.Done():
			return
		case k := <-trigger:
			if last != nil && *last == k {
				continue
			}
			last = &k
			if !k.hydrated {
				continue
			}
			if err := s.Sync(ctx); err != nil {
				s.log.Debug(ctx, "cart sync failed", "error", err)
			}
		}
	}
}

// RepairResult describes what Repair did.
type RepairResult struct {
	// Removed is true when an unusable stored id was dropped.
	Removed bool
	// Regenerated is true when the count could not be fetched for the
	// existing id and a new id was derived.
	Regenerated bool
	CartID      string
	Count       int
}

// Repair drops an unusable stored cart id, resolves a usable one and
// re-fetches the count. If the count cannot be fetched for the existing id,
// the id is derived again once.
func (s *Syncer) Repair(ctx context.Context) (RepairResult, error) {
	var res RepairResult

	removed, err := s.resolver.DropInvalid(ctx)
	if err != nil {
		return res, err
	}
	res.Removed = removed

	id, err := s.resolver.Resolve(ctx)
	if err != nil {
		s.sess.SetCartCount(ctx, 0)
		return res, err
	}

	n, err := s.counts.CartCount(ctx, id)
	if err != nil {
		s.log.Warn(ctx, "cart count failed, deriving cart id again", "cart_id", id, "error", err)
		if err := s.resolver.Forget(ctx); err != nil {
			return res, err
		}
		if id, err = s.resolver.Resolve(ctx); err != nil {
			s.sess.SetCartCount(ctx, 0)
			return res, err
		}
		res.Regenerated = true
		if n, err = s.counts.CartCount(ctx, id); err != nil {
			res.CartID = id
			return res, fmt.Errorf("cart repair: %w", err)
		}
	}

	s.sess.SetCartCount(ctx, n)
	res.CartID = id
	res.Count = n
	return res, nil
}
