// Package session holds the in-memory session state of the client and keeps
// a versioned snapshot of it in persisted storage.
//
// The state starts empty and unhydrated. Hydrate restores the snapshot and
// flips Hydrated to true exactly once; login-dependent decisions made before
// that are provisional, so callers gate on WaitHydrated.
package session

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/edumarket/internal/client/models"
	"github.com/dmitrijs2005/edumarket/internal/client/token"
	"github.com/dmitrijs2005/edumarket/internal/logging"
)

// Key is the storage key of the persisted snapshot.
const Key = "auth-store"

// Persister is the storage surface the session writes through to.
type Persister interface {
	Get(ctx context.Context, key string) []byte
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// State is a copy of the session state.
type State struct {
	Claims    *token.Claims
	Profile   *models.Profile
	CartCount int
	Hydrated  bool
	Loading   bool
}

func (s State) IsLoggedIn() bool { return s.Claims != nil }

func (s State) IsTeacher() bool { return s.Claims.IsTeacher() }

// UserID returns the logged in user's id or "".
func (s State) UserID() string {
	if s.Claims == nil {
		return ""
	}
	return s.Claims.UserID.String()
}

// Identity is the user summary derived from the claims.
type Identity struct {
	UserID   string
	Username string
}

type Store struct {
	mu    sync.RWMutex
	state State

	// writeMu orders snapshot writes so the last write carries the latest state.
	writeMu sync.Mutex
	persist Persister
	table   map[int]Migration
	log     logging.Logger

	restoreOnce sync.Once
	hydrateOnce sync.Once
	hydrated    chan struct{}

	subMu  sync.Mutex
	subs   map[int]func(State)
	nextID int
}

func New(p Persister, log logging.Logger) *Store {
	if log == nil {
		log = logging.Nop()
	}
	return &Store{
		persist:  p,
		table:    migrations,
		log:      log.With("component", "session"),
		hydrated: make(chan struct{}),
		subs:     make(map[int]func(State)),
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) IsLoggedIn() bool { return s.Snapshot().IsLoggedIn() }

func (s *Store) IsTeacher() bool { return s.Snapshot().IsTeacher() }

func (s *Store) IsHydrated() bool { return s.Snapshot().Hydrated }

// User returns the identity of the logged in user; fields are empty when
// logged out.
func (s *Store) User() Identity {
	st := s.Snapshot()
	if st.Claims == nil {
		return Identity{}
	}
	return Identity{UserID: st.Claims.UserID.String(), Username: st.Claims.Username}
}

func (s *Store) SetClaims(ctx context.Context, c *token.Claims) {
	s.update(ctx, true, func(st *State) { st.Claims = c })
}

func (s *Store) SetProfile(ctx context.Context, p *models.Profile) {
	s.update(ctx, true, func(st *State) { st.Profile = p })
}

// SetCartCount stores n; negative counts are stored as 0.
func (s *Store) SetCartCount(ctx context.Context, n int) {
	s.update(ctx, true, func(st *State) { st.CartCount = max(n, 0) })
}

// SetLoading is not persisted.
func (s *Store) SetLoading(loading bool) {
	s.update(context.Background(), false, func(st *State) { st.Loading = loading })
}

// SetHydrated(true) marks restoration complete. Hydration never reverts, so
// SetHydrated(false) is ignored.
func (s *Store) SetHydrated(hydrated bool) {
	if !hydrated {
		return
	}
	s.hydrateOnce.Do(func() {
		s.update(context.Background(), false, func(st *State) { st.Hydrated = true })
		close(s.hydrated)
	})
}

// Hydrate restores the persisted snapshot and marks the state hydrated.
// Missing or unreadable snapshots leave the state as is. Only the first
// call restores anything.
func (s *Store) Hydrate(ctx context.Context) {
	s.restoreOnce.Do(func() {
		if !s.IsHydrated() {
			s.restore(ctx)
		}
	})
	s.SetHydrated(true)
}

func (s *Store) restore(ctx context.Context) {
	raw := s.persist.Get(ctx, Key)
	if raw == nil {
		s.log.Debug(ctx, "no session snapshot")
		return
	}
	p, err := decodeSnapshot(raw, s.table)
	if err != nil {
		s.log.Warn(ctx, "discarding session snapshot", "error", err)
		return
	}

	s.mu.Lock()
	s.state.Claims = p.Claims
	s.state.Profile = p.Profile
	s.state.CartCount = p.CartCount
	st := s.state
	s.mu.Unlock()

	s.log.Info(ctx, "session restored", "logged_in", st.IsLoggedIn())
	s.notify(st)
}

// WaitHydrated blocks until the state is hydrated or ctx is done.
func (s *Store) WaitHydrated(ctx context.Context) error {
	select {
	case <-s.hydrated:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset clears the user part of the state and removes the snapshot.
func (s *Store) Reset(ctx context.Context) {
	s.writeMu.Lock()
	s.mu.Lock()
	s.state.Claims = nil
	s.state.Profile = nil
	s.state.CartCount = 0
	st := s.state
	s.mu.Unlock()

	if err := s.persist.Remove(ctx, Key); err != nil {
		s.log.Error(ctx, "remove session snapshot", "error", err)
	}
	s.writeMu.Unlock()

	s.notify(st)
}

// Subscribe registers fn to be called with the new state after each change.
// The returned function unregisters it.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) update(ctx context.Context, persist bool, fn func(*State)) {
	if persist {
		s.writeMu.Lock()
	}

	s.mu.Lock()
	fn(&s.state)
	st := s.state
	s.mu.Unlock()

	if persist {
		s.write(ctx, st)
		s.writeMu.Unlock()
	}
	s.notify(st)
}

// write persists st. Failures keep the in-memory state.
func (s *Store) write(ctx context.Context, st State) {
	b, err := encodeSnapshot(st)
	if err != nil {
		s.log.Error(ctx, "encode session snapshot", "error", err)
		return
	}
	if err := s.persist.Set(ctx, Key, b); err != nil {
		s.log.Error(ctx, "persist session snapshot", "error", err)
	}
}

func (s *Store) notify(st State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
