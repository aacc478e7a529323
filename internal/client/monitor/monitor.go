// Package monitor runs periodic health checks of the persisted store and
// evicts or clears it under pressure. It never blocks the caller's flow:
// checks run on their own goroutine.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/edumarket/internal/client/storage"
	"github.com/dmitrijs2005/edumarket/internal/logging"
	"github.com/dmitrijs2005/edumarket/internal/observability"
)

const (
	// HealthKey is the throwaway key of the write/read/delete probe.
	HealthKey = "__health_check__"

	DefaultInterval = 30 * time.Second

	cleanupAbove = 0.90
	clearAbove   = 0.95
)

var errProbeMismatch = errors.New("health probe read back nothing")

// Store is the persisted store under watch. *storage.Store implements it.
type Store interface {
	Get(ctx context.Context, key string) []byte
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Cleanup(ctx context.Context) error
	ClearAll(ctx context.Context) error
	Usage(ctx context.Context) (storage.Usage, bool)
}

// ConfirmFunc asks the user a yes/no question.
type ConfirmFunc func(ctx context.Context, question string) bool

// ReloadFunc restarts the session layer after the store was cleared.
type ReloadFunc func(ctx context.Context)

type Options struct {
	Interval time.Duration
	Confirm  ConfirmFunc
	Reload   ReloadFunc
	// CheckTimeout bounds a single pass. Defaults to 5s.
	CheckTimeout time.Duration
	Now          func() time.Time
}

type Monitor struct {
	store        Store
	interval     time.Duration
	checkTimeout time.Duration
	confirm      ConfirmFunc
	reload       ReloadFunc
	now          func() time.Time
	log          logging.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(store Store, log logging.Logger, opts Options) *Monitor {
	if log == nil {
		log = logging.Nop()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 5 * time.Second
	}
	if opts.Confirm == nil {
		opts.Confirm = func(context.Context, string) bool { return false }
	}
	if opts.Reload == nil {
		opts.Reload = func(context.Context) {}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Monitor{
		store:        store,
		interval:     opts.Interval,
		checkTimeout: opts.CheckTimeout,
		confirm:      opts.Confirm,
		reload:       opts.Reload,
		now:          opts.Now,
		log:          log.With("component", "storage_monitor"),
	}
}

// Start begins periodic checks. Calling Start on a running monitor does
// nothing.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx, m.done)
	m.log.Info(ctx, "storage monitor started", "interval", m.interval.String())
}

// Stop halts periodic checks and waits for a running pass to finish. It is
// safe to call more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.log.Info(context.Background(), "storage monitor stopped")
}

// Running reports whether periodic checks are active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cctx, cancel := context.WithTimeout(ctx, m.checkTimeout)
			if err := m.Check(cctx); err != nil {
				m.log.Warn(cctx, "storage health check failed", "error", err)
			}
			cancel()
		case <-ctx.Done():
			return
		}
	}
}

// Check runs one pass: evict above 90% usage, then probe the store with a
// write/read/delete round trip. A failed pass triggers recovery and its
// error is returned.
func (m *Monitor) Check(ctx context.Context) error {
	err := m.check(ctx)
	if err == nil {
		observability.StorageHealthChecks.WithLabelValues("ok").Inc()
		return nil
	}

	observability.StorageHealthChecks.WithLabelValues("failed").Inc()
	m.recover(ctx)
	return err
}

func (m *Monitor) check(ctx context.Context) error {
	if u, ok := m.measure(ctx); ok {
		m.log.Debug(ctx, "storage usage", "used", u.Used, "quota", u.Quota, "percent", u.Percent())
		if u.Ratio() > cleanupAbove {
			m.log.Warn(ctx, "storage almost full, cleaning up", "percent", u.Percent())
			if err := m.store.Cleanup(ctx); err != nil {
				return fmt.Errorf("cleanup: %w", err)
			}
			if u, ok := m.measure(ctx); ok {
				m.log.Info(ctx, "storage usage after cleanup", "percent", u.Percent())
			}
		}
	}
	return m.probe(ctx)
}

func (m *Monitor) probe(ctx context.Context) error {
	value := []byte(`{"timestamp":` + strconv.FormatInt(m.now().UnixMilli(), 10) + `}`)

	if err := m.store.Set(ctx, HealthKey, value); err != nil {
		return fmt.Errorf("probe write: %w", err)
	}
	if got := m.store.Get(ctx, HealthKey); got == nil {
		return errProbeMismatch
	}
	if err := m.store.Remove(ctx, HealthKey); err != nil {
		return fmt.Errorf("probe delete: %w", err)
	}
	return nil
}

func (m *Monitor) recover(ctx context.Context) {
	m.log.Warn(ctx, "attempting storage recovery")
	if err := m.store.Cleanup(ctx); err != nil {
		m.log.Error(ctx, "recovery cleanup failed", "error", err)
	}

	u, ok := m.measure(ctx)
	if !ok || u.Ratio() <= clearAbove {
		return
	}

	question := fmt.Sprintf("Local storage is %.0f%% full and must be cleared. Clear it and reload the session?", u.Percent())
	if !m.confirm(ctx, question) {
		m.log.Warn(ctx, "storage clear declined", "percent", u.Percent())
		return
	}
	if err := m.store.ClearAll(ctx); err != nil {
		m.log.Error(ctx, "storage clear failed", "error", err)
		return
	}
	m.reload(ctx)
}

// Info returns the current usage estimate; zero when no quota is known.
func (m *Monitor) Info(ctx context.Context) storage.Usage {
	u, _ := m.measure(ctx)
	return u
}

func (m *Monitor) measure(ctx context.Context) (storage.Usage, bool) {
	u, ok := m.store.Usage(ctx)
	if ok {
		observability.StorageUsageRatio.Set(u.Ratio())
	}
	return u, ok
}
