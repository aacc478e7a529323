// Package storage is the persisted key-value store adapter behind the session
// snapshot. It never fails reads: missing keys and faults both read as nil.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/edumarket/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/edumarket/internal/logging"
	"github.com/dmitrijs2005/edumarket/internal/observability"
)

// SessionKey holds the persisted session snapshot. It survives Cleanup.
const SessionKey = "auth-store"

// cleanupThreshold is the usage ratio above which Set evicts before writing.
const cleanupThreshold = 0.80

// Usage is a quota estimate.
type Usage struct {
	Used  int64
	Quota int64
}

// Ratio is Used/Quota, or 0 when the quota is unknown.
func (u Usage) Ratio() float64 {
	if u.Quota <= 0 {
		return 0
	}
	return float64(u.Used) / float64(u.Quota)
}

// Percent is Ratio scaled to 0..100.
func (u Usage) Percent() float64 { return u.Ratio() * 100 }

type Options struct {
	// QuotaBytes is the storage budget. Zero disables quota estimates.
	QuotaBytes int64
	// Keep lists keys that Cleanup preserves. Defaults to SessionKey.
	Keep []string
}

type Store struct {
	repo  metadata.Repository
	quota int64
	keep  map[string]struct{}
	log   logging.Logger
}

func New(repo metadata.Repository, log logging.Logger, opts Options) *Store {
	if log == nil {
		log = logging.Nop()
	}
	keep := opts.Keep
	if len(keep) == 0 {
		keep = []string{SessionKey}
	}
	s := &Store{
		repo:  repo,
		quota: opts.QuotaBytes,
		keep:  make(map[string]struct{}, len(keep)),
		log:   log.With("component", "storage"),
	}
	for _, k := range keep {
		s.keep[k] = struct{}{}
	}
	return s
}

// Get returns the value stored under key, or nil.
func (s *Store) Get(ctx context.Context, key string) []byte {
	v, err := s.repo.Get(ctx, key)
	if err != nil {
		s.log.Error(ctx, "storage read failed", "key", key, "error", err)
		return nil
	}
	return v
}

// Set stores value under key. JSON values are stored compacted. Under quota
// pressure non-essential keys are evicted first; a failed write is retried
// once after eviction and finally the raw bytes are written as given.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if u, ok := s.Usage(ctx); ok && u.Ratio() > cleanupThreshold {
		s.log.Warn(ctx, "storage near quota, evicting", "percent", u.Percent())
		s.cleanup(ctx, "quota")
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, value); err != nil {
		s.log.Debug(ctx, "value is not JSON, storing raw", "key", key)
		return s.repo.SetEncoded(ctx, key, value, metadata.EncodingRaw)
	}

	err := s.repo.SetEncoded(ctx, key, compact.Bytes(), metadata.EncodingJSON)
	if err == nil {
		return nil
	}
	s.log.Warn(ctx, "storage write failed, evicting and retrying", "key", key, "error", err)
	s.cleanup(ctx, "write_retry")

	if err = s.repo.SetEncoded(ctx, key, compact.Bytes(), metadata.EncodingJSON); err == nil {
		return nil
	}
	s.log.Error(ctx, "storage retry failed, storing raw", "key", key, "error", err)
	if err = s.repo.SetEncoded(ctx, key, value, metadata.EncodingRaw); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Missing keys are ignored.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.repo.Delete(ctx, key); err != nil {
		s.log.Error(ctx, "storage remove failed", "key", key, "error", err)
		return err
	}
	return nil
}

// Cleanup deletes every key except the preserved ones.
func (s *Store) Cleanup(ctx context.Context) error {
	return s.cleanup(ctx, "explicit")
}

func (s *Store) cleanup(ctx context.Context, trigger string) error {
	observability.StorageCleanups.WithLabelValues(trigger).Inc()

	keys, err := s.repo.Keys(ctx)
	if err != nil {
		s.log.Error(ctx, "storage cleanup failed", "error", err)
		return err
	}

	removed := 0
	var firstErr error
	for _, k := range keys {
		if _, ok := s.keep[k]; ok {
			continue
		}
		if err := s.repo.Delete(ctx, k); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed++
	}
	s.log.Info(ctx, "storage cleanup", "trigger", trigger, "removed", removed)
	if firstErr != nil {
		s.log.Error(ctx, "storage cleanup incomplete", "error", firstErr)
	}
	return firstErr
}

// ClearAll empties the store including preserved keys.
func (s *Store) ClearAll(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		s.log.Error(ctx, "storage clear failed", "error", err)
		return err
	}
	s.log.Warn(ctx, "storage cleared")
	return nil
}

// Usage returns the current quota estimate. ok is false when no quota is
// configured or the store cannot be measured.
func (s *Store) Usage(ctx context.Context) (Usage, bool) {
	if s.quota <= 0 {
		return Usage{}, false
	}
	used, err := s.repo.Size(ctx)
	if err != nil {
		s.log.Warn(ctx, "storage usage unavailable", "error", err)
		return Usage{}, false
	}
	return Usage{Used: used, Quota: s.quota}, true
}
