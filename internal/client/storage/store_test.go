package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/edumarket/internal/client/repositories/metadata"
)

type entry struct {
	value []byte
	enc   metadata.Encoding
}

// memRepo is an in-memory metadata.Repository with failure injection.
type memRepo struct {
	mu   sync.Mutex
	data map[string]entry

	getErr   error
	sizeErr  error
	keysErr  error
	clearErr error
	// failSets fails the next N SetEncoded calls with encoding json.
	failJSONSets int
	sets         int
}

func newMemRepo() *memRepo { return &memRepo{data: map[string]entry{}} }

func (m *memRepo) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	e, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return e.value, nil
}

func (m *memRepo) Set(ctx context.Context, key string, value []byte) error {
	return m.SetEncoded(ctx, key, value, metadata.EncodingRaw)
}

func (m *memRepo) SetEncoded(_ context.Context, key string, value []byte, enc metadata.Encoding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if enc == metadata.EncodingJSON && m.failJSONSets > 0 {
		m.failJSONSets--
		return errors.New("quota exceeded")
	}
	m.data[key] = entry{value: append([]byte(nil), value...), enc: enc}
	return nil
}

func (m *memRepo) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memRepo) Keys(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keysErr != nil {
		return nil, m.keysErr
	}
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memRepo) List(context.Context) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte, len(m.data))
	for k, e := range m.data {
		out[k] = e.value
	}
	return out, nil
}

func (m *memRepo) Size(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sizeErr != nil {
		return 0, m.sizeErr
	}
	var n int64
	for k, e := range m.data {
		n += int64(len(k) + len(e.value))
	}
	return n, nil
}

func (m *memRepo) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearErr != nil {
		return m.clearErr
	}
	m.data = map[string]entry{}
	return nil
}

func (m *memRepo) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func (m *memRepo) encoding(key string) metadata.Encoding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key].enc
}

func TestGet_MissingAndFault(t *testing.T) {
	repo := newMemRepo()
	s := New(repo, nil, Options{})
	ctx := context.Background()

	assert.Nil(t, s.Get(ctx, "nope"))

	require.NoError(t, s.Set(ctx, "k", []byte(`{"a":1}`)))
	repo.getErr = errors.New("io")
	assert.Nil(t, s.Get(ctx, "k"), "faults read as nil")
}

func TestSet_CompactsJSON(t *testing.T) {
	repo := newMemRepo()
	s := New(repo, nil, Options{})
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "auth-store", []byte("{\n  \"version\": 1\n}")))
	assert.Equal(t, `{"version":1}`, string(s.Get(ctx, "auth-store")))
	assert.Equal(t, metadata.EncodingJSON, repo.encoding("auth-store"))
}

func TestSet_NonJSONStoredRaw(t *testing.T) {
	repo := newMemRepo()
	s := New(repo, nil, Options{})
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "cache", []byte("not json")))
	assert.Equal(t, "not json", string(s.Get(ctx, "cache")))
	assert.Equal(t, metadata.EncodingRaw, repo.encoding("cache"))
}

func TestSet_RetriesOnceAfterEviction(t *testing.T) {
	repo := newMemRepo()
	s := New(repo, nil, Options{})
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "course-cache", []byte(`[1,2,3]`)))
	repo.failJSONSets = 1

	require.NoError(t, s.Set(ctx, SessionKey, []byte(`{"v":1}`)))
	assert.False(t, repo.has("course-cache"), "eviction ran before the retry")
	assert.Equal(t, metadata.EncodingJSON, repo.encoding(SessionKey))
}

func TestSet_FallsBackToRaw(t *testing.T) {
	repo := newMemRepo()
	s := New(repo, nil, Options{})
	ctx := context.Background()
	repo.failJSONSets = 2

	require.NoError(t, s.Set(ctx, SessionKey, []byte(`{ "v": 1 }`)))
	assert.Equal(t, `{ "v": 1 }`, string(s.Get(ctx, SessionKey)), "raw bytes kept as given")
	assert.Equal(t, metadata.EncodingRaw, repo.encoding(SessionKey))
}

func TestSet_EvictsAboveEightyPercent(t *testing.T) {
	repo := newMemRepo()
	s := New(repo, nil, Options{QuotaBytes: 100})
	ctx := context.Background()

	// 5 + 76 = 81 bytes used.
	require.NoError(t, repo.SetEncoded(ctx, "cache", make([]byte, 76), metadata.EncodingRaw))
	require.NoError(t, s.Set(ctx, SessionKey, []byte(`{}`)))

	assert.False(t, repo.has("cache"))
	assert.True(t, repo.has(SessionKey))
}

func TestSet_NoEvictionAtEightyPercent(t *testing.T) {
	repo := newMemRepo()
	s := New(repo, nil, Options{QuotaBytes: 100})
	ctx := context.Background()

	// 5 + 75 = 80 bytes used: not above the threshold.
	require.NoError(t, repo.SetEncoded(ctx, "cache", make([]byte, 75), metadata.EncodingRaw))
	require.NoError(t, s.Set(ctx, "other", []byte(`1`)))

	assert.True(t, repo.has("cache"))
}

func TestCleanup_PreservesSessionKey(t *testing.T) {
	repo := newMemRepo()
	s := New(repo, nil, Options{})
	ctx := context.Background()

	for _, k := range []string{SessionKey, "a", "b", "courses"} {
		require.NoError(t, s.Set(ctx, k, []byte(`{}`)))
	}
	require.NoError(t, s.Cleanup(ctx))

	keys, _ := repo.Keys(ctx)
	assert.Equal(t, []string{SessionKey}, keys)
}

func TestCleanup_CustomKeepList(t *testing.T) {
	repo := newMemRepo()
	s := New(repo, nil, Options{Keep: []string{"x"}})
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "x", []byte(`1`)))
	require.NoError(t, s.Set(ctx, SessionKey, []byte(`1`)))
	require.NoError(t, s.Cleanup(ctx))

	keys, _ := repo.Keys(ctx)
	assert.Equal(t, []string{"x"}, keys)
}

func TestCleanup_KeysError(t *testing.T) {
	repo := newMemRepo()
	repo.keysErr = errors.New("locked")
	s := New(repo, nil, Options{})

	require.ErrorIs(t, s.Cleanup(context.Background()), repo.keysErr)
}

func TestClearAll(t *testing.T) {
	repo := newMemRepo()
	s := New(repo, nil, Options{})
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, SessionKey, []byte(`{}`)))
	require.NoError(t, s.ClearAll(ctx))
	assert.Nil(t, s.Get(ctx, SessionKey))

	repo.clearErr = errors.New("locked")
	assert.Error(t, s.ClearAll(ctx))
}

func TestUsage(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()

	_, ok := New(repo, nil, Options{}).Usage(ctx)
	assert.False(t, ok, "no quota configured")

	s := New(repo, nil, Options{QuotaBytes: 200})
	require.NoError(t, repo.SetEncoded(ctx, "k", make([]byte, 49), metadata.EncodingRaw))
	u, ok := s.Usage(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(50), u.Used)
	assert.InDelta(t, 0.25, u.Ratio(), 1e-9)
	assert.InDelta(t, 25.0, u.Percent(), 1e-9)

	repo.sizeErr = errors.New("io")
	_, ok = s.Usage(ctx)
	assert.False(t, ok)
}

func TestRemove(t *testing.T) {
	repo := newMemRepo()
	s := New(repo, nil, Options{})
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte(`1`)))
	require.NoError(t, s.Remove(ctx, "k"))
	require.NoError(t, s.Remove(ctx, "k"))
	assert.Nil(t, s.Get(ctx, "k"))
}
