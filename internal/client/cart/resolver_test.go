package cart

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/edumarket/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/edumarket/internal/client/session"
	"github.com/dmitrijs2005/edumarket/internal/common"
)

// localStore is an in-memory metadata.Repository.
type localStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
}

func newLocalStore() *localStore { return &localStore{data: map[string][]byte{}} }

func (l *localStore) Get(_ context.Context, key string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.getErr != nil {
		return nil, l.getErr
	}
	return l.data[key], nil
}

func (l *localStore) Set(ctx context.Context, key string, value []byte) error {
	return l.SetEncoded(ctx, key, value, metadata.EncodingRaw)
}

func (l *localStore) SetEncoded(_ context.Context, key string, value []byte, _ metadata.Encoding) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.setErr != nil {
		return l.setErr
	}
	l.data[key] = append([]byte(nil), value...)
	return nil
}

func (l *localStore) Delete(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.data, key)
	return nil
}

func (l *localStore) Keys(context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	keys := make([]string, 0, len(l.data))
	for k := range l.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (l *localStore) List(context.Context) (map[string][]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string][]byte, len(l.data))
	for k, v := range l.data {
		out[k] = v
	}
	return out, nil
}

func (l *localStore) Size(context.Context) (int64, error) { return 0, nil }

func (l *localStore) Clear(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.data = map[string][]byte{}
	return nil
}

func (l *localStore) value(key string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return string(l.data[key])
}

type fixedUser struct {
	mu  sync.Mutex
	uid string
}

func (f *fixedUser) User() session.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return session.Identity{UserID: f.uid}
}

func (f *fixedUser) set(uid string) {
	f.mu.Lock()
	f.uid = uid
	f.mu.Unlock()
}

func digits(s string) *bytes.Reader {
	// Each byte below 16 maps to itself modulo the 4-bit mask used for 0..9.
	b := make([]byte, len(s))
	for i := range s {
		b[i] = s[i] - '0'
	}
	return bytes.NewReader(b)
}

func TestResolve_AnonymousGeneratesOnce(t *testing.T) {
	local := newLocalStore()
	r := NewResolver(local, &fixedUser{}, nil, WithRandom(digits("5555555555")))
	ctx := context.Background()

	id, err := r.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "5555555555", id)
	assert.Equal(t, id, local.value(KeyCurrent))

	again, err := r.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestResolve_AnonymousReplacesInvalid(t *testing.T) {
	local := newLocalStore()
	local.data[KeyCurrent] = []byte("undefined")
	r := NewResolver(local, &fixedUser{}, nil, WithRandom(digits("1234567890")))

	id, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1234567890", id)
}

func TestResolve_UserIsDeterministicAndMirrored(t *testing.T) {
	local := newLocalStore()
	r := NewResolver(local, &fixedUser{uid: "42"}, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id, err := r.Resolve(ctx)
		require.NoError(t, err)
		assert.Equal(t, "0000001662", id)
	}
	assert.Equal(t, "0000001662", local.value(UserKey("42")))
	assert.Equal(t, "0000001662", local.value(KeyCurrent))
}

func TestResolve_UserPrefersStoredID(t *testing.T) {
	local := newLocalStore()
	local.data[UserKey("42")] = []byte("9999999999")
	r := NewResolver(local, &fixedUser{uid: "42"}, nil)

	id, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "9999999999", id)
	assert.Equal(t, "9999999999", local.value(KeyCurrent))
}

func TestResolve_UserWriteFailureStillReturnsID(t *testing.T) {
	local := newLocalStore()
	local.setErr = errors.New("read-only")
	r := NewResolver(local, &fixedUser{uid: "1"}, nil)

	id, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0000000049", id)
}

func TestResolve_ReadFault(t *testing.T) {
	local := newLocalStore()
	local.getErr = errors.New("disk I/O error")

	_, err := NewResolver(local, &fixedUser{}, nil).Resolve(context.Background())
	require.ErrorIs(t, err, common.ErrNoCartID)

	_, err = NewResolver(local, &fixedUser{uid: "1"}, nil).Resolve(context.Background())
	require.ErrorIs(t, err, common.ErrNoCartID)
}

func TestResolve_AnonymousWriteFault(t *testing.T) {
	local := newLocalStore()
	local.setErr = errors.New("read-only")

	_, err := NewResolver(local, &fixedUser{}, nil).Resolve(context.Background())
	require.ErrorIs(t, err, common.ErrNoCartID)
}

func TestHandoffDiscard_AnonymousIDOverwritten(t *testing.T) {
	local := newLocalStore()
	user := &fixedUser{}
	r := NewResolver(local, user, nil, WithRandom(digits("3333333333")))
	ctx := context.Background()

	anon, err := r.Resolve(ctx)
	require.NoError(t, err)

	user.set("1")
	id, err := r.Resolve(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, anon, id)
	assert.Equal(t, "", local.value(KeyAnonymous))

	user.set("")
	require.NoError(t, r.Released(ctx))
	after, err := r.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, after, "the user's id stays active after logout")
}

func TestHandoffRetain_RestoresAnonymousID(t *testing.T) {
	local := newLocalStore()
	user := &fixedUser{}
	r := NewResolver(local, user, nil, WithHandoff(HandoffRetain), WithRandom(digits("3333333333")))
	ctx := context.Background()

	anon, err := r.Resolve(ctx)
	require.NoError(t, err)

	user.set("1")
	id, err := r.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0000000049", id)
	assert.Equal(t, anon, local.value(KeyAnonymous))

	// Resolving again while logged in does not overwrite the kept id.
	_, err = r.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, anon, local.value(KeyAnonymous))

	user.set("")
	require.NoError(t, r.Released(ctx))
	assert.Equal(t, "", local.value(KeyAnonymous))

	after, err := r.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, anon, after)
}

func TestHandoffRetain_NoAnonymousCart(t *testing.T) {
	local := newLocalStore()
	user := &fixedUser{uid: "1"}
	r := NewResolver(local, user, nil, WithHandoff(HandoffRetain), WithRandom(digits("7777777777")))
	ctx := context.Background()

	_, err := r.Resolve(ctx)
	require.NoError(t, err)

	user.set("")
	require.NoError(t, r.Released(ctx))

	after, err := r.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "7777777777", after, "a fresh anonymous cart is started")
}

func TestParseHandoff(t *testing.T) {
	h, err := ParseHandoff("Retain")
	require.NoError(t, err)
	assert.Equal(t, HandoffRetain, h)
	assert.Equal(t, "retain", h.String())

	h, err = ParseHandoff("")
	require.NoError(t, err)
	assert.Equal(t, HandoffDiscard, h)

	_, err = ParseHandoff("merge")
	require.Error(t, err)
}

func TestDropInvalid(t *testing.T) {
	local := newLocalStore()
	r := NewResolver(local, &fixedUser{}, nil)
	ctx := context.Background()

	removed, err := r.DropInvalid(ctx)
	require.NoError(t, err)
	assert.False(t, removed)

	local.data[KeyCurrent] = []byte("null")
	removed, err = r.DropInvalid(ctx)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, "", local.value(KeyCurrent))

	local.data[KeyCurrent] = []byte("0123456789")
	removed, err = r.DropInvalid(ctx)
	require.NoError(t, err)
	assert.False(t, removed)
}
