package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValkey struct {
	data map[string][]byte
	ttls map[string]time.Duration
	err  error
}

func newFakeValkey() *fakeValkey {
	return &fakeValkey{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeValkey) Get(_ context.Context, key string) ([]byte, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeValkey) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func TestKey(t *testing.T) {
	a := Key("sentiment", "I love this")
	assert.Equal(t, a, Key("sentiment", "I love this"))
	assert.NotEqual(t, a, Key("spectrum", "I love this"))
	assert.NotEqual(t, a, Key("sentiment", "I love that"))
	assert.Len(t, a, len("sentiment:")+64)
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10 * time.Millisecond)
	require.NoError(t, c.Set(ctx, "k", []byte("v")))

	assert.Eventually(t, func() bool {
		_, ok, _ := c.Get(ctx, "k")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestValkeyCache_PrefixesAndTTL(t *testing.T) {
	ctx := context.Background()
	store := newFakeValkey()
	c := NewValkeyCache(store, time.Hour)

	require.NoError(t, c.Set(ctx, "k", []byte("v")))

	assert.Equal(t, []byte("v"), store.data[valkeyPrefix+"k"])
	assert.Equal(t, time.Hour, store.ttls[valkeyPrefix+"k"])
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestLayered_BackfillsLocal(t *testing.T) {
	ctx := context.Background()
	local := NewMemoryCache(time.Minute)
	store := newFakeValkey()
	remote := NewValkeyCache(store, time.Hour)
	require.NoError(t, remote.Set(ctx, "k", []byte("shared")))

	l := NewLayered(local, remote)
	v, ok, err := l.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("shared"), v)

	v, ok, _ = local.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, []byte("shared"), v)
}

func TestLayered_RemoteFailureIsMiss(t *testing.T) {
	ctx := context.Background()
	store := newFakeValkey()
	store.err = errors.New("connection refused")
	l := NewLayered(NewMemoryCache(time.Minute), NewValkeyCache(store, time.Hour))

	_, ok, err := l.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, l.Set(ctx, "k", []byte("v")))
	v, ok, _ := l.Get(ctx, "k")
	assert.True(t, ok, "local copy still written")
	assert.Equal(t, []byte("v"), v)
}
