package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anonto42/nano-chat/backend/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// downStore fails every call, like an unreachable Redis.
type downStore struct{}

var errDown = errors.New("connection refused")

func (downStore) Get(context.Context, string) (string, error) { return "", errDown }
func (downStore) Set(context.Context, string, string, time.Duration) error { return errDown }
func (downStore) Delete(context.Context, ...string) error { return errDown }
func (downStore) Exists(context.Context, string) (bool, error) { return false, errDown }
func (downStore) Keys(context.Context, string) ([]string, error) { return nil, errDown }

func TestRememberCachesLoadedValue(t *testing.T) {
	h := newHarness(t)
	c := NewCacheCoordinator(h.store, time.Minute, testLogger())
	ctx := context.Background()

	loads := 0
	load := func(context.Context) ([]string, error) {
		loads++
		return []string{"a", "b"}, nil
	}

	v, err := Remember(ctx, c, "letters", load)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v)

	v, err = Remember(ctx, c, "letters", load)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v)
	assert.Equal(t, 1, loads)
	assert.Equal(t, time.Minute, h.redis.TTL("letters"))
}

func TestRememberDoesNotCacheErrors(t *testing.T) {
	h := newHarness(t)
	c := NewCacheCoordinator(h.store, 0, testLogger())
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := Remember(ctx, c, "k", func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, h.redis.Exists("k"))

	v, err := Remember(ctx, c, "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, DefaultCacheTTL, h.redis.TTL("k"))
}

func TestRememberReplacesUndecodableEntry(t *testing.T) {
	h := newHarness(t)
	c := NewCacheCoordinator(h.store, time.Minute, testLogger())
	require.NoError(t, h.redis.Set("n", "not json"))

	v, err := Remember(context.Background(), c, "n", func(context.Context) (int, error) { return 3, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	raw, err := h.redis.Get("n")
	require.NoError(t, err)
	assert.Equal(t, "3", raw)
}

func TestRememberFallsBackWhenStoreIsDown(t *testing.T) {
	c := NewCacheCoordinator(downStore{}, time.Minute, testLogger())
	v, err := Remember(context.Background(), c, "k", func(context.Context) (string, error) { return "fresh", nil })
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)

	// invalidation failures are swallowed
	c.Invalidate(context.Background(), "k")
	c.InvalidatePattern(context.Background(), "k:*")
}

func TestInvalidatePattern(t *testing.T) {
	h := newHarness(t)
	c := NewCacheCoordinator(h.store, time.Minute, testLogger())
	ctx := context.Background()
	for _, k := range []string{
		cache.ChannelMessagesKey(4, 1, 10),
		cache.ChannelMessagesKey(4, 2, 10),
		cache.ChannelMessagesKey(40, 1, 10),
	} {
		require.NoError(t, h.redis.Set(k, "[]"))
	}

	c.InvalidatePattern(ctx, cache.ChannelMessagesPattern(4))
	assert.False(t, h.redis.Exists(cache.ChannelMessagesKey(4, 1, 10)))
	assert.False(t, h.redis.Exists(cache.ChannelMessagesKey(4, 2, 10)))
	assert.True(t, h.redis.Exists(cache.ChannelMessagesKey(40, 1, 10)))

	c.Invalidate(ctx, cache.ChannelMessagesKey(40, 1, 10))
	assert.False(t, h.redis.Exists(cache.ChannelMessagesKey(40, 1, 10)))
}
