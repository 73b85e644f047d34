package statuscache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache, err := New(mr.Addr(), "", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache, mr
}

func TestCacheSetGet(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "session-1", "running", "")

	entry, err := cache.Get(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "session-1", entry.SessionID)
	assert.Equal(t, "running", entry.Status)
	assert.Empty(t, entry.ErrorMessage)
	assert.False(t, entry.UpdatedAt.IsZero())
}

func TestCacheMiss(t *testing.T) {
	cache, _ := newTestCache(t)

	_, err := cache.Get(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestCacheOverwrite(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "session-1", "running", "")
	cache.Set(ctx, "session-1", "failed", "engine unreachable")

	entry, err := cache.Get(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "failed", entry.Status)
	assert.Equal(t, "engine unreachable", entry.ErrorMessage)
}

func TestCacheEntriesExpire(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "session-1", "completed", "")
	mr.FastForward(cache.ttl + 1)

	_, err := cache.Get(ctx, "session-1")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestCacheSetSurvivesRedisDown(t *testing.T) {
	cache, mr := newTestCache(t)
	mr.Close()

	// must not panic or propagate the failure
	cache.Set(context.Background(), "session-1", "running", "")
}
