package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/llm-mail-triage/internal/core"
)

func testVerdict(digest string, ttl time.Duration) *core.CachedVerdict {
	return &core.CachedVerdict{
		Digest:     digest,
		Category:   "complaint",
		Confidence: 0.9,
		Rationale:  "angry tone",
		Status:     core.StatusConfident,
		LastSeen:   time.Now(),
		ExpiresAt:  time.Now().Add(ttl),
	}
}

func TestMemoryCache_SetGet(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache(zap.NewNop(), 0)
	defer c.Stop()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, testVerdict("abc", time.Hour)))

	got, err := c.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, core.Category("complaint"), got.Category)
	assert.Equal(t, 0.9, got.Confidence)
}

func TestMemoryCache_MissReturnsNotFound(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache(zap.NewNop(), 0)
	defer c.Stop()

	_, err := c.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCache_ExpiredEntryIsRejected(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache(zap.NewNop(), 0)
	defer c.Stop()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, testVerdict("abc", -time.Minute)))

	_, err := c.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestMemoryCache_Delete(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache(zap.NewNop(), 0)
	defer c.Stop()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, testVerdict("abc", time.Hour)))
	require.NoError(t, c.Delete(ctx, "abc"))

	_, err := c.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCache_CleanupRemovesOnlyExpired(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache(zap.NewNop(), 0)
	defer c.Stop()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, testVerdict("live", time.Hour)))
	require.NoError(t, c.Set(ctx, testVerdict("stale", -time.Minute)))

	require.NoError(t, c.Cleanup(ctx))

	_, err := c.Get(ctx, "live")
	assert.NoError(t, err)
	_, err = c.Get(ctx, "stale")
	assert.ErrorIs(t, err, ErrNotFound)
}
