package ratelimit

import (
	"context"
	"testing"

	gocache "github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/require"
)

func TestModelBucketLimiter_ConsumeWithinCapacity(t *testing.T) {
	rdb := newTestRedis(t)
	limiter := NewModelBucketLimiter(rdb)
	limiter.defaultCapacity = 3
	limiter.defaultRefill = 0

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		decision, err := limiter.Consume(ctx, "gpt-4", "", 1)
		require.NoError(t, err)
		require.True(t, decision.Allowed)
	}

	decision, err := limiter.Consume(ctx, "gpt-4", "", 1)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
}

func TestModelBucketLimiter_OverrideAppliesPerModel(t *testing.T) {
	rdb := newTestRedis(t)
	limiter := NewModelBucketLimiter(rdb)
	limiter.defaultCapacity = 5
	limiter.defaultRefill = 0
	limiter.overrides.Set(overridesCacheKey, map[string]ModelLimitConfig{"claude-3": {Capacity: 1}}, gocache.NoExpiration)

	decision, err := limiter.Consume(context.Background(), "claude-3", "", 1)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	decision, err = limiter.Consume(context.Background(), "claude-3", "", 1)
	require.NoError(t, err)
	require.False(t, decision.Allowed, "capacity 1 must reject the second draw")
}

func TestModelBucketLimiter_ScopedByApiKey(t *testing.T) {
	rdb := newTestRedis(t)
	limiter := NewModelBucketLimiter(rdb)
	limiter.defaultCapacity = 1
	limiter.defaultRefill = 0

	ctx := context.Background()
	_, err := limiter.Consume(ctx, "gpt-4", "key-a", 1)
	require.NoError(t, err)

	decision, err := limiter.Consume(ctx, "gpt-4", "key-b", 1)
	require.NoError(t, err)
	require.True(t, decision.Allowed, "a different api key must have its own bucket for the same model")
}
