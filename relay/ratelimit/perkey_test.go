package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/laiskygw/llm-gateway/common/metrics"
)

// rejectionCapturingRecorder wraps a NoOpRecorder to capture the
// (limitType, identifier) pair RecordRateLimitHit was called with, so tests
// can assert the rejection metric is keyed by ApiKey.Comment rather than
// the numeric ApiKey id (spec.md §4.2: "{comment}:{rpm|tpm}").
type rejectionCapturingRecorder struct {
	metrics.NoOpRecorder
	limitType  string
	identifier string
}

func (r *rejectionCapturingRecorder) RecordRateLimitHit(limitType, identifier string) {
	r.limitType = limitType
	r.identifier = identifier
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestPerKeyLimiter_CheckRPM(t *testing.T) {
	rdb := newTestRedis(t)
	limiter := NewPerKeyLimiter(rdb)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		decision, err := limiter.CheckRPM(ctx, 1, "k1", 3)
		require.NoError(t, err)
		require.True(t, decision.Allowed)
	}

	decision, err := limiter.CheckRPM(ctx, 1, "k1", 3)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, 0, decision.Remaining)
}

func TestPerKeyLimiter_CheckRPM_RejectionMetricKeyedByComment(t *testing.T) {
	rdb := newTestRedis(t)
	limiter := NewPerKeyLimiter(rdb)
	ctx := context.Background()

	recorder := &rejectionCapturingRecorder{}
	original := metrics.GlobalRecorder
	metrics.GlobalRecorder = recorder
	defer func() { metrics.GlobalRecorder = original }()

	for i := 0; i < 3; i++ {
		_, err := limiter.CheckRPM(ctx, 42, "nightly-batch-job", 3)
		require.NoError(t, err)
	}
	_, err := limiter.CheckRPM(ctx, 42, "nightly-batch-job", 3)
	require.NoError(t, err)

	require.Equal(t, "rpm", recorder.limitType)
	require.Equal(t, "nightly-batch-job", recorder.identifier, "rejection metric must be keyed by ApiKey.Comment, not the numeric key id")
}

func TestPerKeyLimiter_CheckTPM_RejectionMetricKeyedByComment(t *testing.T) {
	rdb := newTestRedis(t)
	limiter := NewPerKeyLimiter(rdb)
	ctx := context.Background()

	require.NoError(t, limiter.ConsumeTokens(ctx, 7, 1500))

	recorder := &rejectionCapturingRecorder{}
	original := metrics.GlobalRecorder
	metrics.GlobalRecorder = recorder
	defer func() { metrics.GlobalRecorder = original }()

	_, err := limiter.CheckTPM(ctx, 7, "prod-dashboard", 1000)
	require.NoError(t, err)

	require.Equal(t, "tpm", recorder.limitType)
	require.Equal(t, "prod-dashboard", recorder.identifier)
}

func TestPerKeyLimiter_RPM_IsolatedByKey(t *testing.T) {
	rdb := newTestRedis(t)
	limiter := NewPerKeyLimiter(rdb)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := limiter.CheckRPM(ctx, 1, "k1", 3)
		require.NoError(t, err)
	}

	decision, err := limiter.CheckRPM(ctx, 2, "k2", 3)
	require.NoError(t, err)
	require.True(t, decision.Allowed, "a different key id must not share key 1's window")
}

func TestPerKeyLimiter_TPM_PreflightDoesNotConsume(t *testing.T) {
	rdb := newTestRedis(t)
	limiter := NewPerKeyLimiter(rdb)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		decision, err := limiter.CheckTPM(ctx, 1, "k1", 1000)
		require.NoError(t, err)
		require.True(t, decision.Allowed)
		require.Equal(t, 1000, decision.Remaining)
	}
}

func TestPerKeyLimiter_TPM_ConsumeThenReject(t *testing.T) {
	rdb := newTestRedis(t)
	limiter := NewPerKeyLimiter(rdb)
	ctx := context.Background()

	require.NoError(t, limiter.ConsumeTokens(ctx, 1, 900))
	decision, err := limiter.CheckTPM(ctx, 1, "k1", 1000)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, 100, decision.Remaining)

	require.NoError(t, limiter.ConsumeTokens(ctx, 1, 200))
	decision, err = limiter.CheckTPM(ctx, 1, "k1", 1000)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
}

func TestPerKeyLimiter_ConsumeTokens_IgnoresNonPositive(t *testing.T) {
	rdb := newTestRedis(t)
	limiter := NewPerKeyLimiter(rdb)
	ctx := context.Background()

	require.NoError(t, limiter.ConsumeTokens(ctx, 1, 0))
	require.NoError(t, limiter.ConsumeTokens(ctx, 1, -5))

	decision, err := limiter.CheckTPM(ctx, 1, "k1", 1000)
	require.NoError(t, err)
	require.Equal(t, 1000, decision.Remaining, "unknown/negative token counts must not be charged")
}
