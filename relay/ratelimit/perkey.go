package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/go-redis/redis/v8"

	"github.com/laiskygw/llm-gateway/common/metrics"
)

// windowSeconds is the fixed RPM window and the rolling TPM lookback,
// both 60s per spec.md §4.2.
const windowSeconds = 60

// Decision is the pre-flight outcome for one limiter dimension.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
}

// PerKeyLimiter enforces the two per-ApiKey limits from spec.md §4.2: a
// fixed 60s-window RPM counter and a rolling 60s-window TPM sum, both
// stored in Redis so counters stay race-free across gateway processes.
type PerKeyLimiter struct {
	rdb *redis.Client
}

// NewPerKeyLimiter wraps an already-connected Redis client.
func NewPerKeyLimiter(rdb *redis.Client) *PerKeyLimiter {
	return &PerKeyLimiter{rdb: rdb}
}

// CheckRPM increments the current 60s window's counter for keyId and
// reports whether the post-increment value stays within rpmLimit. comment
// is the owning ApiKey's Comment, used only to key the rejection metric
// (spec.md §4.2: "increments a per-key-comment rejection counter keyed
// {comment}:{rpm|tpm}"); it never addresses the Redis window itself.
func (l *PerKeyLimiter) CheckRPM(ctx context.Context, keyID int, comment string, rpmLimit int) (Decision, error) {
	window := time.Now().Unix() / windowSeconds
	redisKey := fmt.Sprintf("rpm:%d:%d", keyID, window)

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, windowSeconds*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, errors.Wrap(err, "increment rpm counter")
	}

	count := int(incr.Val())
	remaining := rpmLimit - count
	if remaining < 0 {
		remaining = 0
	}

	decision := Decision{Allowed: count <= rpmLimit, Limit: rpmLimit, Remaining: remaining}
	if !decision.Allowed {
		metrics.GlobalRecorder.RecordRateLimitHit("rpm", comment)
	}
	metrics.GlobalRecorder.UpdateRateLimitRemaining("rpm", comment, remaining)
	return decision, nil
}

// CheckTPM sums the rolling 60s window of previously-consumed tokens for
// keyId without consuming anything itself (spec.md §4.2: "pre-flight does
// not consume"). comment keys the rejection metric exactly as CheckRPM's
// does.
func (l *PerKeyLimiter) CheckTPM(ctx context.Context, keyID int, comment string, tpmLimit int) (Decision, error) {
	sum, err := l.windowSum(ctx, keyID)
	if err != nil {
		return Decision{}, err
	}

	remaining := tpmLimit - sum
	if remaining < 0 {
		remaining = 0
	}
	decision := Decision{Allowed: sum < tpmLimit, Limit: tpmLimit, Remaining: remaining}
	if !decision.Allowed {
		metrics.GlobalRecorder.RecordRateLimitHit("tpm", comment)
	}
	metrics.GlobalRecorder.UpdateRateLimitRemaining("tpm", comment, remaining)
	return decision, nil
}

// ConsumeTokens appends (nowMs, tokens) to keyId's rolling window, charging
// only when tokens > 0 -- unknown/negative counts degrade to a no-op charge
// per spec.md §4.2 and §4.8's "max(0, tokens)" rule.
func (l *PerKeyLimiter) ConsumeTokens(ctx context.Context, keyID int, tokens int) error {
	if tokens <= 0 {
		return nil
	}

	redisKey := tpmKey(keyID)
	nowMs := time.Now().UnixMilli()
	member := fmt.Sprintf("%d-%d", nowMs, tokens)

	pipe := l.rdb.TxPipeline()
	pipe.ZAdd(ctx, redisKey, &redis.Z{Score: float64(nowMs), Member: member})
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%d", nowMs-windowSeconds*1000))
	pipe.Expire(ctx, redisKey, windowSeconds*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "consume tpm tokens")
	}
	return nil
}

// windowSum returns the sum of token counts recorded in keyId's rolling
// 60s window, trimming stale entries opportunistically (spec.md §4.2).
func (l *PerKeyLimiter) windowSum(ctx context.Context, keyID int) (int, error) {
	redisKey := tpmKey(keyID)
	nowMs := time.Now().UnixMilli()
	floor := nowMs - windowSeconds*1000

	if err := l.rdb.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%d", floor-1)).Err(); err != nil {
		return 0, errors.Wrap(err, "trim tpm window")
	}

	members, err := l.rdb.ZRangeByScore(ctx, redisKey, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", floor), Max: fmt.Sprintf("%d", nowMs),
	}).Result()
	if err != nil {
		return 0, errors.Wrap(err, "read tpm window")
	}

	sum := 0
	for _, m := range members {
		var ts, tokens int64
		if _, scanErr := fmt.Sscanf(m, "%d-%d", &ts, &tokens); scanErr == nil {
			sum += int(tokens)
		}
	}
	return sum, nil
}

func tpmKey(keyID int) string {
	return fmt.Sprintf("tpm:%d", keyID)
}
