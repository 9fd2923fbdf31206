package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/go-redis/redis/v8"
	"github.com/jinzhu/copier"
	gocache "github.com/patrickmn/go-cache"

	"github.com/laiskygw/llm-gateway/common/config"
	"github.com/laiskygw/llm-gateway/common/metrics"
	"github.com/laiskygw/llm-gateway/model"
)

// overridesCacheKey is the single go-cache slot the read-mostly override
// map lives under; copier.Copy snapshots it under mu so readers never
// observe a partially-written map (spec.md §9 "read-mostly config with
// copy-on-write").
const overridesCacheKey = "model_rate_limit_overrides"

// ModelLimitConfig is one model's token-bucket parameters.
type ModelLimitConfig struct {
	Capacity     int     `json:"capacity"`
	RefillPerSec float64 `json:"refillPerSec"`
}

// tokenBucketScript atomically refills and debits a Redis-backed token
// bucket, so concurrent gateway processes never race on the same model's
// bucket the way a process-local counter would.
//
// KEYS[1] = bucket hash key
// ARGV[1] = capacity, ARGV[2] = refill per second, ARGV[3] = now (seconds,
// float), ARGV[4] = tokens requested
// Returns {allowed (0/1), remaining}
var tokenBucketScript = redis.NewScript(`
local bucket = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

local tokens = tonumber(redis.call("HGET", bucket, "tokens"))
local last = tonumber(redis.call("HGET", bucket, "last"))
if tokens == nil then
  tokens = capacity
  last = now
end

local elapsed = now - last
if elapsed > 0 then
  tokens = math.min(capacity, tokens + elapsed * refill)
end

local allowed = 0
if tokens >= requested then
  tokens = tokens - requested
  allowed = 1
end

redis.call("HSET", bucket, "tokens", tokens, "last", now)
redis.call("EXPIRE", bucket, 3600)

return {allowed, tokens}
`)

// ModelBucketLimiter enforces spec.md §4.3's per-model token bucket,
// independent of the per-ApiKey RPM/TPM limits in §4.2.
type ModelBucketLimiter struct {
	rdb             *redis.Client
	overrides       *gocache.Cache
	mu              sync.RWMutex
	defaultCapacity int
	defaultRefill   float64
}

// NewModelBucketLimiter builds a limiter seeded with the process defaults;
// call LoadOverrides afterward to apply any persisted per-model overrides.
func NewModelBucketLimiter(rdb *redis.Client) *ModelBucketLimiter {
	return &ModelBucketLimiter{
		rdb:             rdb,
		overrides:       gocache.New(gocache.NoExpiration, gocache.NoExpiration),
		defaultCapacity: config.DefaultRateLimit,
		defaultRefill:   config.DefaultRefillRate,
	}
}

// LoadOverrides reads the serialized per-model override map from the
// "model_rate_limit_overrides" Setting row and installs a fresh copy,
// mirroring the teacher's read-mostly config reload pattern.
func (l *ModelBucketLimiter) LoadOverrides() error {
	raw, err := model.GetSetting(overridesCacheKey)
	if err != nil {
		return errors.Wrap(err, "load model rate limit overrides setting")
	}
	if raw == "" {
		return nil
	}

	var parsed map[string]ModelLimitConfig
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return errors.Wrap(err, "decode model rate limit overrides")
	}

	snapshot := make(map[string]ModelLimitConfig, len(parsed))
	if err := copier.Copy(&snapshot, &parsed); err != nil {
		return errors.Wrap(err, "snapshot model rate limit overrides")
	}

	l.mu.Lock()
	l.overrides.Set(overridesCacheKey, snapshot, gocache.NoExpiration)
	l.mu.Unlock()
	return nil
}

// SetOverride installs (or replaces) a single model's override under a
// fresh copy-on-write snapshot of the map, so concurrent readers never see
// a torn write.
func (l *ModelBucketLimiter) SetOverride(systemName string, cfg ModelLimitConfig) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.snapshotLocked()
	next := make(map[string]ModelLimitConfig, len(current)+1)
	if err := copier.Copy(&next, &current); err != nil {
		return errors.Wrap(err, "copy current overrides")
	}
	next[systemName] = cfg
	l.overrides.Set(overridesCacheKey, next, gocache.NoExpiration)

	encoded, err := json.Marshal(next)
	if err != nil {
		return errors.Wrap(err, "marshal model rate limit overrides")
	}
	return model.PutSetting(overridesCacheKey, string(encoded))
}

func (l *ModelBucketLimiter) snapshotLocked() map[string]ModelLimitConfig {
	v, ok := l.overrides.Get(overridesCacheKey)
	if !ok {
		return nil
	}
	m, _ := v.(map[string]ModelLimitConfig)
	return m
}

func (l *ModelBucketLimiter) limitFor(systemName string) ModelLimitConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if cfg, ok := l.snapshotLocked()[systemName]; ok {
		return cfg
	}
	return ModelLimitConfig{Capacity: l.defaultCapacity, RefillPerSec: l.defaultRefill}
}

// Consume debits n tokens (default 1) from the bucket identified by
// systemName, optionally scoped to a bearer so different keys using the
// same model don't share one bucket (the override itself is per model only).
// Returns the decision with Remaining
// rounded down to an integer token count.
func (l *ModelBucketLimiter) Consume(ctx context.Context, systemName string, apiKey string, n int) (Decision, error) {
	if n <= 0 {
		n = 1
	}
	cfg := l.limitFor(systemName)

	identifier := systemName
	if apiKey != "" {
		identifier = systemName + ":" + apiKey
	}
	bucketKey := fmt.Sprintf("modelbucket:%s", identifier)

	now := float64(time.Now().UnixNano()) / 1e9
	result, err := tokenBucketScript.Run(ctx, l.rdb, []string{bucketKey},
		cfg.Capacity, cfg.RefillPerSec, now, n).Result()
	if err != nil {
		return Decision{}, errors.Wrap(err, "run token bucket script")
	}

	values, ok := result.([]any)
	if !ok || len(values) != 2 {
		return Decision{}, errors.New("unexpected token bucket script result shape")
	}
	allowed, _ := values[0].(int64)
	remainingTokens := toFloat(values[1])

	decision := Decision{Allowed: allowed == 1, Limit: cfg.Capacity, Remaining: int(remainingTokens)}
	if !decision.Allowed {
		metrics.GlobalRecorder.RecordRateLimitHit("model_bucket", identifier)
	}
	metrics.GlobalRecorder.UpdateRateLimitRemaining("model_bucket", identifier, decision.Remaining)
	return decision, nil
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case int64:
		return float64(t)
	case float64:
		return t
	case string:
		var f float64
		fmt.Sscanf(t, "%f", &f)
		return f
	default:
		return 0
	}
}
