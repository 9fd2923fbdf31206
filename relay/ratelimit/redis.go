// Package ratelimit implements the per-key RPM/TPM limiter (spec.md §4.2)
// and the per-model token-bucket limiter (spec.md §4.3). Both are backed by
// Redis, grounded on the teacher's atomic-update idioms in model/cost.go
// (update-first, create-on-miss) adapted here to INCR/ZADD pipelines since
// Redis natively gives race-free counters where the teacher needed a SQL
// workaround.
package ratelimit

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/go-redis/redis/v8"

	"github.com/laiskygw/llm-gateway/common/config"
)

// NewRedisClient dials the configured Redis instance. Call once at startup;
// tests construct a *redis.Client directly against miniredis instead.
func NewRedisClient() (*redis.Client, error) {
	opt, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse REDIS_URL")
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}
