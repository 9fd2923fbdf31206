// Package main boots the gateway process: configuration, logging, metrics,
// the outbound HTTP client, the database, Redis-backed rate limiters and
// dedup gate, the failover executor, and finally the HTTP server itself.
// Grounded on the teacher's main.go boot sequence (config.Init ->
// logger.Init -> InitDB -> InitRedis -> Init* subsystems -> router.SetRouter
// -> graceful-shutdown http.Server), adapted from the teacher's single
// monolithic main into the gateway's smaller dependency graph.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Laisky/zap"
	"github.com/go-redis/redis/v8"
	_ "github.com/joho/godotenv/autoload"

	"github.com/laiskygw/llm-gateway/common/client"
	"github.com/laiskygw/llm-gateway/common/config"
	"github.com/laiskygw/llm-gateway/common/logger"
	"github.com/laiskygw/llm-gateway/common/metrics"
	"github.com/laiskygw/llm-gateway/common/telemetry"
	"github.com/laiskygw/llm-gateway/model"
	"github.com/laiskygw/llm-gateway/relay/controller"
	"github.com/laiskygw/llm-gateway/relay/dedup"
	"github.com/laiskygw/llm-gateway/relay/failover"
	"github.com/laiskygw/llm-gateway/relay/ratelimit"
	"github.com/laiskygw/llm-gateway/router"
)

func main() {
	config.Init()
	logger.Init(config.DebugEnabled)
	lg := logger.Logger

	if err := metrics.Init(); err != nil {
		lg.Fatal("init metrics", zap.Error(err))
	}
	client.Init()

	if err := model.InitDB(); err != nil {
		lg.Fatal("init database", zap.Error(err))
	}

	rdb, err := newRedisClient(config.RedisURL)
	if err != nil {
		lg.Fatal("init redis", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, "llm-gateway")
	if err != nil {
		lg.Fatal("init telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			lg.Warn("shutdown telemetry", zap.Error(err))
		}
	}()

	modelBucket := ratelimit.NewModelBucketLimiter(rdb)
	if err := modelBucket.LoadOverrides(); err != nil {
		lg.Warn("load model rate limit overrides", zap.Error(err))
	}

	deps := &controller.Deps{
		Gate:          dedup.NewGate(),
		Executor:      failover.NewExecutor(client.HTTPClient),
		PerKeyLimiter: ratelimit.NewPerKeyLimiter(rdb),
		ModelBucket:   modelBucket,
	}

	engine := router.New(deps)

	srv := &http.Server{
		Addr:    ":" + config.Port,
		Handler: engine,
	}

	go func() {
		lg.Info("gateway listening", zap.String("port", config.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	lg.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newRedisClient parses config.RedisURL and pings the server once so a
// misconfigured REDIS_URL fails fast at boot rather than on the first
// rate-limited request.
func newRedisClient(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}
