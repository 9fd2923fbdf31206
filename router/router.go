// Package router assembles the gin.Engine: CORS and gzip, the shared
// middleware chain, and the route table for the three relay dialects plus
// embeddings, models, and usage. Grounded on the teacher's
// router/api.go (group-per-concern route registration) and router/main.go's
// CORS/gzip wiring, generalized here across one gateway instead of the
// teacher's user/channel/token admin surface.
package router

import (
	"net/http"
	"strings"

	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/laiskygw/llm-gateway/common/config"
	"github.com/laiskygw/llm-gateway/common/logger"
	"github.com/laiskygw/llm-gateway/middleware"
	"github.com/laiskygw/llm-gateway/relay/adaptor"
	"github.com/laiskygw/llm-gateway/relay/controller"
)

// New builds the fully-wired gin.Engine for the gateway. otelgin must run
// before gmw's logger middleware so the per-request logger picks up the
// OpenTelemetry span's trace id (mirrors the teacher's
// middleware/tracing_duplicate_traceid_test.go wiring order).
func New(deps *controller.Deps) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware("llm-gateway"))
	engine.Use(gmw.NewLoggerMiddleware(gmw.WithLogger(logger.Logger)))
	engine.Use(middleware.RequestID())

	engine.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(config.AllowedOrigins),
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "x-api-key", "anthropic-version", "X-Provider", "ReqId"},
		AllowCredentials: true,
	}))

	engine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := engine.Group("/")
	apiGroup.Use(gzip.Gzip(gzip.DefaultCompression))
	registerRelayRoutes(apiGroup, deps)

	return engine
}

// allowedOrigins splits config.AllowedOrigins' comma-separated list;
// a bare "*" (the default) is passed through unchanged as a one-element
// list. No AllowOriginFunc is configured.
func allowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "*" {
		return []string{"*"}
	}
	origins := strings.Split(raw, ",")
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// registerRelayRoutes wires spec.md §2's credential/rate-limit chain in
// front of every relay endpoint, then dispatches per dialect.
func registerRelayRoutes(r gin.IRoutes, deps *controller.Deps) {
	chain := []gin.HandlerFunc{
		middleware.Authenticate(),
		middleware.PerKeyRateLimit(deps.PerKeyLimiter),
	}

	dialectChain := func(d adaptor.Dialect) []gin.HandlerFunc {
		h := make([]gin.HandlerFunc, 0, len(chain)+3)
		h = append(h, chain...)
		h = append(h, middleware.WithDialect(d), middleware.ModelRateLimit(deps.ModelBucket))
		h = append(h, controller.Relay(deps, d))
		return h
	}

	r.POST("/v1/chat/completions", dialectChain(adaptor.DialectOpenAIChat)...)
	r.POST("/v1/responses", dialectChain(adaptor.DialectOpenAIResponses)...)
	r.POST("/v1/messages", dialectChain(adaptor.DialectAnthropic)...)

	embeddingsChain := append(append([]gin.HandlerFunc{}, chain...), controller.Embeddings(deps))
	r.POST("/v1/embeddings", embeddingsChain...)

	r.GET("/v1/models", middleware.Authenticate(), controller.Models())
	r.GET("/api/usage", middleware.Authenticate(), controller.Usage())
}
