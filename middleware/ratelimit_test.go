package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/laiskygw/llm-gateway/common/ctxkey"
	"github.com/laiskygw/llm-gateway/model"
	"github.com/laiskygw/llm-gateway/relay/adaptor"
	_ "github.com/laiskygw/llm-gateway/relay/adaptor/openai"
	"github.com/laiskygw/llm-gateway/relay/ratelimit"
)

func newMiniredisClient(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestPerKeyRateLimit_AllowsUntilRPMExhausted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rdb := newMiniredisClient(t)
	limiter := ratelimit.NewPerKeyLimiter(rdb)

	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set(ctxkey.ApiKey, &model.ApiKey{Id: 7, RpmLimit: 1, TpmLimit: 60000})
		c.Next()
	})
	engine.Use(PerKeyRateLimit(limiter))
	engine.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	engine.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	engine.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.Equal(t, "60", second.Header().Get("Retry-After"))
}

func TestModelRateLimit_RejectsRequestMissingModel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rdb := newMiniredisClient(t)
	bucket := ratelimit.NewModelBucketLimiter(rdb)

	engine := gin.New()
	engine.Use(WithDialect(adaptor.DialectOpenAIChat))
	engine.Use(ModelRateLimit(bucket))
	engine.POST("/v1/chat/completions", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"messages":[]}`))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestModelRateLimit_AllowsAndRebuffersBodyForDownstreamHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rdb := newMiniredisClient(t)
	bucket := ratelimit.NewModelBucketLimiter(rdb)

	var bodyAtHandler string
	engine := gin.New()
	engine.Use(WithDialect(adaptor.DialectOpenAIChat))
	engine.Use(ModelRateLimit(bucket))
	engine.POST("/v1/chat/completions", func(c *gin.Context) {
		b, err := c.GetRawData()
		require.NoError(t, err)
		bodyAtHandler = string(b)
		c.Status(http.StatusOK)
	})

	payload := `{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(payload))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, payload, bodyAtHandler)
}
