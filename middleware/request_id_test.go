package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/laiskygw/llm-gateway/common/helper"
)

func TestRequestID_StampsContextAndResponseHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, engine := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/healthz", nil)

	engine.Use(RequestID())
	engine.GET("/healthz", func(c *gin.Context) {
		require.NotEmpty(t, c.GetString(helper.RequestIdKey))
		c.Status(http.StatusOK)
	})
	engine.HandleContext(c)

	require.NotEmpty(t, w.Header().Get("X-Gateway-Request-Id"))
}

func TestRequestID_GeneratesDistinctIdsPerRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	engine.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	second := httptest.NewRecorder()
	engine.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.NotEqual(t, first.Header().Get("X-Gateway-Request-Id"), second.Header().Get("X-Gateway-Request-Id"))
}
