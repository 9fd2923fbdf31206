// Package middleware implements spec.md §2 steps 1-4 (credential
// extraction, key validation, per-key and per-model rate limiting) plus the
// single error-to-HTTP-response choke point every handler funnels through.
// Grounded on the teacher's middleware/auth.go (TokenAuth/AbortWithError
// shape) generalized from the teacher's user-session auth to this gateway's
// bearer-only ApiKey model.
package middleware

import (
	"net/http"

	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/laiskygw/llm-gateway/common/ctxkey"
	"github.com/laiskygw/llm-gateway/common/helper"
	"github.com/laiskygw/llm-gateway/relay/adaptor"
	relaymodel "github.com/laiskygw/llm-gateway/relay/model"
)

// AbortWithError is the single choke point that turns a
// relaymodel.ErrorWithStatusCode into a gin response shaped for the
// inbound client's dialect, mirroring the teacher's
// middleware.AbortWithError (mirrors teacher's "one place to translate" rule).
func AbortWithError(c *gin.Context, err *relaymodel.ErrorWithStatusCode) {
	lg := gmw.GetLogger(c)
	requestID := c.GetString(helper.RequestIdKey)
	if err.StatusCode >= 500 || (err.LocalError && err.StatusCode != http.StatusTooManyRequests && err.StatusCode != http.StatusConflict) {
		lg.Error("request aborted", zap.Int("status_code", err.StatusCode), zap.String("type", err.Detail.Type), zap.String("message", err.Detail.Message), zap.String("request_id", requestID))
	} else {
		lg.Warn("request aborted", zap.Int("status_code", err.StatusCode), zap.String("type", err.Detail.Type), zap.String("message", err.Detail.Message), zap.String("request_id", requestID))
	}

	if err.StatusCode == http.StatusTooManyRequests {
		c.Header("Retry-After", "60")
	}
	if err.StatusCode == http.StatusConflict {
		c.Header("Retry-After", "1")
	}

	dialect, _ := adaptor.DialectFromContextValue(c.GetString(ctxkey.Dialect))
	c.JSON(err.StatusCode, errorBody(dialect, err))
	c.Abort()
}

// errorBody shapes the error envelope per spec.md §7: OpenAI dialects use
// {"error":{message,type,param,code}}; Anthropic wraps the same fields
// under {"type":"error","error":{...}}.
func errorBody(dialect adaptor.Dialect, err *relaymodel.ErrorWithStatusCode) gin.H {
	body := gin.H{
		"message": err.Detail.Message,
		"type":    err.Detail.Type,
	}
	if err.Detail.Param != "" {
		body["param"] = err.Detail.Param
	}
	if err.Detail.Code != "" {
		body["code"] = err.Detail.Code
	}

	if dialect == adaptor.DialectAnthropic {
		return gin.H{"type": "error", "error": body}
	}
	return gin.H{"error": body}
}

// WithDialect stamps the inbound client dialect onto the gin context so
// every downstream middleware/handler (rate-limit headers, error shaping,
// the request adaptor lookup) agrees on it without re-deriving it from the
// route.
func WithDialect(d adaptor.Dialect) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ctxkey.Dialect, string(d))
		c.Next()
	}
}
