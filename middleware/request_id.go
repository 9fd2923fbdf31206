package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/laiskygw/llm-gateway/common"
	"github.com/laiskygw/llm-gateway/common/helper"
)

// RequestID stamps every inbound request with a generated correlation id,
// stored under helper.RequestIdKey and echoed back as a response header so a
// caller can hand it to support/logs. This is distinct from the client-
// supplied ReqId header (ctxkey.ReqId), which is the dedup idempotency key
// from spec.md §4.6; RequestID here exists purely for log/trace correlation
// and is generated even when the caller sent no ReqId at all.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := common.GenerateVerificationCode(0)
		c.Set(helper.RequestIdKey, id)
		c.Header("X-Gateway-Request-Id", id)
		c.Next()
	}
}
