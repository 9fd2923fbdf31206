package middleware

import (
	"bytes"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/laiskygw/llm-gateway/common/ctxkey"
	"github.com/laiskygw/llm-gateway/relay/adaptor"
	relaymodel "github.com/laiskygw/llm-gateway/relay/model"
	"github.com/laiskygw/llm-gateway/relay/ratelimit"
)

// PerKeyRateLimit implements spec.md §4.2 (step 3 of §2): a fixed 60s RPM
// counter and a rolling 60s TPM pre-flight check, both scoped to the
// authenticated ApiKey. Must run after Authenticate.
func PerKeyRateLimit(limiter *ratelimit.PerKeyLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := CurrentAPIKey(c)
		ctx := c.Request.Context()

		rpm, err := limiter.CheckRPM(ctx, key.Id, key.Comment, key.RpmLimit)
		if err != nil {
			AbortWithError(c, relaymodel.ErrInternal("rate limit check failed"))
			return
		}
		c.Header("X-RateLimit-Limit-RPM", strconv.Itoa(rpm.Limit))
		c.Header("X-RateLimit-Remaining-RPM", strconv.Itoa(rpm.Remaining))
		if !rpm.Allowed {
			AbortWithError(c, relaymodel.ErrRateLimited("requests per minute limit exceeded"))
			return
		}

		tpm, err := limiter.CheckTPM(ctx, key.Id, key.Comment, key.TpmLimit)
		if err != nil {
			AbortWithError(c, relaymodel.ErrInternal("rate limit check failed"))
			return
		}
		c.Header("X-RateLimit-Limit-TPM", strconv.Itoa(tpm.Limit))
		c.Header("X-RateLimit-Remaining-TPM", strconv.Itoa(tpm.Remaining))
		if !tpm.Allowed {
			AbortWithError(c, relaymodel.ErrRateLimited("tokens per minute limit exceeded"))
			return
		}

		c.Next()
	}
}

// ModelRateLimit implements spec.md §4.3 (step 4 of §2): an optional global
// token-bucket keyed by the logical model, scoped by apiKey. It reads and
// re-buffers the request body once so the eventual handler can still
// consume it in full (spec.md §9's dialect-agnostic LogicalModel peek).
func ModelRateLimit(bucket *ratelimit.ModelBucketLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		dialect, _ := adaptor.DialectFromContextValue(c.GetString(ctxkey.Dialect))
		body, err := bufferedBody(c)
		if err != nil {
			AbortWithError(c, relaymodel.ErrValidation("unable to read request body"))
			return
		}

		reqAdaptor, err := adaptor.ForRequest(dialect)
		if err != nil {
			AbortWithError(c, relaymodel.ErrInternal("no request adaptor for dialect"))
			return
		}
		systemName, _, err := reqAdaptor.LogicalModel(body)
		if err != nil || systemName == "" {
			AbortWithError(c, relaymodel.ErrValidation("model is required"))
			return
		}

		key := CurrentAPIKey(c)
		apiKeyScope := ""
		if key != nil {
			apiKeyScope = strconv.Itoa(key.Id)
		}

		decision, err := bucket.Consume(c.Request.Context(), systemName, apiKeyScope, 1)
		if err != nil {
			AbortWithError(c, relaymodel.ErrInternal("model rate limit check failed"))
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.Allowed {
			AbortWithError(c, relaymodel.ErrRateLimited("model rate limit exceeded"))
			return
		}

		c.Next()
	}
}

// bufferedBody returns the request body, caching it on the context under
// the gin-conventional BodyBytesKey so it can be read more than once
// (spec.md §2: the model-bucket limiter and the request parser both need
// the full body).
func bufferedBody(c *gin.Context) ([]byte, error) {
	if v, ok := c.Get(ctxkey.KeyRequestBody); ok {
		if b, ok := v.([]byte); ok {
			return b, nil
		}
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	c.Set(ctxkey.KeyRequestBody, body)
	return body, nil
}
