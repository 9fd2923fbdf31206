package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/laiskygw/llm-gateway/common/ctxkey"
	"github.com/laiskygw/llm-gateway/common/metrics"
	"github.com/laiskygw/llm-gateway/model"
	relaymodel "github.com/laiskygw/llm-gateway/relay/model"
)

// ExtractCredential implements spec.md §2 step 1: read Authorization:
// Bearer or x-api-key (Anthropic's header), in that order, matching the
// teacher's GetTokenKeyParts "Authorization, falling back to X-Api-Key"
// precedence.
func ExtractCredential(c *gin.Context) string {
	bearer := c.GetHeader("Authorization")
	if bearer == "" {
		return c.GetHeader("x-api-key")
	}
	return strings.TrimPrefix(bearer, "Bearer ")
}

// Authenticate implements spec.md §2 step 2: look up the bearer, reject
// revoked/expired/unknown keys, and stash the resolved ApiKey on the
// context for every downstream stage.
func Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer := ExtractCredential(c)
		key, err := model.AuthenticateAPIKey(bearer)
		if err != nil {
			metrics.GlobalRecorder.RecordTokenAuth(false)
			AbortWithError(c, relaymodel.ErrUnauthorized(""))
			return
		}

		metrics.GlobalRecorder.RecordTokenAuth(true)
		c.Set(ctxkey.ApiKey, key)
		c.Set(ctxkey.ApiKeyId, key.Id)
		c.Next()
	}
}

// CurrentAPIKey fetches the ApiKey stashed by Authenticate.
func CurrentAPIKey(c *gin.Context) *model.ApiKey {
	v, ok := c.Get(ctxkey.ApiKey)
	if !ok {
		return nil
	}
	key, _ := v.(*model.ApiKey)
	return key
}
