package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/laiskygw/llm-gateway/middleware"
	"github.com/laiskygw/llm-gateway/model"
	relaymodel "github.com/laiskygw/llm-gateway/relay/model"
)

// Usage implements GET /api/usage: the calling ApiKey's total charged token
// usage across its completion history.
func Usage() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := middleware.CurrentAPIKey(c)

		usage, err := model.TotalUsageForAPIKey(apiKey.Id)
		if err != nil {
			middleware.AbortWithError(c, relaymodel.ErrInternal("load usage"))
			return
		}

		c.JSON(http.StatusOK, usage)
	}
}
