package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/laiskygw/llm-gateway/middleware"
	"github.com/laiskygw/llm-gateway/model"
	relaymodel "github.com/laiskygw/llm-gateway/relay/model"
)

type modelListEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// Models implements GET /v1/models (spec.md §4.10): the distinct set of
// configured logical model names, shaped as OpenAI's model-listing contract.
func Models() gin.HandlerFunc {
	return func(c *gin.Context) {
		names, err := model.DistinctSystemNames()
		if err != nil {
			middleware.AbortWithError(c, relaymodel.ErrInternal("list models"))
			return
		}

		now := time.Now().Unix()
		data := make([]modelListEntry, 0, len(names))
		for _, name := range names {
			data = append(data, modelListEntry{ID: name, Object: "model", Created: now, OwnedBy: "llm-gateway"})
		}

		c.JSON(http.StatusOK, gin.H{"object": "list", "data": data})
	}
}
