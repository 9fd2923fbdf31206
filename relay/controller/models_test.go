package controller

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/laiskygw/llm-gateway/model"
)

func TestModels_ListsDistinctSystemNames(t *testing.T) {
	gin.SetMode(gin.TestMode)
	setupControllerTestDB(t)

	require.NoError(t, model.DB.Create(&model.Provider{Id: 1, Name: "primary", Type: model.ProviderTypeOpenAI, BaseUrl: "http://upstream"}).Error)
	require.NoError(t, model.DB.Create(&model.ModelRow{Id: 1, ProviderId: 1, SystemName: "gpt-4o", ModelType: model.ModelTypeChat, Weight: 1}).Error)
	require.NoError(t, model.DB.Create(&model.ModelRow{Id: 2, ProviderId: 1, SystemName: "gpt-4o-mini", ModelType: model.ModelTypeChat, Weight: 1}).Error)

	engine := gin.New()
	engine.GET("/v1/models", Models())

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "gpt-4o")
	require.Contains(t, w.Body.String(), "gpt-4o-mini")
	require.Contains(t, w.Body.String(), `"object":"list"`)
}
