package controller

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/laiskygw/llm-gateway/model"
)

func TestUsage_SumsCompletionTokensForCallingKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	setupControllerTestDB(t)

	apiKey := seedAPIKey(t, 1, 60, 60000)
	otherKey := seedAPIKey(t, 2, 60, 60000)

	completion, err := model.CreatePendingCompletion(apiKey.Id, "gpt-4o", `{}`, "")
	require.NoError(t, err)
	require.NoError(t, model.FinalizeCompletion(completion.Id, model.CompletionStatusCompleted, `{}`, 10, 5, 100, 200, "", ""))

	other, err := model.CreatePendingCompletion(otherKey.Id, "gpt-4o", `{}`, "")
	require.NoError(t, err)
	require.NoError(t, model.FinalizeCompletion(other.Id, model.CompletionStatusCompleted, `{}`, 999, 999, 100, 200, "", ""))

	engine := gin.New()
	engine.GET("/api/usage", stubAuthenticate(apiKey), Usage())

	req := httptest.NewRequest(http.MethodGet, "/api/usage", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"promptTokens":10`)
	require.Contains(t, w.Body.String(), `"completionTokens":5`)
	require.NotContains(t, w.Body.String(), "999")
}
