package controller

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestForwardableHeaders_ExcludesInterpretedHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer sk-test")
	h.Set("X-Api-Key", "sk-test")
	h.Set("Anthropic-Version", "2023-06-01")
	h.Set("Content-Type", "application/json")
	h.Set("Accept-Encoding", "gzip")
	h.Set("Sec-Fetch-Mode", "cors")
	h.Set("X-Provider", "azure-primary")
	h.Set("ReqId", "req-1")
	h.Set("X-Org-Scope", "acme")
	h.Add("X-Trace", "a")
	h.Add("X-Trace", "b")

	out := forwardableHeaders(h)

	require.Equal(t, map[string]string{
		"X-Org-Scope": "acme",
		"X-Trace":     "a, b",
	}, out)
}

func TestTargetProviderHeader_DecodesAndDefaultsEmpty(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	require.Equal(t, "", targetProviderHeader(c))

	c.Request.Header.Set("X-Provider", "azure%20eastus")
	require.Equal(t, "azure eastus", targetProviderHeader(c))
}

func TestReqIDHeader_RejectsInvalidShape(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)

	reqID, errResp := reqIDHeader(c)
	require.Nil(t, errResp)
	require.Equal(t, "", reqID)

	c.Request.Header.Set("ReqId", "has a space")
	_, errResp = reqIDHeader(c)
	require.NotNil(t, errResp)
	require.Equal(t, http.StatusBadRequest, errResp.StatusCode)

	c.Request.Header.Set("ReqId", "client-req-123.abc:def")
	reqID, errResp = reqIDHeader(c)
	require.Nil(t, errResp)
	require.Equal(t, "client-req-123.abc:def", reqID)
}
