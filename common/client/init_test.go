package client

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/laiskygw/llm-gateway/common/config"
)

func TestInit(t *testing.T) {
	Init()

	require.NotNil(t, HTTPClient)
	require.NotNil(t, ImpatientHTTPClient)
	require.Greater(t, ImpatientHTTPClient.Timeout.Seconds(), 0.0)
}

func TestInit_RelayProxy(t *testing.T) {
	config.RelayProxy = "http://127.0.0.1:8080"
	Init()

	transport, ok := HTTPClient.Transport.(*http.Transport)
	require.True(t, ok)
	require.NotNil(t, transport.Proxy)

	config.RelayProxy = ""
	Init()
}
