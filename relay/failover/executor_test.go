package failover

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/laiskygw/llm-gateway/common/config"
	"github.com/laiskygw/llm-gateway/model"
	_ "github.com/laiskygw/llm-gateway/relay/adaptor/openai"
	"github.com/laiskygw/llm-gateway/relay/ir"
)

// TestMain disables the SSRF guard for this package's tests: every candidate
// here points at an httptest.Server, which always binds to loopback.
func TestMain(m *testing.M) {
	config.BlockInternalProviderRequests = false
	os.Exit(m.Run())
}

func openaiProviderCandidate(t *testing.T, baseURL string) model.Candidate {
	t.Helper()
	provider := model.Provider{Id: 1, Name: "primary", Type: model.ProviderTypeOpenAI, BaseUrl: baseURL}
	require.NoError(t, provider.SetAPIKey("sk-test"))
	return model.Candidate{
		Model:    model.ModelRow{Id: 1, SystemName: "gpt-4o", Weight: 1},
		Provider: provider,
	}
}

func TestExecutor_Do_SucceedsOnFirstCandidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer srv.Close()

	candidate := openaiProviderCandidate(t, srv.URL)
	exec := &Executor{HTTPClient: srv.Client(), MaxProviderAttempts: 3, SameProviderRetries: 1, Timeout: 0}
	exec.Timeout = 1 << 62 // effectively unlimited for this fast local test server

	result := exec.Do(context.Background(), nil, []model.Candidate{candidate}, &ir.Request{Model: "gpt-4o"})
	require.True(t, result.Success)
	require.NotNil(t, result.Response)
	result.Response.Body.Close()
}

func TestExecutor_Do_FailsOverOnRetriableStatus(t *testing.T) {
	var calls int32

	badSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer badSrv.Close()

	goodSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"ok"}`))
	}))
	defer goodSrv.Close()

	bad := openaiProviderCandidate(t, badSrv.URL)
	bad.Provider.Id = 1
	good := openaiProviderCandidate(t, goodSrv.URL)
	good.Provider.Id = 2

	exec := &Executor{HTTPClient: http.DefaultClient, MaxProviderAttempts: 3, SameProviderRetries: 0, Timeout: 1 << 62}
	result := exec.Do(context.Background(), nil, []model.Candidate{bad, good}, &ir.Request{Model: "gpt-4o"})

	require.True(t, result.Success)
	require.Equal(t, good.Provider.Id, result.Candidate.Provider.Id)
	result.Response.Body.Close()
	require.Equal(t, int32(1), atomic.LoadInt32(&calls), "sameProviderRetries=0 must not retry the failing candidate")
}

func TestExecutor_Do_ShortCircuitsOnNonRetriableStatus(t *testing.T) {
	var secondCalled bool

	badSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer badSrv.Close()

	goodSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secondCalled = true
		w.WriteHeader(http.StatusOK)
	}))
	defer goodSrv.Close()

	bad := openaiProviderCandidate(t, badSrv.URL)
	good := openaiProviderCandidate(t, goodSrv.URL)

	exec := &Executor{HTTPClient: http.DefaultClient, MaxProviderAttempts: 3, SameProviderRetries: 0, Timeout: 1 << 62}
	result := exec.Do(context.Background(), nil, []model.Candidate{bad, good}, &ir.Request{Model: "gpt-4o"})

	require.True(t, result.Success)
	require.Equal(t, http.StatusBadRequest, result.Response.StatusCode)
	result.Response.Body.Close()
	require.False(t, secondCalled, "a non-retriable 4xx must short-circuit without trying the next candidate")
}

func TestExecutor_Do_ExhaustsAllCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	candidate := openaiProviderCandidate(t, srv.URL)
	exec := &Executor{HTTPClient: http.DefaultClient, MaxProviderAttempts: 1, SameProviderRetries: 0, Timeout: 1 << 62}
	result := exec.Do(context.Background(), nil, []model.Candidate{candidate}, &ir.Request{Model: "gpt-4o"})

	require.False(t, result.Success)
	require.NotNil(t, result.FinalError)
}

func TestRequestURL_RejectsLoopbackBaseUrlWhenGuardEnabled(t *testing.T) {
	config.BlockInternalProviderRequests = true
	defer func() { config.BlockInternalProviderRequests = false }()

	candidate := openaiProviderCandidate(t, "http://127.0.0.1:9")
	_, err := requestURL(context.Background(), candidate)
	require.Error(t, err)
}
