// Package failover implements spec.md §4.7: trying an ordered candidate
// list of (Model, Provider) pairs, each for up to SameProviderRetries extra
// attempts, short-circuiting on a non-retriable 4xx and falling through to
// the next candidate on a retriable status or network error. Grounded on
// the teacher's per-adaptor GetRequestURL/SetupRequestHeader split
// (relay/adaptor/openai/adaptor.go), generalized here into one executor
// since the teacher relies on a single channel per call plus manual
// controller-level retry instead of a dedicated retry loop.
package failover

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/laiskygw/llm-gateway/common/config"
	"github.com/laiskygw/llm-gateway/common/metrics"
	"github.com/laiskygw/llm-gateway/model"
	"github.com/laiskygw/llm-gateway/relay/adaptor"
	"github.com/laiskygw/llm-gateway/relay/ir"
	relaymodel "github.com/laiskygw/llm-gateway/relay/model"
)

// retriableStatusCodes is the spec.md §4.7 config default.
var retriableStatusCodes = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Attempt records one HTTP call made against one candidate, for building
// the "all providers failed" diagnostic on total exhaustion.
type Attempt struct {
	Candidate  model.Candidate
	StatusCode int
	Err        error
}

// Result is the executor's outcome: exactly one of Response or a non-nil
// FinalError is set.
type Result struct {
	Success    bool
	Response   *http.Response
	Candidate  model.Candidate
	Attempts   []Attempt
	FinalError *relaymodel.ErrorWithStatusCode
}

// Executor drives the retry/timeout loop over a pre-ordered candidate list.
type Executor struct {
	HTTPClient          *http.Client
	MaxProviderAttempts int
	SameProviderRetries int
	Timeout             time.Duration
}

// NewExecutor builds an Executor from process configuration.
func NewExecutor(httpClient *http.Client) *Executor {
	return &Executor{
		HTTPClient:          httpClient,
		MaxProviderAttempts: config.MaxProviderAttempts,
		SameProviderRetries: config.SameProviderRetries,
		Timeout:             config.RelayTimeout,
	}
}

// Do implements spec.md §4.7's retry loop. candidates must already be
// pre-ordered (the resolver's job); Do never reorders mid-flight. req is the
// already-translated IR request; Do renders it per provider type via each
// ProviderParser's BuildRequestBody.
func (e *Executor) Do(ctx context.Context, c *gin.Context, candidates []model.Candidate, req *ir.Request) Result {
	return e.doWithBuilder(ctx, c, candidates, func(candidate model.Candidate) (*http.Request, error) {
		return e.buildRequest(ctx, candidate, req)
	})
}

// RequestBuilder renders one candidate into a provider-native *http.Request.
// DoRaw uses it for endpoints the IR doesn't model, such as embeddings
// (spec.md §4.5 "Embedding responses" note): the wire shape there is a
// simple OpenAI-compatible {model, input} object, not an ir.Request.
type RequestBuilder func(candidate model.Candidate) (*http.Request, error)

// DoRaw runs the same retry/timeout loop as Do against a caller-supplied
// RequestBuilder, for endpoints that don't go through the IR.
func (e *Executor) DoRaw(ctx context.Context, c *gin.Context, candidates []model.Candidate, builder RequestBuilder) Result {
	return e.doWithBuilder(ctx, c, candidates, builder)
}

func (e *Executor) doWithBuilder(ctx context.Context, c *gin.Context, candidates []model.Candidate, builder RequestBuilder) Result {
	var attempts []Attempt

	maxCandidates := len(candidates)
	if e.MaxProviderAttempts > 0 && e.MaxProviderAttempts < maxCandidates {
		maxCandidates = e.MaxProviderAttempts
	}

	for i := 0; i < maxCandidates; i++ {
		candidate := candidates[i]
		for attempt := 0; attempt <= e.SameProviderRetries; attempt++ {
			resp, statusCode, err := e.attemptWith(ctx, candidate, builder)
			attempts = append(attempts, Attempt{Candidate: candidate, StatusCode: statusCode, Err: err})

			if err == nil && statusCode >= 200 && statusCode < 300 {
				return Result{Success: true, Response: resp, Candidate: candidate, Attempts: attempts}
			}

			if err == nil && !retriableStatusCodes[statusCode] {
				// Non-retriable HTTP status: authoritative answer, forward verbatim.
				return Result{Success: true, Response: resp, Candidate: candidate, Attempts: attempts}
			}

			if c != nil {
				gmw.GetLogger(c).Warn("provider attempt failed",
					zap.Int("provider_id", candidate.Provider.Id),
					zap.String("provider_name", candidate.Provider.Name),
					zap.Int("status_code", statusCode),
					zap.Error(err))
			}
			metrics.GlobalRecorder.RecordError("provider_attempt", string(candidate.Provider.Type))

			if resp != nil {
				resp.Body.Close()
			}
			// Retriable: stay on this candidate for SameProviderRetries extra
			// tries, then fall through to the next candidate in order.
		}
	}

	finalErr := relaymodel.ErrUpstreamExhausted(summarizeAttempts(attempts))
	return Result{Success: false, Attempts: attempts, FinalError: finalErr}
}

func (e *Executor) attemptWith(ctx context.Context, candidate model.Candidate, builder RequestBuilder) (*http.Response, int, error) {
	httpReq, err := builder(candidate)
	if err != nil {
		return nil, 0, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()
	httpReq = httpReq.WithContext(attemptCtx)

	resp, err := e.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, 0, errors.Wrap(err, "upstream request failed")
	}
	return resp, resp.StatusCode, nil
}

func (e *Executor) buildRequest(ctx context.Context, candidate model.Candidate, req *ir.Request) (*http.Request, error) {
	parser, err := adaptor.ForProvider(candidate.Provider.Type)
	if err != nil {
		return nil, errors.Wrap(err, "resolve provider parser")
	}

	scoped := *req
	scoped.Model = candidate.Model.RemoteId
	if scoped.Model == "" {
		scoped.Model = candidate.Model.SystemName
	}

	body, err := parser.BuildRequestBody(&scoped)
	if err != nil {
		return nil, errors.Wrap(err, "build provider request body")
	}

	url, err := requestURL(ctx, candidate)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build http request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	apiKey, err := candidate.Provider.DecryptedAPIKey()
	if err != nil {
		return nil, errors.Wrap(err, "decrypt provider api key")
	}
	setAuthHeader(httpReq, candidate.Provider, apiKey)

	for k, v := range req.ExtraHeaders {
		if httpReq.Header.Get(k) == "" {
			httpReq.Header.Set(k, v)
		}
	}
	return httpReq, nil
}

// requestURL builds the provider-native chat/responses/messages endpoint
// URL for a candidate, rejecting an admin-configured BaseUrl that resolves
// to a loopback/private/link-local target (spec.md §5-8 SSRF guard) right
// before the executor ever dials it. Gated by config.BlockInternalProviderRequests
// so self-hosted deployments can point a Provider at a private endpoint.
func requestURL(ctx context.Context, candidate model.Candidate) (string, error) {
	provider := candidate.Provider
	if config.BlockInternalProviderRequests {
		if err := provider.ValidateBaseURL(ctx); err != nil {
			return "", errors.Wrap(err, "validate provider base url")
		}
	}

	base := strings.TrimRight(provider.BaseUrl, "/")
	switch provider.Type {
	case model.ProviderTypeOpenAI, model.ProviderTypeOllama:
		return base + "/v1/chat/completions", nil
	case model.ProviderTypeOpenAIResponses:
		return base + "/v1/responses", nil
	case model.ProviderTypeAnthropic:
		return base + "/v1/messages", nil
	case model.ProviderTypeAzure:
		apiVersion := provider.ApiVersion
		if apiVersion == "" {
			apiVersion = "2024-06-01"
		}
		deployment := candidate.Model.RemoteId
		if deployment == "" {
			deployment = candidate.Model.SystemName
		}
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s", base, deployment, apiVersion), nil
	default:
		return "", errors.Errorf("unsupported provider type: %s", provider.Type)
	}
}

// EmbeddingsURL builds the provider-native embeddings endpoint URL for a
// candidate (spec.md §6 "Egress HTTP"). Anthropic offers no embeddings
// dialect; the resolver never returns an Anthropic candidate for an
// embeddings request since filterByEndpoint drops provider types whose
// default endpoints lack embeddings.
// Applies the same SSRF guard as requestURL before building the URL.
func EmbeddingsURL(ctx context.Context, candidate model.Candidate) (string, error) {
	provider := candidate.Provider
	if config.BlockInternalProviderRequests {
		if err := provider.ValidateBaseURL(ctx); err != nil {
			return "", errors.Wrap(err, "validate provider base url")
		}
	}

	base := strings.TrimRight(provider.BaseUrl, "/")
	switch provider.Type {
	case model.ProviderTypeOpenAI, model.ProviderTypeOllama, model.ProviderTypeOpenAIResponses:
		return base + "/v1/embeddings", nil
	case model.ProviderTypeAzure:
		apiVersion := provider.ApiVersion
		if apiVersion == "" {
			apiVersion = "2024-06-01"
		}
		deployment := candidate.Model.RemoteId
		if deployment == "" {
			deployment = candidate.Model.SystemName
		}
		return fmt.Sprintf("%s/openai/deployments/%s/embeddings?api-version=%s", base, deployment, apiVersion), nil
	default:
		return "", errors.Errorf("provider type %s does not support embeddings", provider.Type)
	}
}

// SetAuthHeader installs the provider-type-appropriate auth header/scheme
// (spec.md §6 "Egress HTTP"), exported so non-IR callers (embeddings) can
// reuse the same auth logic as the chat/responses/anthropic path.
func SetAuthHeader(req *http.Request, provider model.Provider, apiKey string) {
	setAuthHeader(req, provider, apiKey)
}

func setAuthHeader(req *http.Request, provider model.Provider, apiKey string) {
	switch provider.Type {
	case model.ProviderTypeAzure:
		req.Header.Set("api-key", apiKey)
	case model.ProviderTypeAnthropic:
		req.Header.Set("x-api-key", apiKey)
		apiVersion := provider.ApiVersion
		if apiVersion == "" {
			apiVersion = "2023-06-01"
		}
		req.Header.Set("anthropic-version", apiVersion)
	default:
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

func summarizeAttempts(attempts []Attempt) string {
	if len(attempts) == 0 {
		return "all upstream providers failed: no candidates attempted"
	}
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		detail := fmt.Sprintf("provider=%s status=%d", a.Candidate.Provider.Name, a.StatusCode)
		if a.Err != nil {
			detail += fmt.Sprintf(" err=%s", a.Err.Error())
		}
		parts = append(parts, detail)
	}
	return "all upstream providers failed: " + strings.Join(parts, "; ")
}

// DrainBody reads and closes resp.Body, returning its full content. Used by
// the unary processor; the streaming processor reads resp.Body incrementally
// instead.
func DrainBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}
	return body, nil
}
