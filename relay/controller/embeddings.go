package controller

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/laiskygw/llm-gateway/common"
	"github.com/laiskygw/llm-gateway/middleware"
	"github.com/laiskygw/llm-gateway/model"
	"github.com/laiskygw/llm-gateway/relay/failover"
	relaymodel "github.com/laiskygw/llm-gateway/relay/model"
	"github.com/laiskygw/llm-gateway/relay/relaymode"
	"github.com/laiskygw/llm-gateway/relay/resolver"
)

// embeddingsRequest is the OpenAI-compatible wire shape for POST
// /v1/embeddings (spec.md §4.5 "Embedding responses" note). It is not
// modeled by the shared IR since no other endpoint family needs it.
type embeddingsRequest struct {
	Model          string          `json:"model"`
	Input          json.RawMessage `json:"input"`
	EncodingFormat string          `json:"encoding_format,omitempty"`
}

type embeddingDatum struct {
	Object    string `json:"object"`
	Embedding any    `json:"embedding"`
	Index     int    `json:"index"`
}

type embeddingsResponse struct {
	Object string           `json:"object"`
	Data   []embeddingDatum `json:"data"`
	Model  string           `json:"model"`
	Usage  struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Embeddings implements POST /v1/embeddings: resolve -> failover -> persist,
// bypassing the client-dialect IR entirely since embeddings have one wire
// shape across every provider type in scope (spec.md §4.5).
func Embeddings(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := middleware.CurrentAPIKey(c)

		var wire embeddingsRequest
		if err := common.UnmarshalBodyReusable(c, &wire); err != nil || wire.Model == "" {
			middleware.AbortWithError(c, relaymodel.ErrValidation("model is required"))
			return
		}

		candidates, err := resolver.Resolve(c, wire.Model, model.ModelTypeEmbedding, relaymode.Embeddings, targetProviderHeader(c))
		if err != nil {
			abortResolveError(c, err)
			return
		}

		start := time.Now()
		result := deps.Executor.DoRaw(c.Request.Context(), c, candidates, func(candidate model.Candidate) (*http.Request, error) {
			return buildEmbeddingsRequest(c, candidate, wire)
		})
		if !result.Success {
			middleware.AbortWithError(c, result.FinalError)
			return
		}

		resp := result.Response
		durationMs := int(time.Since(start).Milliseconds())

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			upstreamBody, err := failover.DrainBody(resp)
			if err != nil {
				middleware.AbortWithError(c, relaymodel.ErrInternal("read upstream error body"))
				return
			}
			contentType := resp.Header.Get("Content-Type")
			if contentType == "" {
				contentType = "application/json"
			}
			c.Data(resp.StatusCode, contentType, upstreamBody)
			return
		}

		upstreamBody, err := failover.DrainBody(resp)
		if err != nil {
			middleware.AbortWithError(c, relaymodel.ErrInternal("read upstream response body"))
			return
		}

		var parsed embeddingsResponse
		if err := json.Unmarshal(upstreamBody, &parsed); err != nil {
			middleware.AbortWithError(c, relaymodel.ErrInternal("parse upstream embeddings response"))
			return
		}

		dimensions := 0
		for i := range parsed.Data {
			vec, err := normalizeEmbeddingVector(parsed.Data[i].Embedding)
			if err != nil {
				gmw.GetLogger(c).Warn("failed to normalize embedding vector", zap.Error(err))
				continue
			}
			parsed.Data[i].Embedding = vec
			if len(vec) > dimensions {
				dimensions = len(vec)
			}
		}

		vectorsJSON, err := json.Marshal(parsed.Data)
		if err != nil {
			middleware.AbortWithError(c, relaymodel.ErrInternal("marshal embedding vectors"))
			return
		}

		inputText := inputPreview(wire.Input)
		inputTokens := model.UnknownTokenCount
		if parsed.Usage.PromptTokens > 0 {
			inputTokens = parsed.Usage.PromptTokens
		}

		if _, err := model.CreateEmbedding(apiKey.Id, result.Candidate.Model.Id, inputText, inputTokens,
			string(vectorsJSON), dimensions, string(model.CompletionStatusCompleted), durationMs); err != nil {
			gmw.GetLogger(c).Warn("failed to persist embedding record", zap.Error(err))
		}

		renderedBody, err := json.Marshal(parsed)
		if err != nil {
			middleware.AbortWithError(c, relaymodel.ErrInternal("marshal embeddings response"))
			return
		}
		c.Data(http.StatusOK, "application/json", renderedBody)
	}
}

// buildEmbeddingsRequest renders one candidate's provider-native embeddings
// request, reusing the same URL/auth construction as the chat/responses path
// (relay/failover.EmbeddingsURL, relay/failover.SetAuthHeader) since only the
// wire body shape differs for embeddings, not the transport.
func buildEmbeddingsRequest(c *gin.Context, candidate model.Candidate, wire embeddingsRequest) (*http.Request, error) {
	providerModel := candidate.Model.RemoteId
	if providerModel == "" {
		providerModel = candidate.Model.SystemName
	}

	payload := map[string]any{
		"model": providerModel,
		"input": json.RawMessage(wire.Input),
	}
	if wire.EncodingFormat != "" {
		payload["encoding_format"] = wire.EncodingFormat
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal embeddings request body")
	}

	url, err := failover.EmbeddingsURL(c.Request.Context(), candidate)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, errors.Wrap(err, "build embeddings http request")
	}
	req.Header.Set("Content-Type", "application/json")

	apiKey, err := candidate.Provider.DecryptedAPIKey()
	if err != nil {
		return nil, errors.Wrap(err, "decrypt provider api key")
	}
	failover.SetAuthHeader(req, candidate.Provider, apiKey)

	for k, v := range forwardableHeaders(c.Request.Header) {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return req, nil
}

// normalizeEmbeddingVector implements spec.md §4.5's "base64 little-endian
// float32 -> float array" normalization; vectors already decoded to a plain
// JSON number array pass through unchanged.
func normalizeEmbeddingVector(raw any) ([]float64, error) {
	switch v := raw.(type) {
	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, errors.Wrap(err, "decode base64 embedding vector")
		}
		if len(decoded)%4 != 0 {
			return nil, errors.New("base64 embedding vector is not a multiple of 4 bytes")
		}
		vec := make([]float64, len(decoded)/4)
		for i := range vec {
			bits := binary.LittleEndian.Uint32(decoded[i*4 : i*4+4])
			vec[i] = float64(math.Float32frombits(bits))
		}
		return vec, nil
	case []any:
		vec := make([]float64, len(v))
		for i, n := range v {
			f, ok := n.(float64)
			if !ok {
				return nil, errors.Errorf("embedding vector element %d is not numeric", i)
			}
			vec[i] = f
		}
		return vec, nil
	default:
		return nil, errors.New("unsupported embedding vector shape")
	}
}

// inputPreview extracts a short textual form of the request's input field
// for the Completion-style audit row; Input may be a single string or an
// array of strings.
func inputPreview(raw json.RawMessage) string {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	return string(raw)
}
