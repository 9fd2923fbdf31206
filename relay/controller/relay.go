package controller

import (
	"net/http"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/laiskygw/llm-gateway/common"
	"github.com/laiskygw/llm-gateway/common/metrics"
	"github.com/laiskygw/llm-gateway/middleware"
	"github.com/laiskygw/llm-gateway/model"
	"github.com/laiskygw/llm-gateway/relay/adaptor"
	"github.com/laiskygw/llm-gateway/relay/failover"
	relaymodel "github.com/laiskygw/llm-gateway/relay/model"
	"github.com/laiskygw/llm-gateway/relay/relaymode"
	"github.com/laiskygw/llm-gateway/relay/resolver"
	"github.com/laiskygw/llm-gateway/relay/streaming"
)

// Relay implements spec.md §2's twelve-step pipeline for the three chat-style
// client dialects (openai-chat, openai-responses, anthropic), sharing one
// handler body across all three since the only per-dialect difference is the
// RequestAdaptor/ClientSerializer pulled from the dispatch tables. Grounded
// on the teacher's relay/controller/claude_messages.go pipeline shape.
func Relay(deps *Deps, dialect adaptor.Dialect) gin.HandlerFunc {
	return func(c *gin.Context) {
		lg := gmw.GetLogger(c)
		apiKey := middleware.CurrentAPIKey(c)

		body, err := common.GetRequestBody(c)
		if err != nil {
			middleware.AbortWithError(c, relaymodel.ErrValidation("unable to read request body"))
			return
		}
		if err := common.LogClientRequestPayload(c, string(dialect), common.DefaultLogBodyLimit); err != nil {
			middleware.AbortWithError(c, relaymodel.ErrInternal("log client request payload"))
			return
		}

		reqAdaptor, err := adaptor.ForRequest(dialect)
		if err != nil {
			middleware.AbortWithError(c, relaymodel.ErrInternal("no request adaptor for dialect"))
			return
		}

		irReq, err := reqAdaptor.ParseRequest(body)
		if err != nil {
			middleware.AbortWithError(c, relaymodel.ErrValidation(err.Error()))
			return
		}
		irReq.ExtraHeaders = forwardableHeaders(c.Request.Header)

		reqID, errResp := reqIDHeader(c)
		if errResp != nil {
			middleware.AbortWithError(c, errResp)
			return
		}

		candidates, err := resolver.Resolve(c, irReq.Model, model.ModelTypeChat, relaymode.GetByPath(c.Request.URL.Path), targetProviderHeader(c))
		if err != nil {
			abortResolveError(c, err)
			return
		}

		completion, outcome, errResp := claimOrCreateCompletion(deps, apiKey.Id, reqID, irReq.Model, string(body))
		if errResp != nil {
			middleware.AbortWithError(c, errResp)
			return
		}
		if outcome == model.DedupCacheHit {
			serveCachedCompletion(c, completion)
			return
		}

		serializer, err := adaptor.ForResponse(dialect)
		if err != nil {
			middleware.AbortWithError(c, relaymodel.ErrInternal("no response serializer for dialect"))
			return
		}

		finalizer := &requestFinalizer{
			ctx:          c.Request.Context(),
			deps:         deps,
			apiKeyID:     apiKey.Id,
			completionID: completion.Id,
			reqID:        reqID,
			serializer:   serializer,
		}

		result := deps.Executor.Do(c.Request.Context(), c, candidates, irReq)
		if !result.Success {
			_ = finalizer.SaveCompletion(streaming.StateFailed, nil, model.UnknownTokenCount, model.UnknownTokenCount)
			middleware.AbortWithError(c, result.FinalError)
			return
		}

		resp := result.Response
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			forwardUpstreamError(c, finalizer, resp)
			return
		}

		if irReq.Stream {
			relayStream(c, lg, deps, result.Candidate, serializer, finalizer, resp)
			return
		}
		relayUnary(c, deps, apiKey.Id, result.Candidate, serializer, finalizer, resp)
	}
}

// claimOrCreateCompletion always produces a pending Completion row (spec.md
// §3: "created at request start (or pre-created by dedup)"), routing
// through the dedup gate only when the caller supplied a ReqId.
func claimOrCreateCompletion(deps *Deps, apiKeyID int, reqID, requestedModel, prompt string) (*model.Completion, model.DedupOutcome, *relaymodel.ErrorWithStatusCode) {
	if reqID == "" {
		completion, err := model.CreatePendingCompletion(apiKeyID, requestedModel, prompt, "")
		if err != nil {
			return nil, "", relaymodel.ErrInternal("create completion record")
		}
		return completion, model.DedupNewRequest, nil
	}

	claim, err := deps.Gate.Claim(apiKeyID, reqID, requestedModel, prompt)
	if err != nil {
		return nil, "", relaymodel.ErrValidation(err.Error())
	}
	if claim.Outcome == model.DedupInFlight {
		return nil, "", relaymodel.ErrDedupConflict("a request with this ReqId is still in flight", reqID)
	}
	return claim.Completion, claim.Outcome, nil
}

// serveCachedCompletion replays the stored dialect-serialized body without
// touching any upstream provider (spec.md §4.6 cache_hit).
func serveCachedCompletion(c *gin.Context, completion *model.Completion) {
	if !completion.HasCachedResponse() {
		middleware.AbortWithError(c, relaymodel.ErrDedupConflict("a request with this ReqId is still in flight", completion.ReqId))
		return
	}
	c.Data(http.StatusOK, "application/json", []byte(completion.CachedBody))
}

func abortResolveError(c *gin.Context, err error) {
	var asStatus *relaymodel.ErrorWithStatusCode
	if errors.As(err, &asStatus) {
		middleware.AbortWithError(c, asStatus)
		return
	}
	middleware.AbortWithError(c, relaymodel.ErrInternal(err.Error()))
}

// forwardUpstreamError relays a non-retriable upstream status verbatim
// (spec.md §4.7 step 1.d) and finalizes the Completion as failed.
func forwardUpstreamError(c *gin.Context, finalizer *requestFinalizer, resp *http.Response) {
	body, err := failover.DrainBody(resp)
	if err != nil {
		middleware.AbortWithError(c, relaymodel.ErrInternal("read upstream error body"))
		return
	}
	_ = finalizer.SaveCompletion(streaming.StateFailed, nil, model.UnknownTokenCount, model.UnknownTokenCount)

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, body)
}

func relayStream(c *gin.Context, lg *zap.Logger, deps *Deps, candidate model.Candidate, serializer adaptor.ClientSerializer, finalizer *requestFinalizer, resp *http.Response) {
	providerParser, err := adaptor.ForProvider(candidate.Provider.Type)
	if err != nil {
		middleware.AbortWithError(c, relaymodel.ErrInternal("no provider parser for provider type"))
		return
	}

	common.SetEventStreamHeaders(c)
	c.Writer.WriteHeader(http.StatusOK)

	processor := &streaming.Processor{
		Parser:     providerParser.NewStreamParser(candidate.Provider.Type),
		Serializer: serializer,
		Finalizer:  finalizer,
	}

	start := time.Now()
	streamResult, err := processor.Run(resp, c.Writer, c.Writer, c.Request.Context().Done())
	if err != nil {
		lg.Warn("streaming relay ended with error", zap.Error(err))
	}
	metrics.GlobalRecorder.RecordRelayRequest(start, candidate.Provider.Id, string(candidate.Provider.Type),
		candidate.Model.SystemName, "", "", streamResult != nil && streamResult.State == streaming.StateCompleted, 0, 0)
}

func relayUnary(c *gin.Context, deps *Deps, apiKeyID int, candidate model.Candidate, serializer adaptor.ClientSerializer, finalizer *requestFinalizer, resp *http.Response) {
	start := time.Now()
	body, err := failover.DrainBody(resp)
	if err != nil {
		middleware.AbortWithError(c, relaymodel.ErrInternal("read upstream response body"))
		return
	}

	providerParser, err := adaptor.ForProvider(candidate.Provider.Type)
	if err != nil {
		middleware.AbortWithError(c, relaymodel.ErrInternal("no provider parser for provider type"))
		return
	}

	irResp, err := providerParser.ParseUnary(candidate.Provider.Type, body)
	if err != nil {
		_ = finalizer.SaveCompletion(streaming.StateFailed, nil, model.UnknownTokenCount, model.UnknownTokenCount)
		middleware.AbortWithError(c, relaymodel.ErrInternal("parse upstream response"))
		return
	}

	wireBody, err := serializer.SerializeUnary(irResp)
	if err != nil {
		_ = finalizer.SaveCompletion(streaming.StateFailed, nil, model.UnknownTokenCount, model.UnknownTokenCount)
		middleware.AbortWithError(c, relaymodel.ErrInternal("serialize client response"))
		return
	}

	durationMs := int(time.Since(start).Milliseconds())
	// Completion write happens-before the client response per spec.md §4.9.
	if err := finalizer.SaveCompletion(streaming.StateCompleted, irResp, 0, durationMs); err != nil {
		middleware.AbortWithError(c, relaymodel.ErrInternal("persist completion"))
		return
	}

	tokens := irResp.Usage.TotalTokens
	if tokens < 0 {
		tokens = 0
	}
	if err := finalizer.ConsumeTPM(tokens); err != nil {
		gmw.GetLogger(c).Warn("post-flight tpm charge failed", zap.Error(err))
	}

	metrics.GlobalRecorder.RecordRelayRequest(start, candidate.Provider.Id, string(candidate.Provider.Type),
		candidate.Model.SystemName, "", "", true, irResp.Usage.PromptTokens, irResp.Usage.CompletionTokens)

	c.Data(http.StatusOK, "application/json", wireBody)
}
