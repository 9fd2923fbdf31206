package controller

import (
	"context"
	"encoding/json"

	"github.com/Laisky/errors/v2"

	"github.com/laiskygw/llm-gateway/model"
	"github.com/laiskygw/llm-gateway/relay/adaptor"
	"github.com/laiskygw/llm-gateway/relay/ir"
	"github.com/laiskygw/llm-gateway/relay/streaming"
)

// statusForState maps the streaming state machine's terminal states onto the
// Completion row's status column (spec.md §3/§4.8); Run never calls finish
// with a non-terminal State, so the default case is unreachable in practice.
func statusForState(state streaming.State) model.CompletionStatus {
	switch state {
	case streaming.StateCompleted:
		return model.CompletionStatusCompleted
	case streaming.StateAborted:
		return model.CompletionStatusAborted
	default:
		return model.CompletionStatusFailed
	}
}

// serializeCompletionBody renders the IR response as the JSON blob stored in
// Completion.completion (spec.md §3: "completion blob (assistant turns incl.
// tool_calls)").
func serializeCompletionBody(resp *ir.Response) (string, error) {
	if resp == nil {
		return "", nil
	}
	body, err := json.Marshal(resp)
	if err != nil {
		return "", errors.Wrap(err, "marshal completion body")
	}
	return string(body), nil
}

// requestFinalizer bridges the pipeline's outcome (from either the unary
// path or the streaming.Processor) to the durable Completion row and the
// post-flight TPM charge, routing through the dedup gate when a ReqId was
// presented (spec.md §4.6 "Finalization") or straight to model.FinalizeCompletion
// otherwise.
type requestFinalizer struct {
	ctx          context.Context
	deps         *Deps
	apiKeyID     int
	completionID int
	reqID        string
	serializer   adaptor.ClientSerializer
}

// SaveCompletion persists the terminal Completion row. When a ReqId is
// present, the dialect-serialized client body is also stored as the cached
// response so a subsequent cache_hit replay can be served without re-asking
// upstream (spec.md §4.6).
func (f *requestFinalizer) SaveCompletion(state streaming.State, resp *ir.Response, ttftMs, durationMs int) error {
	status := statusForState(state)

	completionBody, err := serializeCompletionBody(resp)
	if err != nil {
		return err
	}

	promptTokens, completionTokens := model.UnknownTokenCount, model.UnknownTokenCount
	if resp != nil {
		promptTokens = resp.Usage.PromptTokens
		completionTokens = resp.Usage.CompletionTokens
	}

	cachedBody, cachedFormat := "", ""
	if f.reqID != "" && resp != nil && f.serializer != nil {
		if wireBody, err := f.serializer.SerializeUnary(resp); err == nil {
			cachedBody, cachedFormat = string(wireBody), "json"
		}
	}

	if f.reqID != "" {
		return f.deps.Gate.Finalize(f.apiKeyID, f.reqID, f.completionID, status, completionBody,
			promptTokens, completionTokens, ttftMs, durationMs, cachedBody, cachedFormat)
	}
	return model.FinalizeCompletion(f.completionID, status, completionBody,
		promptTokens, completionTokens, ttftMs, durationMs, cachedBody, cachedFormat)
}

// ConsumeTPM charges the post-flight rolling-window token count (spec.md
// §4.2/§4.8); tokens <= 0 is a no-op inside PerKeyLimiter.ConsumeTokens.
func (f *requestFinalizer) ConsumeTPM(tokens int) error {
	return f.deps.PerKeyLimiter.ConsumeTokens(f.ctx, f.apiKeyID, tokens)
}
