// Package dedup implements spec.md §4.6: the ReqId-based idempotency gate.
// A local singleflight.Group collapses concurrent goroutines in this
// process racing on the same (apiKeyId, reqId) before any of them reach the
// database, then model.ClaimReqId provides the cross-process atomic
// "no entry -> in_flight entry + pending completion" transition.
package dedup

import (
	"fmt"

	"github.com/Laisky/errors/v2"
	"golang.org/x/sync/singleflight"

	"github.com/laiskygw/llm-gateway/common/metrics"
	"github.com/laiskygw/llm-gateway/model"
)

// Gate wraps model.ClaimReqId with a process-local singleflight so the
// common case of a client retrying a request while the first attempt is
// still in-process never even reaches the database twice.
type Gate struct {
	group singleflight.Group
}

// NewGate constructs an empty dedup gate.
func NewGate() *Gate {
	return &Gate{}
}

// ClaimResult is the outcome of Claim, carrying the pre-created or
// previously-stored Completion row alongside its classification.
type ClaimResult struct {
	Outcome    model.DedupOutcome
	Completion *model.Completion
}

// Claim implements spec.md §4.6's three-way decision for one
// (apiKeyId, reqId) pair. Invalid reqId shapes are rejected before the
// singleflight/DB round trip.
func (g *Gate) Claim(apiKeyID int, reqID, requestedModel, prompt string) (ClaimResult, error) {
	if !model.ReqIdPattern.MatchString(reqID) {
		return ClaimResult{}, errors.Errorf("invalid req id: %s", reqID)
	}

	sfKey := fmt.Sprintf("%d:%s", apiKeyID, reqID)
	v, err, _ := g.group.Do(sfKey, func() (any, error) {
		outcome, completion, err := model.ClaimReqId(apiKeyID, reqID, requestedModel, prompt)
		if err != nil {
			return nil, err
		}
		return ClaimResult{Outcome: outcome, Completion: completion}, nil
	})
	if err != nil {
		return ClaimResult{}, errors.Wrap(err, "claim req id")
	}

	result := v.(ClaimResult)
	metrics.GlobalRecorder.RecordDedupOutcome(string(result.Outcome))
	return result, nil
}

// Finalize updates the pre-created completion with its terminal result and
// marks the dedup entry finalized (spec.md §4.6 "Finalization").
func (g *Gate) Finalize(apiKeyID int, reqID string, completionID int, status model.CompletionStatus, body string, promptTokens, completionTokens, ttftMs, durationMs int, cachedBody, cachedFormat string) error {
	return model.FinalizeReqId(apiKeyID, reqID, completionID, status, body, promptTokens, completionTokens, ttftMs, durationMs, cachedBody, cachedFormat)
}

// FinalizeOnError marks a hard pre-response failure, freeing the dedup slot
// (spec.md §4.6: "finalizeReqIdOnError marks the row failed").
func (g *Gate) FinalizeOnError(apiKeyID int, reqID string, completionID int) error {
	return model.FinalizeReqIdOnError(apiKeyID, reqID, completionID)
}
