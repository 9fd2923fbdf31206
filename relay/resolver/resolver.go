// Package resolver implements spec.md §4.4: turning a logical model name
// (plus an optional explicit provider selector) into an ordered list of
// (Model, Provider) candidates for the failover executor to try in order.
// Grounded on the teacher's model.CacheGetRandomSatisfiedChannelExcluding
// (repeated draw-and-exclude weighted sampling) and
// middleware/distributor.go's two-pass "try highest priority, then fall
// back" selection shape.
package resolver

import (
	"math/rand"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/laiskygw/llm-gateway/common/config"
	"github.com/laiskygw/llm-gateway/model"
	"github.com/laiskygw/llm-gateway/relay/adaptor"
	"github.com/laiskygw/llm-gateway/relay/channeltype"
	relaymodel "github.com/laiskygw/llm-gateway/relay/model"
)

// Resolve implements spec.md §4.4 steps 1-6: split "model@provider", load
// candidates, drop providers whose type can't serve relayMode at all,
// apply the target-provider filter with its empty-set fallback, and return
// a weighted-random failover pre-order capped at config.MaxProviderAttempts.
// c may be nil (used by non-HTTP callers/tests); when present it is only
// used for request-scoped logging.
func Resolve(c *gin.Context, requestedModel string, modelType model.ModelType, relayMode int, targetProviderHeader string) ([]model.Candidate, error) {
	systemName, providerFromModel := adaptor.SplitModelProvider(requestedModel)
	if systemName == "" {
		return nil, relaymodel.ErrValidation("model is required")
	}

	targetProvider := targetProviderHeader
	if targetProvider == "" {
		targetProvider = providerFromModel
	}

	all, err := model.FindCandidates(systemName, modelType, "")
	if err != nil {
		return nil, errors.Wrap(err, "load candidates")
	}
	all = filterByEndpoint(all, relayMode)
	if len(all) == 0 {
		return nil, relaymodel.ErrNotFound("no provider configured for model: " + systemName)
	}

	candidates := all
	if targetProvider != "" {
		filtered, err := model.FindCandidates(systemName, modelType, targetProvider)
		if err != nil {
			return nil, errors.Wrap(err, "load filtered candidates")
		}
		filtered = filterByEndpoint(filtered, relayMode)
		// FindCandidates itself falls back to the unfiltered set when the
		// name matches nothing; that fallback carries no provider of this name.
		if len(filtered) > 0 && filtered[0].Provider.Name == targetProvider {
			candidates = filtered
		} else if c != nil {
			gmw.GetLogger(c).Warn("target provider filter matched nothing, falling back to unfiltered candidates",
				zap.String("model", systemName), zap.String("target_provider", targetProvider))
		}
	}

	return preOrder(candidates, config.MaxProviderAttempts), nil
}

// filterByEndpoint drops candidates whose provider type doesn't list
// relayMode among its default endpoints (spec.md §4.4 step 2, grounded on
// the teacher's per-channel supported-endpoint gating), e.g. an
// openai-responses-only provider never serves /v1/messages traffic even
// if an admin also pointed a "claude" logical model at it.
func filterByEndpoint(candidates []model.Candidate, relayMode int) []model.Candidate {
	out := make([]model.Candidate, 0, len(candidates))
	for _, c := range candidates {
		endpoints := channeltype.DefaultEndpointsForProviderType(c.Provider.Type)
		if channeltype.IsEndpointSupported(relayMode, endpoints) {
			out = append(out, c)
		}
	}
	return out
}

// preOrder performs repeated weighted-random sampling without replacement
// (spec.md §4.4 step 6), capped at maxAttempts. Candidates with weight==0
// are excluded from random draws but remain eligible when they are the
// only ones left (spec.md §4.4 step 5).
func preOrder(candidates []model.Candidate, maxAttempts int) []model.Candidate {
	pool := append([]model.Candidate(nil), candidates...)
	limit := len(pool)
	if maxAttempts > 0 && maxAttempts < limit {
		limit = maxAttempts
	}

	ordered := make([]model.Candidate, 0, limit)
	for len(ordered) < limit && len(pool) > 0 {
		idx := weightedDrawIndex(pool)
		ordered = append(ordered, pool[idx])
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	return ordered
}

// weightedDrawIndex draws r in [0, Σweight) and returns the index of the
// first candidate whose cumulative weight exceeds r (spec.md §4.4 step 5).
// If every candidate has weight 0 (all excluded from the random draw), it
// falls back to a uniform draw over the whole pool so a zero-weight-only
// set is still usable.
func weightedDrawIndex(pool []model.Candidate) int {
	total := 0
	for _, c := range pool {
		total += c.Model.Weight
	}
	if total <= 0 {
		return rand.Intn(len(pool))
	}

	r := rand.Intn(total)
	cumulative := 0
	for i, c := range pool {
		if c.Model.Weight <= 0 {
			continue
		}
		cumulative += c.Model.Weight
		if r < cumulative {
			return i
		}
	}
	return len(pool) - 1
}
