package resolver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/laiskygw/llm-gateway/model"
)

func candidatesWithWeights(weights ...int) []model.Candidate {
	out := make([]model.Candidate, len(weights))
	for i, w := range weights {
		out[i] = model.Candidate{Model: model.ModelRow{Id: i + 1, Weight: w}}
	}
	return out
}

func TestPreOrder_CapsAtMaxAttempts(t *testing.T) {
	candidates := candidatesWithWeights(1, 1, 1, 1, 1)
	ordered := preOrder(candidates, 3)
	require.Len(t, ordered, 3)
}

func TestPreOrder_NoDuplicates(t *testing.T) {
	candidates := candidatesWithWeights(5, 3, 2, 1)
	ordered := preOrder(candidates, 10)
	require.Len(t, ordered, len(candidates))

	seen := make(map[int]bool)
	for _, c := range ordered {
		require.False(t, seen[c.Model.Id], "candidate must not repeat in one pre-order")
		seen[c.Model.Id] = true
	}
}

func TestPreOrder_AllZeroWeightStillUsable(t *testing.T) {
	candidates := candidatesWithWeights(0, 0, 0)
	ordered := preOrder(candidates, 3)
	require.Len(t, ordered, 3, "zero-weight-only candidates must still be selectable")
}

func TestPreOrder_ZeroWeightExcludedWhenOthersAvailable(t *testing.T) {
	candidates := candidatesWithWeights(0, 10)
	for i := 0; i < 50; i++ {
		ordered := preOrder(candidates, 1)
		require.Len(t, ordered, 1)
		require.Equal(t, 10, ordered[0].Model.Weight, "weight-0 candidate must never win while a positive-weight one exists")
	}
}
