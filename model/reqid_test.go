package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClaimReqIdNewRequest(t *testing.T) {
	setupTestDB(t)

	outcome, completion, err := ClaimReqId(1, "req-123", "gpt-4o", `{"messages":[]}`)
	require.NoError(t, err)
	require.Equal(t, DedupNewRequest, outcome)
	require.Equal(t, CompletionStatusPending, completion.Status)
}

func TestClaimReqIdInFlight(t *testing.T) {
	setupTestDB(t)

	_, first, err := ClaimReqId(1, "req-456", "gpt-4o", `{}`)
	require.NoError(t, err)

	outcome, second, err := ClaimReqId(1, "req-456", "gpt-4o", `{}`)
	require.NoError(t, err)
	require.Equal(t, DedupInFlight, outcome)
	require.Equal(t, first.Id, second.Id)
}

func TestClaimReqIdCacheHit(t *testing.T) {
	setupTestDB(t)

	_, completion, err := ClaimReqId(1, "req-789", "gpt-4o", `{}`)
	require.NoError(t, err)

	require.NoError(t, FinalizeReqId(1, "req-789", completion.Id, CompletionStatusCompleted,
		`{"choices":[]}`, 10, 5, 120, 900, `{"choices":[]}`, "openai-chat"))

	outcome, cached, err := ClaimReqId(1, "req-789", "gpt-4o", `{}`)
	require.NoError(t, err)
	require.Equal(t, DedupCacheHit, outcome)
	require.True(t, cached.HasCachedResponse())
	require.Equal(t, CompletionStatusCompleted, cached.Status)
}

func TestClaimReqIdInvalidFormat(t *testing.T) {
	setupTestDB(t)

	_, _, err := ClaimReqId(1, "has a space", "gpt-4o", `{}`)
	require.Error(t, err)
}

func TestFinalizeReqIdOnError(t *testing.T) {
	setupTestDB(t)

	_, completion, err := ClaimReqId(1, "req-err", "gpt-4o", `{}`)
	require.NoError(t, err)

	require.NoError(t, FinalizeReqIdOnError(1, "req-err", completion.Id))

	final, err := GetCompletion(completion.Id)
	require.NoError(t, err)
	require.Equal(t, CompletionStatusFailed, final.Status)
}

func TestFinalizeCompletionRejectsPending(t *testing.T) {
	setupTestDB(t)

	completion, err := CreatePendingCompletion(1, "gpt-4o", "{}", "")
	require.NoError(t, err)

	err = FinalizeCompletion(completion.Id, CompletionStatusPending, "", 0, 0, 0, 0, "", "")
	require.Error(t, err)
}

func TestFinalizeCompletionIsMonotone(t *testing.T) {
	setupTestDB(t)

	completion, err := CreatePendingCompletion(1, "gpt-4o", "{}", "")
	require.NoError(t, err)

	require.NoError(t, FinalizeCompletion(completion.Id, CompletionStatusCompleted, "done", 1, 1, 10, 20, "", ""))

	// Second finalize attempt affects zero rows since status is no longer pending.
	err = FinalizeCompletion(completion.Id, CompletionStatusFailed, "retry", 0, 0, 0, 0, "", "")
	require.Error(t, err)
}
