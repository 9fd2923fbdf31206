package dedup

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/laiskygw/llm-gateway/common"
	"github.com/laiskygw/llm-gateway/model"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	common.UsingSQLite, common.UsingMySQL, common.UsingPostgreSQL = true, false, false
	require.NoError(t, db.AutoMigrate(&model.ApiKey{}, &model.Completion{}, &model.ReqIdEntry{}))

	original := model.DB
	model.DB = db
	t.Cleanup(func() { model.DB = original })
}

func TestGate_ClaimNewRequestThenCacheHit(t *testing.T) {
	setupTestDB(t)
	gate := NewGate()

	result, err := gate.Claim(1, "req-1", "gpt-4o", `{}`)
	require.NoError(t, err)
	require.Equal(t, model.DedupNewRequest, result.Outcome)

	require.NoError(t, gate.Finalize(1, "req-1", result.Completion.Id, model.CompletionStatusCompleted,
		`{"choices":[]}`, 10, 5, 100, 200, `{"choices":[]}`, "openai-chat"))

	second, err := gate.Claim(1, "req-1", "gpt-4o", `{}`)
	require.NoError(t, err)
	require.Equal(t, model.DedupCacheHit, second.Outcome)
	require.True(t, second.Completion.HasCachedResponse())
}

func TestGate_ConcurrentClaimsCollapseViaSingleflight(t *testing.T) {
	setupTestDB(t)
	gate := NewGate()

	const n = 8
	results := make(chan model.DedupOutcome, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			r, err := gate.Claim(1, "req-race", "gpt-4o", `{}`)
			errs <- err
			if err == nil {
				results <- r.Outcome
			} else {
				results <- ""
			}
		}()
	}

	newRequestCount := 0
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
		switch <-results {
		case model.DedupNewRequest:
			newRequestCount++
		case model.DedupInFlight, model.DedupCacheHit:
		default:
			t.Fatal("unexpected empty outcome")
		}
	}
	require.Equal(t, 1, newRequestCount, "exactly one goroutine must win the claim")
}

func TestGate_FinalizeOnError(t *testing.T) {
	setupTestDB(t)
	gate := NewGate()

	result, err := gate.Claim(1, "req-err", "gpt-4o", `{}`)
	require.NoError(t, err)

	require.NoError(t, gate.FinalizeOnError(1, "req-err", result.Completion.Id))

	completion, err := model.GetCompletion(result.Completion.Id)
	require.NoError(t, err)
	require.Equal(t, model.CompletionStatusFailed, completion.Status)
}

func TestGate_RejectsInvalidReqId(t *testing.T) {
	setupTestDB(t)
	gate := NewGate()

	_, err := gate.Claim(1, "has a space", "gpt-4o", `{}`)
	require.Error(t, err)
}
