package model

import (
	"regexp"
	"time"

	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
)

// ReqIdState is the dedup entry's lifecycle (spec.md §3).
type ReqIdState string

const (
	ReqIdStateInFlight  ReqIdState = "in_flight"
	ReqIdStateFinalized ReqIdState = "finalized"
)

// ReqIdPattern is the wire-format validation for the ReqId header
// (spec.md §4.6): invalid values are rejected before reaching the gate.
var ReqIdPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// ReqIdEntry is the dedup key: (apiKeyId, reqId) is unique while the entry
// is alive, resolving to the Completion it owns.
type ReqIdEntry struct {
	Id           int        `json:"id" gorm:"primaryKey"`
	ApiKeyId     int        `json:"apiKeyId" gorm:"not null;index:idx_apikey_reqid,unique"`
	ReqId        string     `json:"reqId" gorm:"size:128;not null;index:idx_apikey_reqid,unique"`
	CompletionId int        `json:"completionId" gorm:"not null"`
	State        ReqIdState `json:"state" gorm:"size:16;not null"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"autoCreateTime"`
}

func (ReqIdEntry) TableName() string { return "req_id_entries" }

// DedupOutcome is the gate's three-way classification (spec.md §4.6).
type DedupOutcome string

const (
	DedupCacheHit    DedupOutcome = "cache_hit"
	DedupInFlight    DedupOutcome = "in_flight"
	DedupNewRequest  DedupOutcome = "new_request"
)

// ClaimReqId implements spec.md §4.6's three-way dedup decision. The
// "no entry -> in_flight entry + pending completion" transition is meant to
// be a single atomic operation; rather than branch on dialect-specific
// unique-violation error codes, this mirrors model/cost.go's
// update-first-create-on-miss idiom in reverse: look up first (the common
// case under real concurrency, where a racing request already created the
// row), and only attempt the insert when the lookup comes up empty. If the
// insert loses a race, a second lookup classifies the winner's row.
func ClaimReqId(apiKeyID int, reqID, requestedModel, prompt string) (DedupOutcome, *Completion, error) {
	if !ReqIdPattern.MatchString(reqID) {
		return "", nil, errors.Errorf("invalid req id: %s", reqID)
	}

	if outcome, completion, err := lookupReqId(apiKeyID, reqID); err == nil {
		return outcome, completion, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, err
	}

	var entry ReqIdEntry
	var completion *Completion
	txErr := DB.Transaction(func(tx *gorm.DB) error {
		created, err := createPendingCompletionTx(tx, apiKeyID, requestedModel, prompt, reqID)
		if err != nil {
			return err
		}
		completion = created

		entry = ReqIdEntry{
			ApiKeyId:     apiKeyID,
			ReqId:        reqID,
			CompletionId: created.Id,
			State:        ReqIdStateInFlight,
		}
		return tx.Create(&entry).Error
	})

	if txErr == nil {
		return DedupNewRequest, completion, nil
	}

	// Lost the race: another request committed its entry between our lookup
	// and our insert. Re-read to classify it instead of surfacing the
	// constraint violation.
	outcome, winnerCompletion, lookupErr := lookupReqId(apiKeyID, reqID)
	if lookupErr != nil {
		return "", nil, wrapDBError(txErr, "claim req id")
	}
	return outcome, winnerCompletion, nil
}

func lookupReqId(apiKeyID int, reqID string) (DedupOutcome, *Completion, error) {
	var entry ReqIdEntry
	if err := DB.Where("api_key_id = ? AND req_id = ?", apiKeyID, reqID).First(&entry).Error; err != nil {
		return "", nil, err
	}

	completion, err := GetCompletion(entry.CompletionId)
	if err != nil {
		return "", nil, err
	}

	if completion.Status == CompletionStatusPending {
		return DedupInFlight, completion, nil
	}
	return DedupCacheHit, completion, nil
}

// FinalizeReqId updates the pre-created completion with its terminal status
// and marks the dedup entry finalized (spec.md §4.6).
func FinalizeReqId(apiKeyID int, reqID string, completionID int, status CompletionStatus, body string, promptTokens, completionTokens, ttftMs, durationMs int, cachedBody, cachedFormat string) error {
	return DB.Transaction(func(tx *gorm.DB) error {
		if err := finalizeCompletionTx(tx, completionID, status, body, promptTokens, completionTokens, ttftMs, durationMs, cachedBody, cachedFormat); err != nil {
			return err
		}
		return tx.Model(&ReqIdEntry{}).
			Where("api_key_id = ? AND req_id = ?", apiKeyID, reqID).
			Update("state", ReqIdStateFinalized).Error
	})
}

// FinalizeReqIdOnError marks the dedup entry's completion failed and frees
// the slot when a hard failure occurs before any response was produced.
func FinalizeReqIdOnError(apiKeyID int, reqID string, completionID int) error {
	return FinalizeReqId(apiKeyID, reqID, completionID, CompletionStatusFailed, "", UnknownTokenCount, UnknownTokenCount, UnknownTokenCount, UnknownTokenCount, "", "")
}

func createPendingCompletionTx(tx *gorm.DB, apiKeyID int, requestedModel, prompt, reqID string) (*Completion, error) {
	completion := &Completion{
		ApiKeyId:         apiKeyID,
		RequestedModel:   requestedModel,
		Prompt:           prompt,
		PromptTokens:     UnknownTokenCount,
		CompletionTokens: UnknownTokenCount,
		Status:           CompletionStatusPending,
		TTFTMs:           UnknownTokenCount,
		DurationMs:       UnknownTokenCount,
		ReqId:            reqID,
	}
	if err := tx.Create(completion).Error; err != nil {
		return nil, wrapDBError(err, "create pending completion")
	}
	return completion, nil
}

func finalizeCompletionTx(tx *gorm.DB, id int, status CompletionStatus, body string, promptTokens, completionTokens, ttftMs, durationMs int, cachedBody, cachedFormat string) error {
	if status == CompletionStatusPending {
		return errors.New("cannot finalize a completion into the pending state")
	}

	result := tx.Model(&Completion{}).
		Where("id = ? AND status = ?", id, CompletionStatusPending).
		Updates(map[string]any{
			"status":            status,
			"completion":        body,
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"ttft_ms":           ttftMs,
			"duration_ms":       durationMs,
			"cached_body":       cachedBody,
			"cached_format":     cachedFormat,
		})
	if result.Error != nil {
		return wrapDBError(result.Error, "finalize completion")
	}
	if result.RowsAffected == 0 {
		return errors.Errorf("completion %d already finalized or missing", id)
	}
	return nil
}
