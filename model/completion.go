package model

import (
	"time"

	"github.com/Laisky/errors/v2"
)

// CompletionStatus is the monotone lifecycle state of a Completion
// (spec.md §3 invariant: pending -> {completed|failed|aborted}, no
// back-transitions).
type CompletionStatus string

const (
	CompletionStatusPending   CompletionStatus = "pending"
	CompletionStatusCompleted CompletionStatus = "completed"
	CompletionStatusFailed    CompletionStatus = "failed"
	CompletionStatusAborted   CompletionStatus = "aborted"
)

// UnknownTokenCount is the sentinel used for "unknown; do not charge"
// prompt/completion token counts (spec.md §3).
const UnknownTokenCount = -1

// Completion is one request/response pair as seen by a client, including
// enough of the request and response to serve a dedup cache_hit.
type Completion struct {
	Id               int              `json:"id" gorm:"primaryKey"`
	ApiKeyId         int              `json:"apiKeyId" gorm:"index;not null"`
	ModelId          *int             `json:"modelId"`
	RequestedModel   string           `json:"requestedModel" gorm:"size:256;not null"`
	Prompt           string           `json:"prompt" gorm:"type:text"`
	PromptTokens     int              `json:"promptTokens" gorm:"not null;default:-1"`
	Completion       string           `json:"completion" gorm:"type:text"`
	CompletionTokens int              `json:"completionTokens" gorm:"not null;default:-1"`
	Status           CompletionStatus `json:"status" gorm:"size:16;not null;index"`
	TTFTMs           int              `json:"ttftMs" gorm:"not null;default:-1"`
	DurationMs       int              `json:"durationMs" gorm:"not null;default:-1"`
	CachedBody       string           `json:"-" gorm:"type:text"`
	CachedFormat     string           `json:"-" gorm:"size:32"`
	ReqId            string           `json:"reqId" gorm:"size:128;index"`
	CreatedAt        time.Time        `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt        time.Time        `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Completion) TableName() string { return "completions" }

// HasCachedResponse reports whether enough data is stored to serve a dedup
// cache_hit without re-asking upstream (spec.md §4.6).
func (c *Completion) HasCachedResponse() bool {
	return c.CachedBody != ""
}

// CreatePendingCompletion inserts a new Completion in the pending state,
// used both for plain requests and for the dedup gate's pre-created row.
func CreatePendingCompletion(apiKeyID int, requestedModel, prompt, reqID string) (*Completion, error) {
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
	if err := DB.Create(completion).Error; err != nil {
		return nil, wrapDBError(err, "create pending completion")
	}
	return completion, nil
}

// FinalizeCompletion moves a completion to a terminal status exactly once,
// enforcing the monotone pending -> terminal transition in application code
// (not just in the schema) so SQLite and Postgres/MySQL behave alike.
func FinalizeCompletion(id int, status CompletionStatus, body string, promptTokens, completionTokens, ttftMs, durationMs int, cachedBody, cachedFormat string) error {
	if status == CompletionStatusPending {
		return errors.New("cannot finalize a completion into the pending state")
	}

	tx := DB.Model(&Completion{}).
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
	if tx.Error != nil {
		return wrapDBError(tx.Error, "finalize completion")
	}
	if tx.RowsAffected == 0 {
		return errors.Errorf("completion %d already finalized or missing", id)
	}
	return nil
}

// GetCompletion loads a completion by id.
func GetCompletion(id int) (*Completion, error) {
	var completion Completion
	if err := DB.First(&completion, "id = ?", id).Error; err != nil {
		return nil, wrapDBError(err, "load completion")
	}
	return &completion, nil
}

// Usage is the GET /api/usage summary for one ApiKey (spec.md §6).
type Usage struct {
	PromptTokens     int64 `json:"promptTokens"`
	CompletionTokens int64 `json:"completionTokens"`
	TotalTokens      int64 `json:"totalTokens"`
	RequestCount     int64 `json:"requestCount"`
}

// TotalUsageForAPIKey sums the charged token counts across every completion
// owned by apiKeyID, whatever its status. Rows with UnknownTokenCount (-1) in either
// column are excluded from the sums entirely (spec.md §3: "-1 means unknown;
// do not charge") but still count toward RequestCount.
func TotalUsageForAPIKey(apiKeyID int) (Usage, error) {
	var usage Usage
	if err := DB.Model(&Completion{}).
		Where("api_key_id = ?", apiKeyID).
		Count(&usage.RequestCount).Error; err != nil {
		return Usage{}, wrapDBError(err, "count completions")
	}

	row := struct {
		PromptTokens     int64
		CompletionTokens int64
	}{}
	if err := DB.Model(&Completion{}).
		Where("api_key_id = ? AND prompt_tokens >= 0 AND completion_tokens >= 0", apiKeyID).
		Select("COALESCE(SUM(prompt_tokens), 0) AS prompt_tokens, COALESCE(SUM(completion_tokens), 0) AS completion_tokens").
		Scan(&row).Error; err != nil {
		return Usage{}, wrapDBError(err, "sum completion usage")
	}

	usage.PromptTokens = row.PromptTokens
	usage.CompletionTokens = row.CompletionTokens
	usage.TotalTokens = row.PromptTokens + row.CompletionTokens
	return usage, nil
}
