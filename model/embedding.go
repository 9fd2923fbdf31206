package model

import "time"

// Embedding is one embeddings request/response pair.
type Embedding struct {
	Id          int       `json:"id" gorm:"primaryKey"`
	ApiKeyId    int       `json:"apiKeyId" gorm:"index;not null"`
	ModelId     int       `json:"modelId" gorm:"not null"`
	Input       string    `json:"input" gorm:"type:text"`
	InputTokens int       `json:"inputTokens" gorm:"not null;default:-1"`
	Vectors     string    `json:"-" gorm:"type:text"`
	Dimensions  int       `json:"dimensions"`
	Status      string    `json:"status" gorm:"size:16;not null;index"`
	DurationMs  int       `json:"durationMs" gorm:"not null;default:-1"`
	CreatedAt   time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

func (Embedding) TableName() string { return "embeddings" }

// CreateEmbedding persists a completed embeddings request. Unlike
// Completion, embeddings are created once at the end of the request rather
// than pre-created, since the endpoint is never streamed and has no dedup path.
func CreateEmbedding(apiKeyID, modelID int, input string, inputTokens int, vectors string, dimensions int, status string, durationMs int) (*Embedding, error) {
	embedding := &Embedding{
		ApiKeyId:    apiKeyID,
		ModelId:     modelID,
		Input:       input,
		InputTokens: inputTokens,
		Vectors:     vectors,
		Dimensions:  dimensions,
		Status:      status,
		DurationMs:  durationMs,
	}
	if err := DB.Create(embedding).Error; err != nil {
		return nil, wrapDBError(err, "create embedding")
	}
	return embedding, nil
}
