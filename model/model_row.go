package model

import (
	"time"

	"github.com/Laisky/errors/v2"
)

// ModelType constrains ModelRow.ModelType to the two endpoint families the
// resolver filters on (spec.md §3).
type ModelType string

const (
	ModelTypeChat      ModelType = "chat"
	ModelTypeEmbedding ModelType = "embedding"
)

// ModelRow is the Go type for the "models" table; named ModelRow (not
// Model) to avoid colliding with the package name, exactly as the teacher
// dodges the same collision for its channel/model rows.
type ModelRow struct {
	Id            int       `json:"id" gorm:"primaryKey"`
	ProviderId    int       `json:"providerId" gorm:"not null;index:idx_provider_system_name,unique"`
	SystemName    string    `json:"systemName" gorm:"size:128;not null;index:idx_provider_system_name,unique"`
	RemoteId      string    `json:"remoteId" gorm:"size:128"`
	ModelType     ModelType `json:"modelType" gorm:"size:16;not null"`
	Weight        int       `json:"weight" gorm:"not null;default:1"`
	ContextLength int       `json:"contextLength"`
	Prices        string    `json:"prices" gorm:"type:text"`
	CreatedAt     time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

func (ModelRow) TableName() string { return "models" }

// Candidate pairs a ModelRow with its owning Provider, the unit the
// resolver's weighted sampling operates over (spec.md §4.4).
type Candidate struct {
	Model    ModelRow
	Provider Provider
}

// FindCandidates returns every (ModelRow, Provider) pair whose systemName
// matches and whose ModelType matches the requesting endpoint, optionally
// narrowed to a single provider name. An empty providerName (or a
// providerName that matches nothing) returns the unfiltered set. The
// fallback itself is silent; the resolver recognizes it (no returned
// provider carries providerName) and logs the warning.
func FindCandidates(systemName string, modelType ModelType, providerName string) ([]Candidate, error) {
	if systemName == "" {
		return nil, errors.New("system name is empty")
	}

	if providerName != "" {
		filtered, err := findCandidates(systemName, modelType, providerName)
		if err != nil {
			return nil, err
		}
		if len(filtered) > 0 {
			return filtered, nil
		}
	}

	return findCandidates(systemName, modelType, "")
}

func findCandidates(systemName string, modelType ModelType, providerName string) ([]Candidate, error) {
	var rows []ModelRow
	query := DB.Where("system_name = ? AND model_type = ?", systemName, modelType)
	if err := query.Find(&rows).Error; err != nil {
		return nil, wrapDBError(err, "find candidate models")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	providerIDs := make([]int, 0, len(rows))
	for _, row := range rows {
		providerIDs = append(providerIDs, row.ProviderId)
	}

	var providers []Provider
	providerQuery := DB.Where("id IN ? AND deleted = ?", providerIDs, false)
	if providerName != "" {
		providerQuery = providerQuery.Where("name = ?", providerName)
	}
	if err := providerQuery.Find(&providers).Error; err != nil {
		return nil, wrapDBError(err, "find candidate providers")
	}

	providersByID := make(map[int]Provider, len(providers))
	for _, p := range providers {
		providersByID[p.Id] = p
	}

	candidates := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		provider, ok := providersByID[row.ProviderId]
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{Model: row, Provider: provider})
	}
	return candidates, nil
}

// DistinctSystemNames returns every distinct system name across all
// configured models, for GET /v1/models (spec.md §4.10).
func DistinctSystemNames() ([]string, error) {
	var names []string
	if err := DB.Model(&ModelRow{}).Distinct().Pluck("system_name", &names).Error; err != nil {
		return nil, wrapDBError(err, "list distinct model names")
	}
	return names, nil
}
