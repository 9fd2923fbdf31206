package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func seedProviderAndModel(t *testing.T, providerName, systemName string, weight int) (Provider, ModelRow) {
	t.Helper()
	provider := Provider{Name: providerName, Type: ProviderTypeOpenAI, BaseUrl: "https://api.example.com"}
	require.NoError(t, DB.Create(&provider).Error)

	row := ModelRow{ProviderId: provider.Id, SystemName: systemName, ModelType: ModelTypeChat, Weight: weight}
	require.NoError(t, DB.Create(&row).Error)
	return provider, row
}

func TestFindCandidatesUnfiltered(t *testing.T) {
	setupTestDB(t)

	seedProviderAndModel(t, "primary", "gpt-4o", 5)
	seedProviderAndModel(t, "secondary", "gpt-4o", 3)
	seedProviderAndModel(t, "primary", "gpt-4o-mini", 1)

	candidates, err := FindCandidates("gpt-4o", ModelTypeChat, "")
	require.NoError(t, err)
	require.Len(t, candidates, 2)
}

func TestFindCandidatesFilteredByProvider(t *testing.T) {
	setupTestDB(t)

	seedProviderAndModel(t, "primary", "gpt-4o", 5)
	seedProviderAndModel(t, "secondary", "gpt-4o", 3)

	candidates, err := FindCandidates("gpt-4o", ModelTypeChat, "secondary")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "secondary", candidates[0].Provider.Name)
}

func TestFindCandidatesFallsBackWhenProviderFilterEmpty(t *testing.T) {
	setupTestDB(t)

	seedProviderAndModel(t, "primary", "gpt-4o", 5)

	candidates, err := FindCandidates("gpt-4o", ModelTypeChat, "nonexistent")
	require.NoError(t, err)
	require.Len(t, candidates, 1, "should fall back to the unfiltered set")
}

func TestFindCandidatesNoMatch(t *testing.T) {
	setupTestDB(t)

	candidates, err := FindCandidates("does-not-exist", ModelTypeChat, "")
	require.NoError(t, err)
	require.Empty(t, candidates)
}

func TestDistinctSystemNames(t *testing.T) {
	setupTestDB(t)

	seedProviderAndModel(t, "primary", "gpt-4o", 1)
	seedProviderAndModel(t, "secondary", "gpt-4o", 1)
	seedProviderAndModel(t, "primary", "claude-3-5-sonnet", 1)

	names, err := DistinctSystemNames()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"gpt-4o", "claude-3-5-sonnet"}, names)
}
