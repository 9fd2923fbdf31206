package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAuthenticateAPIKey(t *testing.T) {
	setupTestDB(t)

	key := &ApiKey{Key: "sk-live-abc", RpmLimit: 60, TpmLimit: 60000}
	require.NoError(t, DB.Create(key).Error)

	t.Run("valid key stamps last seen", func(t *testing.T) {
		got, err := AuthenticateAPIKey("sk-live-abc")
		require.NoError(t, err)
		require.Equal(t, key.Id, got.Id)
		require.WithinDuration(t, time.Now(), got.LastSeen, 2*time.Second)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := AuthenticateAPIKey("sk-does-not-exist")
		require.ErrorIs(t, err, errInvalidAPIKey)
	})

	t.Run("empty bearer", func(t *testing.T) {
		_, err := AuthenticateAPIKey("")
		require.ErrorIs(t, err, errInvalidAPIKey)
	})

	t.Run("revoked key rejected", func(t *testing.T) {
		revoked := &ApiKey{Key: "sk-revoked", Revoked: true}
		require.NoError(t, DB.Create(revoked).Error)

		_, err := AuthenticateAPIKey("sk-revoked")
		require.ErrorIs(t, err, errInvalidAPIKey)
	})

	t.Run("expired key rejected", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		expired := &ApiKey{Key: "sk-expired", ExpiresAt: &past}
		require.NoError(t, DB.Create(expired).Error)

		_, err := AuthenticateAPIKey("sk-expired")
		require.ErrorIs(t, err, errInvalidAPIKey)
	})
}

func TestEnsureAPIKeyByExternalID(t *testing.T) {
	setupTestDB(t)

	first, err := EnsureAPIKeyByExternalID("ext-1", "sk-a", 60, 60000)
	require.NoError(t, err)
	require.NotZero(t, first.Id)

	second, err := EnsureAPIKeyByExternalID("ext-1", "sk-b-ignored", 10, 10)
	require.NoError(t, err)
	require.Equal(t, first.Id, second.Id)
	require.Equal(t, "sk-a", second.Key)
}

func TestSecureCompare(t *testing.T) {
	require.True(t, SecureCompare("shared-secret", "shared-secret"))
	require.False(t, SecureCompare("shared-secret", "other"))
}
