package model

import (
	"crypto/subtle"
	"time"

	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
)

// ApiKey is a client credential. Keys are soft-revoked (never hard-deleted)
// so Completion rows keep a valid foreign key for audit.
type ApiKey struct {
	Id         int        `json:"id" gorm:"primaryKey"`
	Key        string     `json:"-" gorm:"uniqueIndex;size:128;not null"`
	ExternalId string     `json:"externalId" gorm:"index;size:128"`
	Revoked    bool       `json:"revoked" gorm:"index;not null;default:false"`
	ExpiresAt  *time.Time `json:"expiresAt"`
	RpmLimit   int        `json:"rpmLimit" gorm:"not null;default:60"`
	TpmLimit   int        `json:"tpmLimit" gorm:"not null;default:60000"`
	Source     string     `json:"source" gorm:"size:64"`
	Comment    string     `json:"comment" gorm:"size:256"`
	LastSeen   time.Time  `json:"lastSeen"`
	CreatedAt  time.Time  `json:"createdAt" gorm:"autoCreateTime"`
}

// TableName pins the table name explicitly, following the teacher's
// practice of never relying on pluralization guesses for domain nouns that
// already end in a consonant cluster ("ApiKey" -> "api_keys" is the GORM
// default and is fine, but every other model below names itself too).
func (ApiKey) TableName() string { return "api_keys" }

var errInvalidAPIKey = errors.New("invalid API key")

// AuthenticateAPIKey looks up bearer, stamps lastSeen=now unconditionally
// (even on a failed lookup, mirroring spec.md §4.1: "lastSeen may still be
// updated at the moment of the failed lookup but the request is rejected"),
// and returns the row only if it is neither revoked nor expired.
func AuthenticateAPIKey(bearer string) (*ApiKey, error) {
	if bearer == "" {
		return nil, errInvalidAPIKey
	}

	var key ApiKey
	now := time.Now()
	tx := DB.Model(&ApiKey{}).
		Where("key = ?", bearer).
		Update("last_seen", now)
	if tx.Error != nil {
		return nil, wrapDBError(tx.Error, "stamp api key last_seen")
	}
	if tx.RowsAffected == 0 {
		return nil, errInvalidAPIKey
	}

	if err := DB.Where("key = ?", bearer).First(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidAPIKey
		}
		return nil, wrapDBError(err, "load api key")
	}

	if key.Revoked {
		return nil, errInvalidAPIKey
	}
	if key.ExpiresAt != nil && key.ExpiresAt.Before(now) {
		return nil, errInvalidAPIKey
	}

	key.LastSeen = now
	return &key, nil
}

// EnsureAPIKeyByExternalID implements the "ensured-by-external-id" creation
// path from spec.md §3: looks the key up by externalId, creating it with the
// supplied defaults on first sight. Used by the (out-of-scope) admin surface
// and exercised directly by tests here.
func EnsureAPIKeyByExternalID(externalID, key string, rpmLimit, tpmLimit int) (*ApiKey, error) {
	if externalID == "" {
		return nil, errors.New("external id is empty")
	}

	var existing ApiKey
	err := DB.Where("external_id = ?", externalID).First(&existing).Error
	switch {
	case err == nil:
		return &existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		created := &ApiKey{
			Key:        key,
			ExternalId: externalID,
			RpmLimit:   rpmLimit,
			TpmLimit:   tpmLimit,
			LastSeen:   time.Now(),
		}
		if err := DB.Create(created).Error; err != nil {
			return nil, wrapDBError(err, "create api key")
		}
		return created, nil
	default:
		return nil, wrapDBError(err, "lookup api key by external id")
	}
}

// SecureCompare performs a constant-time comparison, used for the
// ADMIN_SUPER_SECRET bearer check (spec.md §4.1) so the comparison time
// never leaks how many leading bytes of the secret matched.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
