package model

import (
	"gorm.io/gorm"
)

// Setting is a key/value row mirroring the teacher's Option table; it holds
// the INIT_CONFIG_FLAG sentinel and the serialized per-model rate-limit
// override map loaded at startup by ratelimit.LoadOverrides.
type Setting struct {
	Key   string `json:"key" gorm:"primaryKey;size:128"`
	Value string `json:"value" gorm:"type:text"`
}

func (Setting) TableName() string { return "settings" }

// GetSetting returns the stored value for key, or "" if unset.
func GetSetting(key string) (string, error) {
	var setting Setting
	err := DB.Where("key = ?", key).First(&setting).Error
	switch {
	case err == nil:
		return setting.Value, nil
	case err == gorm.ErrRecordNotFound:
		return "", nil
	default:
		return "", wrapDBError(err, "load setting")
	}
}

// PutSetting upserts key=value using the same update-first, create-on-miss
// idiom as model/cost.go's UpdateUserRequestCostQuotaByRequestID, avoiding
// an ON CONFLICT clause whose syntax differs across sqlite/mysql/postgres.
func PutSetting(key, value string) error {
	tx := DB.Model(&Setting{}).Where("key = ?", key).Update("value", value)
	if tx.Error != nil {
		return wrapDBError(tx.Error, "update setting")
	}
	if tx.RowsAffected > 0 {
		return nil
	}

	if err := DB.Create(&Setting{Key: key, Value: value}).Error; err != nil {
		return wrapDBError(err, "create setting")
	}
	return nil
}
