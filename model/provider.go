package model

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"

	"github.com/laiskygw/llm-gateway/common"
	netutil "github.com/laiskygw/llm-gateway/common/network"
)

// ProviderType enumerates the upstream dialects the gateway can speak.
type ProviderType string

const (
	ProviderTypeOpenAI          ProviderType = "openai"
	ProviderTypeOpenAIResponses ProviderType = "openai-responses"
	ProviderTypeAnthropic       ProviderType = "anthropic"
	ProviderTypeAzure           ProviderType = "azure"
	ProviderTypeOllama          ProviderType = "ollama"
)

// Provider is an admin-managed upstream endpoint. ApiKey (the field) is
// stored AES-GCM encrypted via common.EncryptSecret; DecryptedAPIKey returns
// the live credential for the failover executor.
type Provider struct {
	Id         int            `json:"id" gorm:"primaryKey"`
	Name       string         `json:"name" gorm:"uniqueIndex;size:128;not null"`
	Type       ProviderType   `json:"type" gorm:"size:32;not null"`
	BaseUrl    string         `json:"baseUrl" gorm:"size:512;not null"`
	ApiKey     string         `json:"-" gorm:"size:512"`
	ApiVersion string         `json:"apiVersion" gorm:"size:32"`
	ProxyUrl   string         `json:"proxyUrl" gorm:"size:512"`
	Deleted    bool           `json:"deleted" gorm:"index;not null;default:false"`
	CreatedAt  time.Time      `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt  time.Time      `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Provider) TableName() string { return "providers" }

// DecryptedAPIKey returns the plaintext upstream credential.
func (p *Provider) DecryptedAPIKey() (string, error) {
	plain, err := common.DecryptSecret(p.ApiKey)
	if err != nil {
		return "", errors.Wrap(err, "decrypt provider api key")
	}
	return plain, nil
}

// SetAPIKey encrypts and stores plain as the provider's upstream credential.
func (p *Provider) SetAPIKey(plain string) error {
	encrypted, err := common.EncryptSecret(plain)
	if err != nil {
		return errors.Wrap(err, "encrypt provider api key")
	}
	p.ApiKey = encrypted
	return nil
}

// ValidateBaseURL rejects base URLs that resolve to loopback/private/
// link-local ranges, guarding the admin-configured value against SSRF
// before the failover executor ever dials it (spec.md §5-8 supplemental note).
func (p *Provider) ValidateBaseURL(ctx context.Context) error {
	_, err := netutil.ValidateExternalURL(ctx, p.BaseUrl)
	return err
}

// GetProviderByName loads a non-deleted provider by its unique name.
func GetProviderByName(name string) (*Provider, error) {
	var provider Provider
	if err := DB.Where("name = ? AND deleted = ?", name, false).First(&provider).Error; err != nil {
		return nil, wrapDBError(err, "load provider by name")
	}
	return &provider, nil
}
