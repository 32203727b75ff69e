package entities

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// APIKeyType represents key classes
type APIKeyType string

const (
	APIKeyTypeDev        APIKeyType = "dev"
	APIKeyTypeProduction APIKeyType = "production"
	APIKeyTypeRestricted APIKeyType = "restricted"
)

// APIKeyStatus represents key lifecycle state
type APIKeyStatus string

const (
	APIKeyStatusActive  APIKeyStatus = "active"
	APIKeyStatusRevoked APIKeyStatus = "revoked"
	APIKeyStatusExpired APIKeyStatus = "expired"
	APIKeyStatusRotated APIKeyStatus = "rotated"
)

// Permission strings
const (
	PermWalletsCreate   = "wallets:create"
	PermWalletsDeploy   = "wallets:deploy"
	PermWalletsRead     = "wallets:read"
	PermPaymasterFund   = "paymaster:fund"
	PermPaymasterRead   = "paymaster:read"
	PermAnalyticsRead   = "analytics:read"
	PermKeysCreate      = "keys:create"
	PermAdminAll        = "admin:*"
	PermProjectRead     = "project:read"
	PermProjectDelete   = "project:delete"
	PermProjectTransfer = "project:transfer"
)

// DefaultKeyPermissions are assigned when none are supplied at creation
var DefaultKeyPermissions = []string{PermWalletsCreate, PermWalletsDeploy, PermWalletsRead}

// RotationGracePeriod is how long a rotated key keeps authenticating
const RotationGracePeriod = 24 * time.Hour

// IPAllowlistEntry is an IP or IPv4 CIDR admitted for a production key
type IPAllowlistEntry struct {
	IP          string    `json:"ip"`
	Description string    `json:"description,omitempty"`
	AddedAt     time.Time `json:"addedAt"`
}

// APIKey represents a project API key. The plaintext has form
// npay_proj_<projectId>_<keyId>_<type>_<hash> and is shown once at creation;
// only the AEAD ciphertext, a preview and a keyed HMAC index are stored.
type APIKey struct {
	ID           string             `json:"id"`
	ProjectID    string             `json:"projectId"`
	Name         string             `json:"name"`
	EncryptedKey string             `json:"-"`
	KeyIndex     string             `json:"-"` // HMAC of plaintext, O(1) lookup
	KeyPreview   string             `json:"keyPreview"`
	Type         APIKeyType         `json:"type"`
	Permissions  []string           `json:"permissions"`
	IPAllowlist  []IPAllowlistEntry `json:"ipAllowlist"`
	CreatedBy    string             `json:"createdBy"`
	LastUsedAt   null.Time          `json:"lastUsedAt,omitempty"`
	UsageCount   int64              `json:"usageCount"`
	ExpiresAt    null.Time          `json:"expiresAt,omitempty"`
	RotatedAt    null.Time          `json:"rotatedAt,omitempty"`
	Status       APIKeyStatus       `json:"status"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// HasPermission checks a key's permission set
func (k *APIKey) HasPermission(perm string) bool {
	for _, p := range k.Permissions {
		if p == perm || p == PermAdminAll {
			return true
		}
	}
	return false
}

// InRotationGrace reports whether a rotated key is still inside its grace window
func (k *APIKey) InRotationGrace(now time.Time) bool {
	return k.Status == APIKeyStatusRotated &&
		k.RotatedAt.Valid &&
		now.Before(k.RotatedAt.Time.Add(RotationGracePeriod))
}

// CreateAPIKeyInput represents key creation input
type CreateAPIKeyInput struct {
	Name        string             `json:"name" binding:"required,min=1,max=100"`
	Type        APIKeyType         `json:"type" binding:"required"`
	Permissions []string           `json:"permissions,omitempty"`
	IPAllowlist []IPAllowlistEntry `json:"ipAllowlist,omitempty"`
	ExpiresAt   *time.Time         `json:"expiresAt,omitempty"`
}

// UpdateIPAllowlistInput adds or removes allowlist entries
type UpdateIPAllowlistInput struct {
	Add    []IPAllowlistEntry `json:"add,omitempty"`
	Remove []string           `json:"remove,omitempty"`
}

// CreateAPIKeyResponse carries the plaintext exactly once
type CreateAPIKeyResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Key        string     `json:"key"`
	KeyPreview string     `json:"keyPreview"`
	Type       APIKeyType `json:"type"`
	Permissions []string  `json:"permissions"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// ParsedAPIKey is the result of splitting a presented plaintext key
type ParsedAPIKey struct {
	ProjectID string
	KeyID     string
	Type      APIKeyType
	Hash      string
}
