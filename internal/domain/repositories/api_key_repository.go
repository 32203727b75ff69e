package repositories

import (
	"context"

	"nexuspay.backend/internal/domain/entities"
)

// APIKeyRepository defines API key data operations
type APIKeyRepository interface {
	Create(ctx context.Context, key *entities.APIKey) error
	GetByID(ctx context.Context, projectID, keyID string) (*entities.APIKey, error)
	// GetByKeyIndex resolves a presented key by its keyed-HMAC index.
	GetByKeyIndex(ctx context.Context, index string) (*entities.APIKey, error)
	// ListActiveForProject returns active and rotated keys for the
	// decrypt-scan fallback during a rotation grace window.
	ListActiveForProject(ctx context.Context, projectID string) ([]*entities.APIKey, error)
	ListByProject(ctx context.Context, projectID string) ([]*entities.APIKey, error)
	Update(ctx context.Context, key *entities.APIKey) error
	UpdateStatus(ctx context.Context, projectID, keyID string, status entities.APIKeyStatus) error
	RevokeAllForProject(ctx context.Context, projectID string) error
	// RecordUse bumps lastUsedAt and usageCount; fire-and-forget.
	RecordUse(ctx context.Context, keyID string) error
}

// APIKeyUsageRepository defines usage-log operations
type APIKeyUsageRepository interface {
	CreateBatch(ctx context.Context, rows []*entities.APIKeyUsage) error
	ListByKey(ctx context.Context, apiKeyID string, limit, offset int) ([]*entities.APIKeyUsage, int64, error)
}
