package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/infrastructure/models"
)

// APIKeyRepository implements API key data operations
type APIKeyRepository struct {
	db *gorm.DB
}

// NewAPIKeyRepository creates a new API key repository
func NewAPIKeyRepository(db *gorm.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create creates a new API key
func (r *APIKeyRepository) Create(ctx context.Context, key *entities.APIKey) error {
	m, err := apiKeyToModel(key)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// GetByID gets a key by project + key ID
func (r *APIKeyRepository) GetByID(ctx context.Context, projectID, keyID string) (*entities.APIKey, error) {
	var m models.APIKey
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND id = ?", projectID, keyID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return apiKeyToEntity(&m)
}

// GetByKeyIndex resolves a presented key by its keyed-HMAC index
func (r *APIKeyRepository) GetByKeyIndex(ctx context.Context, index string) (*entities.APIKey, error) {
	var m models.APIKey
	err := r.db.WithContext(ctx).Where("key_index = ?", index).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return apiKeyToEntity(&m)
}

// ListActiveForProject returns active and rotated keys for the decrypt-scan
// fallback during a rotation grace window
func (r *APIKeyRepository) ListActiveForProject(ctx context.Context, projectID string) ([]*entities.APIKey, error) {
	var ms []models.APIKey
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND status IN ?", projectID,
			[]string{string(entities.APIKeyStatusActive), string(entities.APIKeyStatusRotated)}).
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return apiKeysToEntities(ms)
}

// ListByProject lists all keys for a project, newest first
func (r *APIKeyRepository) ListByProject(ctx context.Context, projectID string) ([]*entities.APIKey, error) {
	var ms []models.APIKey
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return apiKeysToEntities(ms)
}

// Update persists mutable key fields
func (r *APIKeyRepository) Update(ctx context.Context, key *entities.APIKey) error {
	perms, err := json.Marshal(key.Permissions)
	if err != nil {
		return err
	}
	allowlist, err := json.Marshal(key.IPAllowlist)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"name":         key.Name,
		"permissions":  string(perms),
		"ip_allowlist": string(allowlist),
		"expires_at":   key.ExpiresAt.Ptr(),
		"rotated_at":   key.RotatedAt.Ptr(),
		"status":       string(key.Status),
		"updated_at":   time.Now(),
	}

	result := r.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("project_id = ? AND id = ?", key.ProjectID, key.ID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// UpdateStatus transitions a key's lifecycle state
func (r *APIKeyRepository) UpdateStatus(ctx context.Context, projectID, keyID string, status entities.APIKeyStatus) error {
	result := r.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("project_id = ? AND id = ?", projectID, keyID).
		Updates(map[string]interface{}{
			"status":     string(status),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// RevokeAllForProject revokes every non-revoked key of a project
func (r *APIKeyRepository) RevokeAllForProject(ctx context.Context, projectID string) error {
	return r.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("project_id = ? AND status <> ?", projectID, string(entities.APIKeyStatusRevoked)).
		Updates(map[string]interface{}{
			"status":     string(entities.APIKeyStatusRevoked),
			"updated_at": time.Now(),
		}).Error
}

// RecordUse bumps lastUsedAt and usageCount
func (r *APIKeyRepository) RecordUse(ctx context.Context, keyID string) error {
	return r.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("id = ?", keyID).
		Updates(map[string]interface{}{
			"last_used_at": time.Now(),
			"usage_count":  gorm.Expr("usage_count + 1"),
		}).Error
}

func apiKeyToModel(k *entities.APIKey) (*models.APIKey, error) {
	perms, err := json.Marshal(k.Permissions)
	if err != nil {
		return nil, err
	}
	allowlist, err := json.Marshal(k.IPAllowlist)
	if err != nil {
		return nil, err
	}
	return &models.APIKey{
		ID:           k.ID,
		ProjectID:    k.ProjectID,
		Name:         k.Name,
		EncryptedKey: k.EncryptedKey,
		KeyIndex:     k.KeyIndex,
		KeyPreview:   k.KeyPreview,
		Type:         string(k.Type),
		Permissions:  string(perms),
		IPAllowlist:  string(allowlist),
		CreatedBy:    k.CreatedBy,
		LastUsedAt:   k.LastUsedAt.Ptr(),
		UsageCount:   k.UsageCount,
		ExpiresAt:    k.ExpiresAt.Ptr(),
		RotatedAt:    k.RotatedAt.Ptr(),
		Status:       string(k.Status),
		CreatedAt:    k.CreatedAt,
		UpdatedAt:    k.UpdatedAt,
	}, nil
}

func apiKeyToEntity(m *models.APIKey) (*entities.APIKey, error) {
	var perms []string
	if m.Permissions != "" {
		if err := json.Unmarshal([]byte(m.Permissions), &perms); err != nil {
			return nil, err
		}
	}
	var allowlist []entities.IPAllowlistEntry
	if m.IPAllowlist != "" {
		if err := json.Unmarshal([]byte(m.IPAllowlist), &allowlist); err != nil {
			return nil, err
		}
	}
	return &entities.APIKey{
		ID:           m.ID,
		ProjectID:    m.ProjectID,
		Name:         m.Name,
		EncryptedKey: m.EncryptedKey,
		KeyIndex:     m.KeyIndex,
		KeyPreview:   m.KeyPreview,
		Type:         entities.APIKeyType(m.Type),
		Permissions:  perms,
		IPAllowlist:  allowlist,
		CreatedBy:    m.CreatedBy,
		LastUsedAt:   null.TimeFromPtr(m.LastUsedAt),
		UsageCount:   m.UsageCount,
		ExpiresAt:    null.TimeFromPtr(m.ExpiresAt),
		RotatedAt:    null.TimeFromPtr(m.RotatedAt),
		Status:       entities.APIKeyStatus(m.Status),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}, nil
}

func apiKeysToEntities(ms []models.APIKey) ([]*entities.APIKey, error) {
	keys := make([]*entities.APIKey, 0, len(ms))
	for i := range ms {
		k, err := apiKeyToEntity(&ms[i])
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// APIKeyUsageRepository implements usage-log operations
type APIKeyUsageRepository struct {
	db *gorm.DB
}

// NewAPIKeyUsageRepository creates a new usage repository
func NewAPIKeyUsageRepository(db *gorm.DB) *APIKeyUsageRepository {
	return &APIKeyUsageRepository{db: db}
}

// CreateBatch inserts a batch of usage rows
func (r *APIKeyUsageRepository) CreateBatch(ctx context.Context, rows []*entities.APIKeyUsage) error {
	if len(rows) == 0 {
		return nil
	}
	ms := make([]models.APIKeyUsage, 0, len(rows))
	for _, u := range rows {
		ms = append(ms, models.APIKeyUsage{
			UsageID:        u.UsageID,
			APIKeyID:       u.APIKeyID,
			ProjectID:      u.ProjectID,
			Endpoint:       u.Endpoint,
			Method:         u.Method,
			StatusCode:     u.StatusCode,
			ResponseTimeMs: u.ResponseTimeMs,
			IPAddress:      u.IPAddress,
			UserAgent:      u.UserAgent,
			RequestSize:    u.RequestSize.Ptr(),
			ResponseSize:   u.ResponseSize.Ptr(),
			ErrorMessage:   u.ErrorMessage.Ptr(),
			CreatedAt:      u.CreatedAt,
		})
	}
	return r.db.WithContext(ctx).CreateInBatches(ms, 200).Error
}

// ListByKey pages usage rows for one key, newest first
func (r *APIKeyUsageRepository) ListByKey(ctx context.Context, apiKeyID string, limit, offset int) ([]*entities.APIKeyUsage, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.APIKeyUsage{}).
		Where("api_key_id = ?", apiKeyID).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var ms []models.APIKeyUsage
	err = r.db.WithContext(ctx).
		Where("api_key_id = ?", apiKeyID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&ms).Error
	if err != nil {
		return nil, 0, err
	}

	rows := make([]*entities.APIKeyUsage, 0, len(ms))
	for i := range ms {
		m := &ms[i]
		rows = append(rows, &entities.APIKeyUsage{
			UsageID:        m.UsageID,
			APIKeyID:       m.APIKeyID,
			ProjectID:      m.ProjectID,
			Endpoint:       m.Endpoint,
			Method:         m.Method,
			StatusCode:     m.StatusCode,
			ResponseTimeMs: m.ResponseTimeMs,
			IPAddress:      m.IPAddress,
			UserAgent:      m.UserAgent,
			RequestSize:    null.Int64FromPtr(m.RequestSize),
			ResponseSize:   null.Int64FromPtr(m.ResponseSize),
			ErrorMessage:   null.StringFromPtr(m.ErrorMessage),
			CreatedAt:      m.CreatedAt,
		})
	}
	return rows, total, nil
}
