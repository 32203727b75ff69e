package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/infrastructure/models"
)

// transitionRetries bounds the optimistic compare-and-swap loop when two
// deploy requests race on the same wallet row.
const transitionRetries = 3

// WalletRepository implements wallet data operations
type WalletRepository struct {
	db *gorm.DB
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Create creates a wallet row. A duplicate (project, social) identity
// surfaces as ErrAlreadyExists so the caller can fall back to the winning row.
func (r *WalletRepository) Create(ctx context.Context, wallet *entities.Wallet) error {
	m, err := walletToModel(wallet)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domainerrors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetByID gets a wallet by project + wallet ID
func (r *WalletRepository) GetByID(ctx context.Context, projectID, walletID string) (*entities.Wallet, error) {
	var m models.Wallet
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND id = ?", projectID, walletID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return walletToEntity(&m)
}

// GetBySocial gets a wallet by its (project, socialId, socialType) identity
func (r *WalletRepository) GetBySocial(ctx context.Context, projectID, socialID, socialType string) (*entities.Wallet, error) {
	var m models.Wallet
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND social_id = ? AND social_type = ?", projectID, socialID, socialType).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return walletToEntity(&m)
}

// List pages a project's wallets, newest first
func (r *WalletRepository) List(ctx context.Context, projectID string, limit, offset int) ([]*entities.Wallet, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("project_id = ?", projectID).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var ms []models.Wallet
	err = r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&ms).Error
	if err != nil {
		return nil, 0, err
	}

	wallets := make([]*entities.Wallet, 0, len(ms))
	for i := range ms {
		w, err := walletToEntity(&ms[i])
		if err != nil {
			return nil, 0, err
		}
		wallets = append(wallets, w)
	}
	return wallets, total, nil
}

// CountByProject counts a project's wallets
func (r *WalletRepository) CountByProject(ctx context.Context, projectID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("project_id = ?", projectID).Count(&total).Error
	return total, err
}

// TransitionDeployState performs an optimistic compare-and-swap on the
// serialized deployments column. The update only lands when the column still
// holds the JSON we read and the chain's current state is in `from`, which
// makes pending claims race-safe without row locks.
func (r *WalletRepository) TransitionDeployState(ctx context.Context, walletID string, chain entities.Chain, from []entities.DeployState, to entities.ChainDeployment) (bool, error) {
	for attempt := 0; attempt < transitionRetries; attempt++ {
		var m models.Wallet
		if err := r.db.WithContext(ctx).Where("id = ?", walletID).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, domainerrors.ErrNotFound
			}
			return false, err
		}

		deployments := map[entities.Chain]entities.ChainDeployment{}
		if m.Deployments != "" {
			if err := json.Unmarshal([]byte(m.Deployments), &deployments); err != nil {
				return false, err
			}
		}

		current, ok := deployments[chain]
		if !ok {
			current = entities.ChainDeployment{Status: entities.DeployStateUndeployed}
		}
		allowed := false
		for _, s := range from {
			if current.Status == s {
				allowed = true
				break
			}
		}
		if !allowed {
			return false, nil
		}

		deployments[chain] = to
		updated, err := json.Marshal(deployments)
		if err != nil {
			return false, err
		}

		result := r.db.WithContext(ctx).Model(&models.Wallet{}).
			Where("id = ? AND deployments = ?", walletID, m.Deployments).
			Updates(map[string]interface{}{
				"deployments": string(updated),
				"updated_at":  time.Now(),
			})
		if result.Error != nil {
			return false, result.Error
		}
		if result.RowsAffected == 1 {
			return true, nil
		}
		// Lost the race; re-read and re-check the precondition.
	}
	return false, nil
}

// UpdateDeployState unconditionally writes a chain's deployment state
func (r *WalletRepository) UpdateDeployState(ctx context.Context, walletID string, chain entities.Chain, d entities.ChainDeployment) error {
	for attempt := 0; attempt < transitionRetries; attempt++ {
		var m models.Wallet
		if err := r.db.WithContext(ctx).Where("id = ?", walletID).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrNotFound
			}
			return err
		}

		deployments := map[entities.Chain]entities.ChainDeployment{}
		if m.Deployments != "" {
			if err := json.Unmarshal([]byte(m.Deployments), &deployments); err != nil {
				return err
			}
		}
		deployments[chain] = d
		updated, err := json.Marshal(deployments)
		if err != nil {
			return err
		}

		result := r.db.WithContext(ctx).Model(&models.Wallet{}).
			Where("id = ? AND deployments = ?", walletID, m.Deployments).
			Updates(map[string]interface{}{
				"deployments": string(updated),
				"updated_at":  time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 1 {
			return nil
		}
	}
	return domainerrors.ErrAlreadyExists
}

func walletToModel(w *entities.Wallet) (*models.Wallet, error) {
	addresses, err := json.Marshal(w.Addresses)
	if err != nil {
		return nil, err
	}
	deployments, err := json.Marshal(w.Deployments)
	if err != nil {
		return nil, err
	}
	metadata := ""
	if w.Metadata != nil {
		b, err := json.Marshal(w.Metadata)
		if err != nil {
			return nil, err
		}
		metadata = string(b)
	}
	return &models.Wallet{
		ID:          w.ID,
		ProjectID:   w.ProjectID,
		SocialID:    w.SocialID,
		SocialType:  w.SocialType,
		Addresses:   string(addresses),
		Deployments: string(deployments),
		Metadata:    metadata,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}, nil
}

func walletToEntity(m *models.Wallet) (*entities.Wallet, error) {
	addresses := map[entities.Chain]string{}
	if m.Addresses != "" {
		if err := json.Unmarshal([]byte(m.Addresses), &addresses); err != nil {
			return nil, err
		}
	}
	deployments := map[entities.Chain]entities.ChainDeployment{}
	if m.Deployments != "" {
		if err := json.Unmarshal([]byte(m.Deployments), &deployments); err != nil {
			return nil, err
		}
	}
	var metadata map[string]interface{}
	if m.Metadata != "" {
		if err := json.Unmarshal([]byte(m.Metadata), &metadata); err != nil {
			return nil, err
		}
	}
	return &entities.Wallet{
		ID:          m.ID,
		ProjectID:   m.ProjectID,
		SocialID:    m.SocialID,
		SocialType:  m.SocialType,
		Addresses:   addresses,
		Deployments: deployments,
		Metadata:    metadata,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}
