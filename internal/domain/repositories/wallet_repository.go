package repositories

import (
	"context"

	"nexuspay.backend/internal/domain/entities"
)

// WalletRepository defines wallet data operations
type WalletRepository interface {
	Create(ctx context.Context, wallet *entities.Wallet) error
	GetByID(ctx context.Context, projectID, walletID string) (*entities.Wallet, error)
	GetBySocial(ctx context.Context, projectID, socialID, socialType string) (*entities.Wallet, error)
	List(ctx context.Context, projectID string, limit, offset int) ([]*entities.Wallet, int64, error)
	CountByProject(ctx context.Context, projectID string) (int64, error)
	// TransitionDeployState performs the conditional update enforcing
	// at-most-one-concurrent-deploy: only the transitions allowed by the
	// state machine succeed. Returns false when the precondition failed.
	TransitionDeployState(ctx context.Context, walletID string, chain entities.Chain, from []entities.DeployState, to entities.ChainDeployment) (bool, error)
	UpdateDeployState(ctx context.Context, walletID string, chain entities.Chain, d entities.ChainDeployment) error
}
