package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/pkg/utils"
)

func seedWallet(t *testing.T, repo *WalletRepository, projectID, socialID string) *entities.Wallet {
	t.Helper()
	w := &entities.Wallet{
		ID:         utils.NewID(utils.PrefixWallet),
		ProjectID:  projectID,
		SocialID:   socialID,
		SocialType: "google",
		Addresses: map[entities.Chain]string{
			entities.ChainEthereum: "0xabc",
			entities.ChainSolana:   "So1abc",
		},
		Deployments: map[entities.Chain]entities.ChainDeployment{
			entities.ChainEthereum: {Status: entities.DeployStateUndeployed},
			entities.ChainSolana:   {Status: entities.DeployStateUndeployed},
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), w))
	return w
}

func TestWalletRepository_CreateAndLookup(t *testing.T) {
	db := newTestDB(t)
	createWalletTable(t, db)
	repo := NewWalletRepository(db)
	ctx := context.Background()

	projectID := utils.NewID(utils.PrefixProject)
	w := seedWallet(t, repo, projectID, "user-123")

	got, err := repo.GetByID(ctx, projectID, w.ID)
	require.NoError(t, err)
	require.Equal(t, "0xabc", got.Addresses[entities.ChainEthereum])
	require.Equal(t, entities.DeployStateUndeployed, got.Deployments[entities.ChainEthereum].Status)

	bySocial, err := repo.GetBySocial(ctx, projectID, "user-123", "google")
	require.NoError(t, err)
	require.Equal(t, w.ID, bySocial.ID)

	_, err = repo.GetBySocial(ctx, projectID, "user-123", "twitter")
	require.ErrorIs(t, err, domainerrors.ErrNotFound)

	// Same (project, social) identity again hits the unique index and comes
	// back as the sentinel concurrent creates recover on.
	dup := *w
	dup.ID = utils.NewID(utils.PrefixWallet)
	err = repo.Create(ctx, &dup)
	require.ErrorIs(t, err, domainerrors.ErrAlreadyExists)

	count, err := repo.CountByProject(ctx, projectID)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestWalletRepository_List(t *testing.T) {
	db := newTestDB(t)
	createWalletTable(t, db)
	repo := NewWalletRepository(db)
	ctx := context.Background()

	projectID := utils.NewID(utils.PrefixProject)
	seedWallet(t, repo, projectID, "a")
	seedWallet(t, repo, projectID, "b")
	seedWallet(t, repo, projectID, "c")

	page, total, err := repo.List(ctx, projectID, 2, 0)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, page, 2)

	rest, _, err := repo.List(ctx, projectID, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
}

func TestWalletRepository_TransitionDeployState(t *testing.T) {
	db := newTestDB(t)
	createWalletTable(t, db)
	repo := NewWalletRepository(db)
	ctx := context.Background()

	projectID := utils.NewID(utils.PrefixProject)
	w := seedWallet(t, repo, projectID, "user-1")

	pending := entities.ChainDeployment{Status: entities.DeployStatePending}
	ok, err := repo.TransitionDeployState(ctx, w.ID, entities.ChainEthereum,
		[]entities.DeployState{entities.DeployStateUndeployed, entities.DeployStateFailed}, pending)
	require.NoError(t, err)
	require.True(t, ok)

	// A second claim while pending must lose.
	ok, err = repo.TransitionDeployState(ctx, w.ID, entities.ChainEthereum,
		[]entities.DeployState{entities.DeployStateUndeployed, entities.DeployStateFailed}, pending)
	require.NoError(t, err)
	require.False(t, ok)

	deployed := entities.ChainDeployment{
		Status:      entities.DeployStateDeployed,
		TxHash:      null.StringFrom("0xtx"),
		BlockNumber: null.Int64From(100),
	}
	ok, err = repo.TransitionDeployState(ctx, w.ID, entities.ChainEthereum,
		[]entities.DeployState{entities.DeployStatePending}, deployed)
	require.NoError(t, err)
	require.True(t, ok)

	// deployed is terminal.
	ok, err = repo.TransitionDeployState(ctx, w.ID, entities.ChainEthereum,
		[]entities.DeployState{entities.DeployStateUndeployed, entities.DeployStateFailed}, pending)
	require.NoError(t, err)
	require.False(t, ok)

	// The other chain is untouched.
	got, err := repo.GetByID(ctx, projectID, w.ID)
	require.NoError(t, err)
	require.Equal(t, entities.DeployStateDeployed, got.Deployments[entities.ChainEthereum].Status)
	require.Equal(t, "0xtx", got.Deployments[entities.ChainEthereum].TxHash.String)
	require.Equal(t, entities.DeployStateUndeployed, got.Deployments[entities.ChainSolana].Status)

	_, err = repo.TransitionDeployState(ctx, "wal_missing", entities.ChainEthereum,
		[]entities.DeployState{entities.DeployStateUndeployed}, pending)
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestWalletRepository_FailedRetriesViaTransition(t *testing.T) {
	db := newTestDB(t)
	createWalletTable(t, db)
	repo := NewWalletRepository(db)
	ctx := context.Background()

	projectID := utils.NewID(utils.PrefixProject)
	w := seedWallet(t, repo, projectID, "user-2")

	pending := entities.ChainDeployment{Status: entities.DeployStatePending}
	ok, err := repo.TransitionDeployState(ctx, w.ID, entities.ChainSolana,
		[]entities.DeployState{entities.DeployStateUndeployed, entities.DeployStateFailed}, pending)
	require.NoError(t, err)
	require.True(t, ok)

	failed := entities.ChainDeployment{
		Status: entities.DeployStateFailed,
		Error:  null.StringFrom("timed out"),
	}
	require.NoError(t, repo.UpdateDeployState(ctx, w.ID, entities.ChainSolana, failed))

	// failed → pending is an allowed redeploy.
	ok, err = repo.TransitionDeployState(ctx, w.ID, entities.ChainSolana,
		[]entities.DeployState{entities.DeployStateUndeployed, entities.DeployStateFailed}, pending)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestWalletRepository_DBErrorBranches(t *testing.T) {
	db := newTestDB(t)
	// Intentionally skip creating the wallet table.
	repo := NewWalletRepository(db)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "proj_x", "wal_x")
	require.Error(t, err)

	_, _, err = repo.List(ctx, "proj_x", 10, 0)
	require.Error(t, err)

	_, err = repo.TransitionDeployState(ctx, "wal_x", entities.ChainEthereum,
		[]entities.DeployState{entities.DeployStateUndeployed}, entities.ChainDeployment{Status: entities.DeployStatePending})
	require.Error(t, err)
}
