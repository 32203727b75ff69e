package usecases

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
	"nexuspay.backend/internal/config"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/domain/repositories"
	"nexuspay.backend/internal/infrastructure/blockchain"
	"nexuspay.backend/internal/infrastructure/keyvault"
	"nexuspay.backend/pkg/crypto"
	"nexuspay.backend/pkg/logger"
	"nexuspay.backend/pkg/utils"
)

// WalletUsecase handles wallet creation, address derivation and deployment
type WalletUsecase struct {
	walletRepo   repositories.WalletRepository
	pmRepo       repositories.PaymasterRepository
	balanceRepo  repositories.PaymasterBalanceRepository
	paymentRepo  repositories.PaymasterPaymentRepository
	txLogRepo    repositories.TransactionLogRepository
	activityRepo repositories.UserActivityRepository
	registry     *blockchain.Registry
	vault        *keyvault.KeyVault
	masterSecret []byte
}

// NewWalletUsecase creates a new wallet usecase
func NewWalletUsecase(
	walletRepo repositories.WalletRepository,
	pmRepo repositories.PaymasterRepository,
	balanceRepo repositories.PaymasterBalanceRepository,
	paymentRepo repositories.PaymasterPaymentRepository,
	txLogRepo repositories.TransactionLogRepository,
	activityRepo repositories.UserActivityRepository,
	registry *blockchain.Registry,
	vault *keyvault.KeyVault,
	security config.SecurityConfig,
) *WalletUsecase {
	return &WalletUsecase{
		walletRepo:   walletRepo,
		pmRepo:       pmRepo,
		balanceRepo:  balanceRepo,
		paymentRepo:  paymentRepo,
		txLogRepo:    txLogRepo,
		activityRepo: activityRepo,
		registry:     registry,
		vault:        vault,
		masterSecret: []byte(security.MasterDerivationSecret),
	}
}

// Create derives counterfactual addresses for every requested chain and
// stores the wallet. Idempotent on (projectId, socialId, socialType): repeat
// calls return the existing wallet. The bool reports whether a row was created.
func (u *WalletUsecase) Create(ctx context.Context, project *entities.Project, input *entities.CreateWalletInput) (*entities.Wallet, bool, error) {
	chains, err := normalizeChains(input.Chains)
	if err != nil {
		return nil, false, err
	}
	for _, chain := range chains {
		if !projectHasChain(project, chain) {
			return nil, false, domainerrors.BadRequest(fmt.Sprintf("chain %q is not enabled for this project", chain)).
				WithField("chains")
		}
	}

	existing, err := u.walletRepo.GetBySocial(ctx, project.ID, input.SocialID, input.SocialType)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, false, err
	}

	addresses := make(map[entities.Chain]string, len(chains))
	deployments := make(map[entities.Chain]entities.ChainDeployment, len(chains))
	salt := crypto.DeriveWalletSalt(project.ID, input.SocialID, input.SocialType)
	for _, chain := range chains {
		adapter, err := u.registry.Adapter(chain)
		if err != nil {
			return nil, false, err
		}
		owner, err := u.ownerAddress(project.ID, input.SocialID, input.SocialType, chain)
		if err != nil {
			return nil, false, err
		}
		address, err := adapter.PredictWalletAddress(ctx, owner, salt)
		if err != nil {
			return nil, false, domainerrors.Upstream(fmt.Sprintf("address prediction failed on %s", chain), err)
		}
		addresses[chain] = address
		deployments[chain] = entities.ChainDeployment{Status: entities.DeployStateUndeployed}
	}

	wallet := &entities.Wallet{
		ID:          utils.NewID(utils.PrefixWallet),
		ProjectID:   project.ID,
		SocialID:    input.SocialID,
		SocialType:  input.SocialType,
		Addresses:   addresses,
		Deployments: deployments,
		Metadata:    input.Metadata,
	}
	if err := u.walletRepo.Create(ctx, wallet); err != nil {
		// Concurrent create for the same social identity: the unique
		// constraint makes exactly one row win; return it.
		if errors.Is(err, domainerrors.ErrAlreadyExists) {
			winner, getErr := u.walletRepo.GetBySocial(ctx, project.ID, input.SocialID, input.SocialType)
			if getErr != nil {
				return nil, false, getErr
			}
			return winner, false, nil
		}
		return nil, false, err
	}

	if err := u.activityRepo.IncrementWalletsCreated(ctx, project.ID, input.SocialID, input.SocialType); err != nil {
		logger.Warn(ctx, "wallet activity counter failed", zap.String("wallet_id", wallet.ID), zap.Error(err))
	}
	return wallet, true, nil
}

// Get returns a wallet scoped to the project
func (u *WalletUsecase) Get(ctx context.Context, projectID, walletID string) (*entities.Wallet, error) {
	return u.walletRepo.GetByID(ctx, projectID, walletID)
}

// GetBySocial resolves a wallet by its social identity
func (u *WalletUsecase) GetBySocial(ctx context.Context, projectID, socialID, socialType string) (*entities.Wallet, error) {
	return u.walletRepo.GetBySocial(ctx, projectID, socialID, socialType)
}

// List returns a page of the project's wallets and the total count
func (u *WalletUsecase) List(ctx context.Context, projectID string, page, limit int) ([]*entities.Wallet, int64, error) {
	p := utils.GetPaginationParams(page, limit)
	return u.walletRepo.List(ctx, projectID, p.Limit, p.CalculateOffset())
}

// Deploy submits sponsored factory deployments for the requested chains.
// Each chain settles independently: deployed chains are reported as-is,
// in-flight chains return the existing txHash, and only undeployed or failed
// chains start a new deployment.
func (u *WalletUsecase) Deploy(ctx context.Context, project *entities.Project, walletID string, requested []entities.Chain) ([]*entities.DeployResult, error) {
	if !project.Settings.PaymasterEnabled {
		return nil, domainerrors.BadRequest("gas sponsorship is disabled for this project").WithField("chains")
	}
	wallet, err := u.walletRepo.GetByID(ctx, project.ID, walletID)
	if err != nil {
		return nil, err
	}
	chains, err := normalizeChains(requested)
	if err != nil {
		return nil, err
	}

	results := make([]*entities.DeployResult, 0, len(chains))
	for _, chain := range chains {
		results = append(results, u.deployChain(ctx, project, wallet, chain))
	}
	return results, nil
}

func (u *WalletUsecase) deployChain(ctx context.Context, project *entities.Project, wallet *entities.Wallet, chain entities.Chain) *entities.DeployResult {
	address, ok := wallet.Addresses[chain]
	if !ok {
		return &entities.DeployResult{
			Chain:  chain,
			Status: entities.DeployStateUndeployed,
			Error:  "wallet has no address on this chain",
		}
	}

	current := wallet.Deployments[chain]
	switch current.Status {
	case entities.DeployStateDeployed:
		return &entities.DeployResult{Chain: chain, Status: current.Status, TxHash: current.TxHash.String}
	case entities.DeployStatePending:
		return &entities.DeployResult{Chain: chain, Status: current.Status, TxHash: current.TxHash.String}
	}

	pm, err := u.pmRepo.Get(ctx, project.ID, chain)
	if err != nil {
		return deployError(chain, current.Status, fmt.Sprintf("no paymaster on %s", chain))
	}
	if pm.Frozen {
		return deployError(chain, current.Status, "paymaster is frozen")
	}
	if err := u.checkHardFloor(ctx, project.ID, chain); err != nil {
		return deployError(chain, current.Status, err.Error())
	}

	// Claim the pending slot; losing the race means another deploy is already
	// in flight, so report whatever state it left behind.
	claimed, err := u.walletRepo.TransitionDeployState(ctx, wallet.ID, chain,
		[]entities.DeployState{entities.DeployStateUndeployed, entities.DeployStateFailed},
		entities.ChainDeployment{Status: entities.DeployStatePending})
	if err != nil {
		return deployError(chain, current.Status, err.Error())
	}
	if !claimed {
		refreshed, err := u.walletRepo.GetByID(ctx, project.ID, wallet.ID)
		if err != nil {
			return deployError(chain, current.Status, err.Error())
		}
		d := refreshed.Deployments[chain]
		return &entities.DeployResult{Chain: chain, Status: d.Status, TxHash: d.TxHash.String}
	}

	txHash, err := u.submitDeployment(ctx, pm, wallet, chain)
	if err != nil {
		failed := entities.ChainDeployment{
			Status: entities.DeployStateFailed,
			Error:  null.StringFrom(err.Error()),
		}
		if uerr := u.walletRepo.UpdateDeployState(ctx, wallet.ID, chain, failed); uerr != nil {
			logger.Error(ctx, "deploy state rollback failed", zap.String("wallet_id", wallet.ID), zap.Error(uerr))
		}
		return deployError(chain, entities.DeployStateFailed, err.Error())
	}

	pendingState := entities.ChainDeployment{
		Status: entities.DeployStatePending,
		TxHash: null.StringFrom(txHash),
	}
	if err := u.walletRepo.UpdateDeployState(ctx, wallet.ID, chain, pendingState); err != nil {
		logger.Error(ctx, "deploy txhash record failed", zap.String("wallet_id", wallet.ID), zap.Error(err))
	}

	u.recordDeployment(ctx, project, pm, wallet, chain, address, txHash)
	return &entities.DeployResult{Chain: chain, Status: entities.DeployStatePending, TxHash: txHash}
}

// checkHardFloor rejects sponsorship when the cached paymaster balance sits
// below the hard floor. A missing cache row does not block: the refresher
// fills it within one cycle.
func (u *WalletUsecase) checkHardFloor(ctx context.Context, projectID string, chain entities.Chain) error {
	balance, err := u.balanceRepo.Get(ctx, projectID, chain)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil
		}
		return err
	}
	if balance.BalanceUSD < entities.DefaultHardFloorUSD {
		return domainerrors.NewAppError(http.StatusPaymentRequired, domainerrors.CodePaymasterInsufficientFunds,
			fmt.Sprintf("paymaster balance $%.2f is below the $%.2f floor", balance.BalanceUSD, entities.DefaultHardFloorUSD),
			nil)
	}
	return nil
}

func (u *WalletUsecase) submitDeployment(ctx context.Context, pm *entities.ProjectPaymaster, wallet *entities.Wallet, chain entities.Chain) (string, error) {
	adapter, err := u.registry.Adapter(chain)
	if err != nil {
		return "", err
	}
	sponsorKey, err := u.vault.Open(pm.EncryptedPrivateKey)
	if err != nil {
		return "", err
	}
	owner, err := u.ownerAddress(wallet.ProjectID, wallet.SocialID, wallet.SocialType, chain)
	if err != nil {
		return "", err
	}
	salt := crypto.DeriveWalletSalt(wallet.ProjectID, wallet.SocialID, wallet.SocialType)
	return adapter.DeployWallet(ctx, sponsorKey, owner, salt)
}

// recordDeployment writes the pending ledger row and transaction log entry the
// receipt poller settles later. Bookkeeping failures are logged, not surfaced:
// the deployment is already on chain.
func (u *WalletUsecase) recordDeployment(ctx context.Context, project *entities.Project, pm *entities.ProjectPaymaster, wallet *entities.Wallet, chain entities.Chain, address, txHash string) {
	explorerURL := ""
	if adapter, err := u.registry.Adapter(chain); err == nil {
		explorerURL = adapter.ExplorerTxURL(txHash)
	}

	txLog := &entities.TransactionLog{
		ID:               utils.NewID(utils.PrefixTransaction),
		ProjectID:        project.ID,
		TransactionType:  entities.TxTypeWalletDeployment,
		Chain:            chain,
		WalletAddress:    address,
		UserIdentifier:   wallet.SocialID,
		SocialType:       wallet.SocialType,
		TxHash:           null.StringFrom(txHash),
		Currency:         chain.NativeSymbol(),
		PaymasterPaid:    true,
		PaymasterAddress: null.StringFrom(pm.Address),
		Status:           entities.TxStatusPending,
		ExplorerURL:      explorerURL,
	}
	if err := u.txLogRepo.Create(ctx, txLog); err != nil {
		logger.Error(ctx, "deployment tx log write failed", zap.String("tx_hash", txHash), zap.Error(err))
	}

	payment := &entities.PaymasterPayment{
		ID:               utils.NewID("pay"),
		ProjectID:        project.ID,
		PaymasterAddress: pm.Address,
		Chain:            chain,
		GasForAddress:    address,
		TxHash:           txHash,
		OperationType:    entities.OpWalletDeploy,
		Status:           entities.PaymentStatusPending,
	}
	if err := u.paymentRepo.Create(ctx, payment); err != nil {
		logger.Error(ctx, "deployment ledger write failed", zap.String("tx_hash", txHash), zap.Error(err))
	}
}

// ownerAddress derives the chain-appropriate owner address for a social identity
func (u *WalletUsecase) ownerAddress(projectID, socialID, socialType string, chain entities.Chain) (string, error) {
	switch chain.Kind() {
	case entities.ChainKindSVM:
		key := crypto.DeriveOwnerKeySVM(u.masterSecret, projectID, socialID, socialType)
		pub := key.Public().(ed25519.PublicKey)
		return solana.PublicKeyFromBytes(pub).String(), nil
	default:
		key, err := crypto.DeriveOwnerKeyEVM(u.masterSecret, projectID, socialID, socialType)
		if err != nil {
			return "", err
		}
		return crypto.OwnerAddressEVM(key), nil
	}
}

func deployError(chain entities.Chain, status entities.DeployState, msg string) *entities.DeployResult {
	return &entities.DeployResult{Chain: chain, Status: status, Error: msg}
}

func projectHasChain(project *entities.Project, chain entities.Chain) bool {
	for _, c := range project.Chains {
		if c == chain {
			return true
		}
	}
	return false
}
