package usecases

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"nexuspay.backend/internal/config"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/domain/repositories"
	"nexuspay.backend/internal/infrastructure/blockchain"
	"nexuspay.backend/internal/infrastructure/funding"
	"nexuspay.backend/internal/infrastructure/keyvault"
	"nexuspay.backend/pkg/crypto"
	"nexuspay.backend/pkg/logger"
	"nexuspay.backend/pkg/redis"
	"nexuspay.backend/pkg/utils"
)

// refreshThrottle bounds on-demand balance refreshes per (project, chain)
const refreshThrottle = 30 * time.Second

// BalanceRefresher performs a synchronous chain balance read for one paymaster
type BalanceRefresher interface {
	Refresh(ctx context.Context, pm *entities.ProjectPaymaster) (*entities.PaymasterBalance, error)
}

// PaymasterUsecase handles paymaster provisioning, balances, the sponsored
// payment ledger and funding flows. It is the PaymasterProvisioner used at
// project creation.
type PaymasterUsecase struct {
	pmRepo       repositories.PaymasterRepository
	balanceRepo  repositories.PaymasterBalanceRepository
	paymentRepo  repositories.PaymasterPaymentRepository
	funding      *funding.Service
	refresher    BalanceRefresher
	registry     *blockchain.Registry
	vault        *keyvault.KeyVault
	masterSecret []byte
}

// NewPaymasterUsecase creates a new paymaster usecase
func NewPaymasterUsecase(
	pmRepo repositories.PaymasterRepository,
	balanceRepo repositories.PaymasterBalanceRepository,
	paymentRepo repositories.PaymasterPaymentRepository,
	fundingService *funding.Service,
	refresher BalanceRefresher,
	registry *blockchain.Registry,
	vault *keyvault.KeyVault,
	security config.SecurityConfig,
) *PaymasterUsecase {
	return &PaymasterUsecase{
		pmRepo:       pmRepo,
		balanceRepo:  balanceRepo,
		paymentRepo:  paymentRepo,
		funding:      fundingService,
		refresher:    refresher,
		registry:     registry,
		vault:        vault,
		masterSecret: []byte(security.MasterDerivationSecret),
	}
}

// Provision derives the sponsoring keypair for (project, chain), seals the
// private key at rest and records the paymaster with a zeroed balance row.
// On EVM chains the paymaster is a CREATE2 proxy owned by the derived sponsor
// EOA: the factory-predicted address is recorded before the deployment
// confirms, so the project can fund it immediately. On Solana the fee-payer
// keypair itself is the paymaster. Idempotent: an existing paymaster is
// returned as-is.
func (u *PaymasterUsecase) Provision(ctx context.Context, projectID string, chain entities.Chain) (*entities.ProjectPaymaster, error) {
	if existing, err := u.pmRepo.Get(ctx, projectID, chain); err == nil {
		return existing, nil
	} else if !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}

	sponsorAddress, material, err := u.deriveSponsor(projectID, chain)
	if err != nil {
		return nil, err
	}
	sealed, err := u.vault.Seal(material)
	if err != nil {
		return nil, err
	}

	address := sponsorAddress
	salt := crypto.DerivePaymasterSalt(projectID, string(chain))
	var deployer blockchain.PaymasterDeployer
	if chain.Kind() == entities.ChainKindEVM {
		adapter, err := u.registry.Adapter(chain)
		if err != nil {
			return nil, err
		}
		d, ok := adapter.(blockchain.PaymasterDeployer)
		if !ok {
			return nil, domainerrors.ErrUnsupportedChain
		}
		predicted, err := d.PredictPaymasterAddress(ctx, sponsorAddress, salt)
		if err != nil {
			return nil, domainerrors.Upstream(fmt.Sprintf("paymaster address prediction failed on %s", chain), err)
		}
		address = predicted
		deployer = d
	}

	pm := &entities.ProjectPaymaster{
		ID:                  utils.NewID(utils.PrefixPaymaster),
		ProjectID:           projectID,
		Chain:               chain,
		Address:             address,
		EncryptedPrivateKey: sealed,
	}
	if err := u.pmRepo.Create(ctx, pm); err != nil {
		return nil, err
	}

	// The proxy address is counterfactual, so a failed submit leaves a
	// fundable paymaster behind; the deployment lands on a later retry.
	if deployer != nil {
		if txHash, err := deployer.DeployPaymaster(ctx, material, sponsorAddress, salt); err != nil {
			logger.Warn(ctx, "paymaster proxy deployment submit failed",
				zap.String("project_id", projectID), zap.String("chain", string(chain)), zap.Error(err))
		} else {
			logger.Info(ctx, "paymaster proxy deployment submitted",
				zap.String("project_id", projectID), zap.String("chain", string(chain)), zap.String("tx_hash", txHash))
		}
	}

	// Zero row so balance reads never 404 before the first refresh cycle.
	if err := u.balanceRepo.Upsert(ctx, &entities.PaymasterBalance{
		ProjectID:   projectID,
		Chain:       chain,
		Address:     address,
		BalanceWei:  "0",
		LastUpdated: time.Now().UTC(),
	}); err != nil {
		logger.Warn(ctx, "initial balance row write failed",
			zap.String("project_id", projectID), zap.String("chain", string(chain)), zap.Error(err))
	}
	return pm, nil
}

// deriveSponsor returns the sponsor's own address and raw key material. On
// EVM chains the sponsor EOA owns the paymaster proxy rather than being the
// paymaster itself.
func (u *PaymasterUsecase) deriveSponsor(projectID string, chain entities.Chain) (string, []byte, error) {
	switch chain.Kind() {
	case entities.ChainKindSVM:
		key := crypto.DerivePaymasterKeySVM(u.masterSecret, projectID, string(chain))
		pub := key.Public().(ed25519.PublicKey)
		return solana.PublicKeyFromBytes(pub).String(), key, nil
	default:
		key, err := crypto.DerivePaymasterKeyEVM(u.masterSecret, projectID, string(chain))
		if err != nil {
			return "", nil, err
		}
		return crypto.OwnerAddressEVM(key), ethcrypto.FromECDSA(key), nil
	}
}

// List returns the project's paymasters
func (u *PaymasterUsecase) List(ctx context.Context, projectID string) ([]*entities.ProjectPaymaster, error) {
	return u.pmRepo.ListByProject(ctx, projectID)
}

// GetBalances returns the cached balance per chain. refresh=true forces a
// synchronous chain read, throttled per (project, chain) so hot dashboards
// cannot hammer the RPCs; a throttled refresh silently serves the cache.
func (u *PaymasterUsecase) GetBalances(ctx context.Context, projectID string, refresh bool) ([]*entities.PaymasterBalance, error) {
	paymasters, err := u.pmRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	balances := make([]*entities.PaymasterBalance, 0, len(paymasters))
	for _, pm := range paymasters {
		if refresh && u.allowRefresh(ctx, pm) {
			if fresh, err := u.refresher.Refresh(ctx, pm); err == nil {
				balances = append(balances, fresh)
				continue
			} else {
				logger.Warn(ctx, "on-demand balance refresh failed",
					zap.String("project_id", pm.ProjectID), zap.String("chain", string(pm.Chain)), zap.Error(err))
			}
		}

		cached, err := u.balanceRepo.Get(ctx, pm.ProjectID, pm.Chain)
		if errors.Is(err, domainerrors.ErrNotFound) {
			cached = &entities.PaymasterBalance{
				ProjectID:  pm.ProjectID,
				Chain:      pm.Chain,
				Address:    pm.Address,
				BalanceWei: "0",
			}
		} else if err != nil {
			return nil, err
		}
		balances = append(balances, cached)
	}
	return balances, nil
}

func (u *PaymasterUsecase) allowRefresh(ctx context.Context, pm *entities.ProjectPaymaster) bool {
	ok, err := redis.SetNX(ctx, "pmrefresh:"+pm.ProjectID+":"+string(pm.Chain), 1, refreshThrottle)
	return err == nil && ok
}

// Ledger returns a page of the sponsored-payment ledger, newest first.
// chain narrows the page when non-empty.
func (u *PaymasterUsecase) Ledger(ctx context.Context, projectID string, chain entities.Chain, page, limit int) ([]*entities.PaymasterPayment, int64, error) {
	p := utils.GetPaginationParams(page, limit)
	return u.paymentRepo.ListByProject(ctx, projectID, chain, p.Limit, p.CalculateOffset())
}

// CostReport aggregates confirmed paymaster spend per chain over [from, to)
func (u *PaymasterUsecase) CostReport(ctx context.Context, projectID string, from, to time.Time) ([]*entities.CostReport, error) {
	if !from.Before(to) {
		return nil, domainerrors.BadRequest("from must precede to").WithField("from")
	}
	return u.paymentRepo.TotalConfirmedByChain(ctx, projectID, from, to)
}

// Fund builds a funding flow for the project's paymaster on the requested
// chain: a deposit address for on-chain transfers, or a hosted card checkout
func (u *PaymasterUsecase) Fund(ctx context.Context, project *entities.Project, input entities.FundInput) (*entities.FundResponse, error) {
	if !projectHasChain(project, input.Chain) {
		return nil, domainerrors.BadRequest(fmt.Sprintf("chain %q is not enabled for this project", input.Chain)).
			WithField("chain")
	}
	pm, err := u.pmRepo.Get(ctx, project.ID, input.Chain)
	if err != nil {
		return nil, err
	}
	if pm.Frozen {
		return nil, domainerrors.Conflict("paymaster is frozen and cannot be funded")
	}
	return u.funding.Fund(ctx, project, input, pm.Address)
}
