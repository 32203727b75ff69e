package jobs

import (
	"context"
	"math"
	"math/big"
	"time"

	"go.uber.org/zap"
	"nexuspay.backend/internal/config"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/domain/repositories"
	"nexuspay.backend/internal/infrastructure/blockchain"
	"nexuspay.backend/internal/infrastructure/oracle"
	"nexuspay.backend/internal/infrastructure/webhook"
	"nexuspay.backend/pkg/logger"
	"nexuspay.backend/pkg/redis"
)

const (
	balanceRefreshInterval = 5 * time.Minute
	// lowBalanceNotifyEvery throttles repeat low-balance webhooks per
	// (project, chain) so a drained paymaster does not page every cycle
	lowBalanceNotifyEvery = time.Hour
)

// BalanceRefresher keeps cached paymaster balances current and emits
// low-balance webhooks. API reads always serve the cache; this job is the
// writer.
type BalanceRefresher struct {
	paymasters repositories.PaymasterRepository
	balances   repositories.PaymasterBalanceRepository
	projects   repositories.ProjectRepository
	registry   *blockchain.Registry
	prices     oracle.PriceSource
	webhooks   *webhook.Dispatcher
	chains     config.ChainsConfig
	interval   time.Duration
	stop       chan struct{}
}

func NewBalanceRefresher(
	paymasters repositories.PaymasterRepository,
	balances repositories.PaymasterBalanceRepository,
	projects repositories.ProjectRepository,
	registry *blockchain.Registry,
	prices oracle.PriceSource,
	webhooks *webhook.Dispatcher,
	chains config.ChainsConfig,
) *BalanceRefresher {
	return &BalanceRefresher{
		paymasters: paymasters,
		balances:   balances,
		projects:   projects,
		registry:   registry,
		prices:     prices,
		webhooks:   webhooks,
		chains:     chains,
		interval:   balanceRefreshInterval,
		stop:       make(chan struct{}),
	}
}

func (j *BalanceRefresher) Start(ctx context.Context) {
	logger.Info(ctx, "starting paymaster balance refresher", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.refreshAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stop:
			return
		case <-ticker.C:
			j.refreshAll(ctx)
		}
	}
}

func (j *BalanceRefresher) Stop() {
	close(j.stop)
}

func (j *BalanceRefresher) refreshAll(ctx context.Context) {
	paymasters, err := j.paymasters.ListAll(ctx)
	if err != nil {
		logger.Error(ctx, "balance refresh: list paymasters failed", zap.Error(err))
		return
	}

	for _, pm := range paymasters {
		if _, err := j.Refresh(ctx, pm); err != nil {
			logger.Warn(ctx, "balance refresh failed",
				zap.String("project_id", pm.ProjectID),
				zap.String("chain", string(pm.Chain)),
				zap.Error(err))
		}
	}
}

// Refresh queries the chain balance and token price for one paymaster,
// upserts the cached row, and applies the low-balance policy. Synchronous
// ?refresh=true reads go through here too.
func (j *BalanceRefresher) Refresh(ctx context.Context, pm *entities.ProjectPaymaster) (*entities.PaymasterBalance, error) {
	adapter, err := j.registry.Adapter(pm.Chain)
	if err != nil {
		return nil, err
	}

	raw, err := adapter.GetBalance(ctx, pm.Address)
	if err != nil {
		return nil, domainerrors.Upstream("chain balance query failed", err)
	}

	price, err := j.prices.PriceUSD(ctx, j.priceID(pm.Chain))
	if err != nil {
		return nil, err
	}

	native := rawToNative(raw, pm.Chain.NativeDecimals())
	balance := &entities.PaymasterBalance{
		ProjectID:     pm.ProjectID,
		Chain:         pm.Chain,
		Address:       pm.Address,
		BalanceNative: native,
		BalanceWei:    raw.String(),
		BalanceUSD:    native * price,
		TokenPriceUSD: price,
		LastUpdated:   time.Now().UTC(),
	}

	// The refresher does not observe deposits directly; keep the last
	// recorded funding tx hash from the previous row.
	if prev, err := j.balances.Get(ctx, pm.ProjectID, pm.Chain); err == nil {
		balance.LastTxHash = prev.LastTxHash
	}

	if err := j.balances.Upsert(ctx, balance); err != nil {
		return nil, err
	}

	j.applyLowBalancePolicy(ctx, pm, balance)
	return balance, nil
}

func (j *BalanceRefresher) applyLowBalancePolicy(ctx context.Context, pm *entities.ProjectPaymaster, balance *entities.PaymasterBalance) {
	if balance.BalanceUSD >= entities.DefaultLowThresholdUSD {
		return
	}

	// One notification per (project, chain) per window.
	ok, err := redis.SetNX(ctx, "lowbal:"+pm.ProjectID+":"+string(pm.Chain), 1, lowBalanceNotifyEvery)
	if err != nil || !ok {
		return
	}

	project, err := j.projects.GetByID(ctx, pm.ProjectID)
	if err != nil {
		return
	}
	j.webhooks.Notify(ctx, project, webhook.EventPaymasterLowBalance, map[string]interface{}{
		"chain":        pm.Chain,
		"address":      pm.Address,
		"balanceUsd":   balance.BalanceUSD,
		"thresholdUsd": entities.DefaultLowThresholdUSD,
	})
	logger.Warn(ctx, "paymaster balance below threshold",
		zap.String("project_id", pm.ProjectID),
		zap.String("chain", string(pm.Chain)),
		zap.Float64("balance_usd", balance.BalanceUSD))
}

func (j *BalanceRefresher) priceID(chain entities.Chain) string {
	switch chain {
	case entities.ChainArbitrum:
		return j.chains.Arbitrum.PriceID
	case entities.ChainSolana:
		return j.chains.Solana.PriceID
	default:
		return j.chains.Ethereum.PriceID
	}
}

// rawToNative converts a raw integer balance to a float display amount
func rawToNative(raw *big.Int, decimals int) float64 {
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(raw),
		big.NewFloat(math.Pow10(decimals)),
	).Float64()
	return f
}
