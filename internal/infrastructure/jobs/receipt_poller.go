package jobs

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
	"nexuspay.backend/internal/config"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/domain/repositories"
	"nexuspay.backend/internal/infrastructure/blockchain"
	"nexuspay.backend/internal/infrastructure/oracle"
	"nexuspay.backend/internal/infrastructure/webhook"
	"nexuspay.backend/pkg/logger"
)

const (
	receiptPollInterval = 15 * time.Second
	// receiptPollGrace keeps the poller off transactions the submitting
	// handler may still be writing
	receiptPollGrace = 5 * time.Second
	receiptPollBatch = 50
	// deployDeadline is how long a submitted transaction may stay pending
	// before it is written off as failed
	deployDeadline = 15 * time.Minute
)

// ReceiptPoller reconciles pending sponsored payments against chain receipts.
// It is the only writer of terminal payment/log/deployment states, decoupled
// from request handlers: a client disconnect never strands a pending row.
type ReceiptPoller struct {
	payments repositories.PaymasterPaymentRepository
	txlogs   repositories.TransactionLogRepository
	wallets  repositories.WalletRepository
	activity repositories.UserActivityRepository
	projects repositories.ProjectRepository
	registry *blockchain.Registry
	prices   oracle.PriceSource
	webhooks *webhook.Dispatcher
	chains   config.ChainsConfig
	interval time.Duration
	stop     chan struct{}
}

func NewReceiptPoller(
	payments repositories.PaymasterPaymentRepository,
	txlogs repositories.TransactionLogRepository,
	wallets repositories.WalletRepository,
	activity repositories.UserActivityRepository,
	projects repositories.ProjectRepository,
	registry *blockchain.Registry,
	prices oracle.PriceSource,
	webhooks *webhook.Dispatcher,
	chains config.ChainsConfig,
) *ReceiptPoller {
	return &ReceiptPoller{
		payments: payments,
		txlogs:   txlogs,
		wallets:  wallets,
		activity: activity,
		projects: projects,
		registry: registry,
		prices:   prices,
		webhooks: webhooks,
		chains:   chains,
		interval: receiptPollInterval,
		stop:     make(chan struct{}),
	}
}

func (j *ReceiptPoller) Start(ctx context.Context) {
	logger.Info(ctx, "starting receipt poller", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stop:
			return
		case <-ticker.C:
			j.Poll(ctx)
		}
	}
}

func (j *ReceiptPoller) Stop() {
	close(j.stop)
}

// Poll reconciles one batch of pending payments
func (j *ReceiptPoller) Poll(ctx context.Context) {
	pending, err := j.payments.ListPending(ctx, time.Now().Add(-receiptPollGrace), receiptPollBatch)
	if err != nil {
		logger.Error(ctx, "receipt poll: list pending failed", zap.Error(err))
		return
	}

	for _, payment := range pending {
		if err := j.reconcile(ctx, payment); err != nil {
			logger.Warn(ctx, "receipt reconcile failed",
				zap.String("payment_id", payment.ID),
				zap.String("tx_hash", payment.TxHash),
				zap.Error(err))
		}
	}
}

func (j *ReceiptPoller) reconcile(ctx context.Context, payment *entities.PaymasterPayment) error {
	adapter, err := j.registry.Adapter(payment.Chain)
	if err != nil {
		return err
	}

	receipt, err := adapter.GetReceipt(ctx, payment.TxHash)
	if err != nil {
		return err
	}
	if receipt == nil {
		if time.Since(payment.CreatedAt) > deployDeadline {
			return j.settleFailed(ctx, payment, "transaction not confirmed within deadline")
		}
		return nil
	}
	if !receipt.Confirmed {
		return nil
	}
	if !receipt.Success {
		return j.settleFailed(ctx, payment, "transaction reverted on chain")
	}
	return j.settleConfirmed(ctx, payment, receipt)
}

func (j *ReceiptPoller) settleConfirmed(ctx context.Context, payment *entities.PaymasterPayment, receipt *blockchain.Receipt) error {
	gasPrice, ok := new(big.Int).SetString(receipt.GasPriceWei, 10)
	if !ok {
		gasPrice = big.NewInt(0)
	}
	costWei := new(big.Int).Mul(big.NewInt(receipt.GasUsed), gasPrice)
	native := rawToNative(costWei, payment.Chain.NativeDecimals())

	usd := 0.0
	if price, err := j.prices.PriceUSD(ctx, j.priceID(payment.Chain)); err == nil {
		usd = native * price
	} else {
		logger.Warn(ctx, "receipt poll: price lookup failed, recording zero usd",
			zap.String("chain", string(payment.Chain)), zap.Error(err))
	}

	err := j.payments.PatchReceipt(ctx, payment.ID, entities.PaymentStatusConfirmed,
		receipt.BlockNumber, receipt.GasUsed, receipt.GasPriceWei, costWei.String(), native, usd)
	if errors.Is(err, domainerrors.ErrAlreadyExists) {
		// Another poller settled this payment first.
		return nil
	}
	if err != nil {
		return err
	}

	txlog, err := j.txlogs.GetByTxHash(ctx, payment.TxHash)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := j.txlogs.Confirm(ctx, txlog.ID, receipt.BlockNumber, receipt.GasUsed,
		receipt.GasPriceWei, costWei.String(), usd); err != nil && !errors.Is(err, domainerrors.ErrAlreadyExists) {
		return err
	}

	if err := j.activity.IncrementOnConfirmedTx(ctx, txlog.ProjectID, txlog.UserIdentifier,
		txlog.SocialType, payment.Chain, usd, true); err != nil {
		logger.Warn(ctx, "receipt poll: activity increment failed", zap.Error(err))
	}

	project, perr := j.projects.GetByID(ctx, txlog.ProjectID)
	if perr != nil {
		project = nil
	}

	if txlog.TransactionType == entities.TxTypeWalletDeployment {
		j.settleDeployment(ctx, project, txlog, entities.ChainDeployment{
			Status:      entities.DeployStateDeployed,
			TxHash:      null.StringFrom(payment.TxHash),
			BlockNumber: null.Int64From(receipt.BlockNumber),
		})
	}

	j.webhooks.Notify(ctx, project, webhook.EventPaymasterPaymentConfirmed, map[string]interface{}{
		"paymentId":   payment.ID,
		"chain":       payment.Chain,
		"txHash":      payment.TxHash,
		"blockNumber": receipt.BlockNumber,
		"usdValue":    usd,
	})
	return nil
}

func (j *ReceiptPoller) settleFailed(ctx context.Context, payment *entities.PaymasterPayment, reason string) error {
	err := j.payments.PatchReceipt(ctx, payment.ID, entities.PaymentStatusFailed, 0, 0, "", "", 0, 0)
	if errors.Is(err, domainerrors.ErrAlreadyExists) {
		return nil
	}
	if err != nil {
		return err
	}

	txlog, err := j.txlogs.GetByTxHash(ctx, payment.TxHash)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := j.txlogs.MarkFailed(ctx, txlog.ID, reason); err != nil && !errors.Is(err, domainerrors.ErrAlreadyExists) {
		return err
	}

	project, perr := j.projects.GetByID(ctx, txlog.ProjectID)
	if perr != nil {
		project = nil
	}

	if txlog.TransactionType == entities.TxTypeWalletDeployment {
		j.settleDeployment(ctx, project, txlog, entities.ChainDeployment{
			Status: entities.DeployStateFailed,
			TxHash: null.StringFrom(payment.TxHash),
			Error:  null.StringFrom(reason),
		})
	}
	return nil
}

// settleDeployment moves the wallet's per-chain state out of pending and
// emits the matching webhook
func (j *ReceiptPoller) settleDeployment(ctx context.Context, project *entities.Project, txlog *entities.TransactionLog, d entities.ChainDeployment) {
	wallet, err := j.wallets.GetBySocial(ctx, txlog.ProjectID, txlog.UserIdentifier, txlog.SocialType)
	if err != nil {
		logger.Warn(ctx, "receipt poll: wallet lookup failed",
			zap.String("project_id", txlog.ProjectID),
			zap.String("user", txlog.UserIdentifier),
			zap.Error(err))
		return
	}

	moved, err := j.wallets.TransitionDeployState(ctx, wallet.ID, txlog.Chain,
		[]entities.DeployState{entities.DeployStatePending}, d)
	if err != nil {
		logger.Warn(ctx, "receipt poll: deploy transition failed",
			zap.String("wallet_id", wallet.ID), zap.Error(err))
		return
	}
	if !moved {
		return
	}

	event := webhook.EventWalletDeployed
	if d.Status == entities.DeployStateFailed {
		event = webhook.EventWalletDeployFailed
	}
	j.webhooks.Notify(ctx, project, event, map[string]interface{}{
		"walletId": wallet.ID,
		"chain":    txlog.Chain,
		"address":  wallet.Addresses[txlog.Chain],
		"txHash":   d.TxHash.String,
		"error":    d.Error.String,
	})
}

func (j *ReceiptPoller) priceID(chain entities.Chain) string {
	switch chain {
	case entities.ChainArbitrum:
		return j.chains.Arbitrum.PriceID
	case entities.ChainSolana:
		return j.chains.Solana.PriceID
	default:
		return j.chains.Ethereum.PriceID
	}
}
