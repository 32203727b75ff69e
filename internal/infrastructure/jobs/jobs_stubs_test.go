package jobs

import (
	"context"
	"math/big"
	"time"

	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/infrastructure/blockchain"
)

// Shared repository stubs for job tests. Each stub records the calls a job
// makes and returns canned data.

type stubPaymasterRepo struct {
	paymasters []*entities.ProjectPaymaster
	listErr    error
}

func (s *stubPaymasterRepo) Create(context.Context, *entities.ProjectPaymaster) error { return nil }
func (s *stubPaymasterRepo) Get(context.Context, string, entities.Chain) (*entities.ProjectPaymaster, error) {
	return nil, domainerrors.ErrNotFound
}
func (s *stubPaymasterRepo) ListByProject(context.Context, string) ([]*entities.ProjectPaymaster, error) {
	return nil, nil
}
func (s *stubPaymasterRepo) ListAll(context.Context) ([]*entities.ProjectPaymaster, error) {
	return s.paymasters, s.listErr
}
func (s *stubPaymasterRepo) SetFrozen(context.Context, string, bool) error { return nil }

type stubBalanceRepo struct {
	rows     map[string]*entities.PaymasterBalance
	upserted []*entities.PaymasterBalance
}

func balanceKey(projectID string, chain entities.Chain) string {
	return projectID + "/" + string(chain)
}

func (s *stubBalanceRepo) Upsert(_ context.Context, b *entities.PaymasterBalance) error {
	if s.rows == nil {
		s.rows = make(map[string]*entities.PaymasterBalance)
	}
	s.rows[balanceKey(b.ProjectID, b.Chain)] = b
	s.upserted = append(s.upserted, b)
	return nil
}

func (s *stubBalanceRepo) Get(_ context.Context, projectID string, chain entities.Chain) (*entities.PaymasterBalance, error) {
	if b, ok := s.rows[balanceKey(projectID, chain)]; ok {
		return b, nil
	}
	return nil, domainerrors.ErrNotFound
}

func (s *stubBalanceRepo) ListByProject(context.Context, string) ([]*entities.PaymasterBalance, error) {
	return nil, nil
}

type stubProjectRepo struct {
	projects map[string]*entities.Project
}

func (s *stubProjectRepo) Create(context.Context, *entities.Project) error { return nil }
func (s *stubProjectRepo) GetByID(_ context.Context, id string) (*entities.Project, error) {
	if p, ok := s.projects[id]; ok {
		return p, nil
	}
	return nil, domainerrors.ErrNotFound
}
func (s *stubProjectRepo) GetBySlug(context.Context, string) (*entities.Project, error) {
	return nil, domainerrors.ErrNotFound
}
func (s *stubProjectRepo) SlugExists(context.Context, string) (bool, error) { return false, nil }
func (s *stubProjectRepo) ListByUser(context.Context, string) ([]*entities.Project, error) {
	return nil, nil
}
func (s *stubProjectRepo) Update(context.Context, *entities.Project) error { return nil }
func (s *stubProjectRepo) SoftDelete(context.Context, string) error        { return nil }

type patchCall struct {
	id     string
	status entities.PaymentStatus
	usd    float64
}

type stubPaymentRepo struct {
	pending  []*entities.PaymasterPayment
	patches  []patchCall
	patchErr error
}

func (s *stubPaymentRepo) Create(context.Context, *entities.PaymasterPayment) error { return nil }
func (s *stubPaymentRepo) GetByID(context.Context, string) (*entities.PaymasterPayment, error) {
	return nil, domainerrors.ErrNotFound
}
func (s *stubPaymentRepo) GetByTxHash(context.Context, string) (*entities.PaymasterPayment, error) {
	return nil, domainerrors.ErrNotFound
}
func (s *stubPaymentRepo) PatchReceipt(_ context.Context, id string, status entities.PaymentStatus, _ int64, _ int64, _ string, _ string, _ float64, usdValue float64) error {
	s.patches = append(s.patches, patchCall{id: id, status: status, usd: usdValue})
	return s.patchErr
}
func (s *stubPaymentRepo) ListByProject(context.Context, string, entities.Chain, int, int) ([]*entities.PaymasterPayment, int64, error) {
	return nil, 0, nil
}
func (s *stubPaymentRepo) ListPending(context.Context, time.Time, int) ([]*entities.PaymasterPayment, error) {
	return s.pending, nil
}
func (s *stubPaymentRepo) TotalConfirmedByChain(context.Context, string, time.Time, time.Time) ([]*entities.CostReport, error) {
	return nil, nil
}

type stubTxLogRepo struct {
	byHash    map[string]*entities.TransactionLog
	confirmed []string
	failed    map[string]string
	daily     map[string][]*entities.DailyMetric
}

func (s *stubTxLogRepo) Create(context.Context, *entities.TransactionLog) error { return nil }
func (s *stubTxLogRepo) GetByID(context.Context, string, string) (*entities.TransactionLog, error) {
	return nil, domainerrors.ErrNotFound
}
func (s *stubTxLogRepo) GetByTxHash(_ context.Context, txHash string) (*entities.TransactionLog, error) {
	if l, ok := s.byHash[txHash]; ok {
		return l, nil
	}
	return nil, domainerrors.ErrNotFound
}
func (s *stubTxLogRepo) List(context.Context, string, entities.TransactionFilter, int, int) ([]*entities.TransactionLog, int64, error) {
	return nil, 0, nil
}
func (s *stubTxLogRepo) Confirm(_ context.Context, id string, _ int64, _ int64, _ string, _ string, _ float64) error {
	s.confirmed = append(s.confirmed, id)
	return nil
}
func (s *stubTxLogRepo) MarkFailed(_ context.Context, id string, errMsg string) error {
	if s.failed == nil {
		s.failed = make(map[string]string)
	}
	s.failed[id] = errMsg
	return nil
}
func (s *stubTxLogRepo) Overview(context.Context, string, time.Time) (*entities.AnalyticsOverview, error) {
	return nil, nil
}
func (s *stubTxLogRepo) DailyMetrics(_ context.Context, projectID string, _, _ time.Time) ([]*entities.DailyMetric, error) {
	return s.daily[projectID], nil
}
func (s *stubTxLogRepo) DistinctTxTypes(context.Context, string, string) (int64, error) {
	return 0, nil
}
func (s *stubTxLogRepo) ActiveDayStreak(context.Context, string, string, time.Time) (int, error) {
	return 0, nil
}
func (s *stubTxLogRepo) ExportRows(context.Context, string, time.Time, time.Time) ([]*entities.TransactionLog, error) {
	return nil, nil
}

type transitionCall struct {
	walletID string
	chain    entities.Chain
	to       entities.ChainDeployment
}

type stubWalletRepo struct {
	wallet      *entities.Wallet
	transitions []transitionCall
}

func (s *stubWalletRepo) Create(context.Context, *entities.Wallet) error { return nil }
func (s *stubWalletRepo) GetByID(context.Context, string, string) (*entities.Wallet, error) {
	return s.wallet, nil
}
func (s *stubWalletRepo) GetBySocial(context.Context, string, string, string) (*entities.Wallet, error) {
	if s.wallet == nil {
		return nil, domainerrors.ErrNotFound
	}
	return s.wallet, nil
}
func (s *stubWalletRepo) List(context.Context, string, int, int) ([]*entities.Wallet, int64, error) {
	return nil, 0, nil
}
func (s *stubWalletRepo) CountByProject(context.Context, string) (int64, error) { return 0, nil }
func (s *stubWalletRepo) TransitionDeployState(_ context.Context, walletID string, chain entities.Chain, _ []entities.DeployState, to entities.ChainDeployment) (bool, error) {
	s.transitions = append(s.transitions, transitionCall{walletID: walletID, chain: chain, to: to})
	return true, nil
}
func (s *stubWalletRepo) UpdateDeployState(context.Context, string, entities.Chain, entities.ChainDeployment) error {
	return nil
}

type stubActivityRepo struct {
	confirmedTxs int
	lastGasUSD   float64
}

func (s *stubActivityRepo) Upsert(context.Context, *entities.UserActivity) error { return nil }
func (s *stubActivityRepo) Get(context.Context, string, string) (*entities.UserActivity, error) {
	return nil, domainerrors.ErrNotFound
}
func (s *stubActivityRepo) TopUsers(context.Context, string, string, int) ([]*entities.TopUser, error) {
	return nil, nil
}
func (s *stubActivityRepo) Cohorts(context.Context, string, time.Time) ([]*entities.CohortReport, error) {
	return nil, nil
}
func (s *stubActivityRepo) IncrementOnConfirmedTx(_ context.Context, _, _, _ string, _ entities.Chain, gasUSD float64, _ bool) error {
	s.confirmedTxs++
	s.lastGasUSD = gasUSD
	return nil
}
func (s *stubActivityRepo) IncrementWalletsCreated(context.Context, string, string, string) error {
	return nil
}

type stubDailyRepo struct {
	upserted []*entities.DailyMetric
}

func (s *stubDailyRepo) Upsert(_ context.Context, m *entities.DailyMetric) error {
	s.upserted = append(s.upserted, m)
	return nil
}
func (s *stubDailyRepo) List(context.Context, string, time.Time, time.Time) ([]*entities.DailyMetric, error) {
	return nil, nil
}

type stubUsageRepo struct {
	batches [][]*entities.APIKeyUsage
	err     error
}

func (s *stubUsageRepo) CreateBatch(_ context.Context, rows []*entities.APIKeyUsage) error {
	if s.err != nil {
		return s.err
	}
	copied := make([]*entities.APIKeyUsage, len(rows))
	copy(copied, rows)
	s.batches = append(s.batches, copied)
	return nil
}
func (s *stubUsageRepo) ListByKey(context.Context, string, int, int) ([]*entities.APIKeyUsage, int64, error) {
	return nil, 0, nil
}

// stubAdapter satisfies blockchain.ChainAdapter with canned values
type stubAdapter struct {
	chain      entities.Chain
	balance    *big.Int
	balanceErr error
	receipt    *blockchain.Receipt
	receiptErr error
}

func (s *stubAdapter) Chain() entities.Chain { return s.chain }
func (s *stubAdapter) PredictWalletAddress(context.Context, string, [32]byte) (string, error) {
	return "", nil
}
func (s *stubAdapter) DeployWallet(context.Context, []byte, string, [32]byte) (string, error) {
	return "", nil
}
func (s *stubAdapter) SubmitSponsoredOp(context.Context, []byte, blockchain.SponsoredOp) (string, error) {
	return "", nil
}
func (s *stubAdapter) GetBalance(context.Context, string) (*big.Int, error) {
	return s.balance, s.balanceErr
}
func (s *stubAdapter) GetReceipt(context.Context, string) (*blockchain.Receipt, error) {
	return s.receipt, s.receiptErr
}
func (s *stubAdapter) ExplorerTxURL(txHash string) string { return "https://example.org/tx/" + txHash }

// stubPrices is a fixed-price oracle
type stubPrices struct {
	price float64
	err   error
}

func (s *stubPrices) PriceUSD(context.Context, string) (float64, error) {
	return s.price, s.err
}
