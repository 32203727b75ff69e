package repositories

import (
	"context"
	"time"

	"nexuspay.backend/internal/domain/entities"
)

// PaymasterRepository defines paymaster wallet operations
type PaymasterRepository interface {
	Create(ctx context.Context, pm *entities.ProjectPaymaster) error
	Get(ctx context.Context, projectID string, chain entities.Chain) (*entities.ProjectPaymaster, error)
	ListByProject(ctx context.Context, projectID string) ([]*entities.ProjectPaymaster, error)
	ListAll(ctx context.Context) ([]*entities.ProjectPaymaster, error)
	SetFrozen(ctx context.Context, projectID string, frozen bool) error
}

// PaymasterBalanceRepository defines cached-balance operations
type PaymasterBalanceRepository interface {
	Upsert(ctx context.Context, balance *entities.PaymasterBalance) error
	Get(ctx context.Context, projectID string, chain entities.Chain) (*entities.PaymasterBalance, error)
	ListByProject(ctx context.Context, projectID string) ([]*entities.PaymasterBalance, error)
}

// PaymasterPaymentRepository defines sponsored-payment ledger operations.
// The ledger is append-only; status patches are monotonic.
type PaymasterPaymentRepository interface {
	Create(ctx context.Context, payment *entities.PaymasterPayment) error
	GetByID(ctx context.Context, id string) (*entities.PaymasterPayment, error)
	GetByTxHash(ctx context.Context, txHash string) (*entities.PaymasterPayment, error)
	// PatchReceipt fills receipt fields and transitions status. Returns
	// ErrAlreadyExists when the row is already terminal.
	PatchReceipt(ctx context.Context, id string, status entities.PaymentStatus, blockNumber int64, gasUsed int64, gasPrice string, amountWei string, amount float64, usdValue float64) error
	ListByProject(ctx context.Context, projectID string, chain entities.Chain, limit, offset int) ([]*entities.PaymasterPayment, int64, error)
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*entities.PaymasterPayment, error)
	TotalConfirmedByChain(ctx context.Context, projectID string, from, to time.Time) ([]*entities.CostReport, error)
}
