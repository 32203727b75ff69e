package usecases

import (
	"context"

	"nexuspay.backend/internal/domain/entities"
	"nexuspay.backend/internal/domain/repositories"
	"nexuspay.backend/pkg/utils"
)

// TransactionUsecase serves the per-project transaction log
type TransactionUsecase struct {
	txLogRepo repositories.TransactionLogRepository
}

// NewTransactionUsecase creates a new transaction usecase
func NewTransactionUsecase(txLogRepo repositories.TransactionLogRepository) *TransactionUsecase {
	return &TransactionUsecase{txLogRepo: txLogRepo}
}

// List returns a filtered page of the log, newest first
func (u *TransactionUsecase) List(ctx context.Context, projectID string, filter entities.TransactionFilter, page, limit int) ([]*entities.TransactionLog, int64, error) {
	p := utils.GetPaginationParams(page, limit)
	return u.txLogRepo.List(ctx, projectID, filter, p.Limit, p.CalculateOffset())
}

// Get returns one log row scoped to the project
func (u *TransactionUsecase) Get(ctx context.Context, projectID, id string) (*entities.TransactionLog, error) {
	return u.txLogRepo.GetByID(ctx, projectID, id)
}
