package repositories

import (
	"context"
	"time"

	"nexuspay.backend/internal/domain/entities"
)

// TransactionLogRepository defines append-only transaction log operations
type TransactionLogRepository interface {
	Create(ctx context.Context, log *entities.TransactionLog) error
	GetByID(ctx context.Context, projectID, id string) (*entities.TransactionLog, error)
	GetByTxHash(ctx context.Context, txHash string) (*entities.TransactionLog, error)
	List(ctx context.Context, projectID string, filter entities.TransactionFilter, limit, offset int) ([]*entities.TransactionLog, int64, error)
	Confirm(ctx context.Context, id string, blockNumber int64, gasUsed int64, gasPrice string, gasCost string, gasCostUSD float64) error
	MarkFailed(ctx context.Context, id string, errMsg string) error

	// Analytics aggregations, filtered to status=confirmed
	Overview(ctx context.Context, projectID string, from time.Time) (*entities.AnalyticsOverview, error)
	DailyMetrics(ctx context.Context, projectID string, from, to time.Time) ([]*entities.DailyMetric, error)
	DistinctTxTypes(ctx context.Context, projectID, userIdentifier string) (int64, error)
	ActiveDayStreak(ctx context.Context, projectID, userIdentifier string, now time.Time) (int, error)
	ExportRows(ctx context.Context, projectID string, from, to time.Time) ([]*entities.TransactionLog, error)
}

// UserActivityRepository defines rolling-counter operations
type UserActivityRepository interface {
	// Upsert merges the delta into the per-user counters.
	Upsert(ctx context.Context, activity *entities.UserActivity) error
	Get(ctx context.Context, projectID, userIdentifier string) (*entities.UserActivity, error)
	TopUsers(ctx context.Context, projectID, orderBy string, limit int) ([]*entities.TopUser, error)
	Cohorts(ctx context.Context, projectID string, now time.Time) ([]*entities.CohortReport, error)
	IncrementOnConfirmedTx(ctx context.Context, projectID, userIdentifier, socialType string, chain entities.Chain, gasUSD float64, paymasterPaid bool) error
	IncrementWalletsCreated(ctx context.Context, projectID, userIdentifier, socialType string) error
}

// DailyMetricRepository stores idempotent daily rollups
type DailyMetricRepository interface {
	Upsert(ctx context.Context, metric *entities.DailyMetric) error
	List(ctx context.Context, projectID string, from, to time.Time) ([]*entities.DailyMetric, error)
}
