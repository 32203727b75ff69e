package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/infrastructure/models"
)

// streakLookback bounds how far back the active-day streak scan reaches.
const streakLookback = 60 * 24 * time.Hour

// TransactionLogRepository implements append-only transaction log operations
type TransactionLogRepository struct {
	db *gorm.DB
}

// NewTransactionLogRepository creates a new transaction log repository
func NewTransactionLogRepository(db *gorm.DB) *TransactionLogRepository {
	return &TransactionLogRepository{db: db}
}

// Create appends a transaction log row
func (r *TransactionLogRepository) Create(ctx context.Context, log *entities.TransactionLog) error {
	m, err := txLogToModel(log)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// GetByID gets a log row scoped to a project
func (r *TransactionLogRepository) GetByID(ctx context.Context, projectID, id string) (*entities.TransactionLog, error) {
	var m models.TransactionLog
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND id = ?", projectID, id).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return txLogToEntity(&m)
}

// GetByTxHash resolves a log row by its on-chain hash. Receipt pollers use
// this to join ledger entries back to the log.
func (r *TransactionLogRepository) GetByTxHash(ctx context.Context, txHash string) (*entities.TransactionLog, error) {
	var m models.TransactionLog
	err := r.db.WithContext(ctx).Where("tx_hash = ?", txHash).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return txLogToEntity(&m)
}

// List pages log rows with optional chain/status/time filters, newest first
func (r *TransactionLogRepository) List(ctx context.Context, projectID string, filter entities.TransactionFilter, limit, offset int) ([]*entities.TransactionLog, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.TransactionLog{}).Where("project_id = ?", projectID)
	if filter.Chain != "" {
		q = q.Where("chain = ?", string(filter.Chain))
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if !filter.From.IsZero() {
		q = q.Where("created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("created_at < ?", filter.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []models.TransactionLog
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&ms).Error
	if err != nil {
		return nil, 0, err
	}

	logs := make([]*entities.TransactionLog, 0, len(ms))
	for i := range ms {
		l, err := txLogToEntity(&ms[i])
		if err != nil {
			return nil, 0, err
		}
		logs = append(logs, l)
	}
	return logs, total, nil
}

// Confirm transitions a pending row to confirmed with its receipt fields.
// Only pending rows match, keeping the status monotonic.
func (r *TransactionLogRepository) Confirm(ctx context.Context, id string, blockNumber int64, gasUsed int64, gasPrice string, gasCost string, gasCostUSD float64) error {
	result := r.db.WithContext(ctx).Model(&models.TransactionLog{}).
		Where("id = ? AND status = ?", id, string(entities.TxStatusPending)).
		Updates(map[string]interface{}{
			"status":       string(entities.TxStatusConfirmed),
			"block_number": blockNumber,
			"gas_used":     gasUsed,
			"gas_price":    gasPrice,
			"gas_cost":     gasCost,
			"gas_cost_usd": gasCostUSD,
			"confirmed_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrAlreadyExists
	}
	return nil
}

// MarkFailed transitions a pending row to failed
func (r *TransactionLogRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	result := r.db.WithContext(ctx).Model(&models.TransactionLog{}).
		Where("id = ? AND status = ?", id, string(entities.TxStatusPending)).
		Updates(map[string]interface{}{
			"status":        string(entities.TxStatusFailed),
			"error_message": errMsg,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrAlreadyExists
	}
	return nil
}

// confirmedRow is the slim projection the analytics aggregations fetch.
type confirmedRow struct {
	Chain          string
	WalletAddress  string
	UserIdentifier string
	GasCostUSD     float64 `gorm:"column:gas_cost_usd"`
	PaymasterPaid  bool
	CreatedAt      time.Time
}

func (r *TransactionLogRepository) confirmedRows(ctx context.Context, projectID string, from, to time.Time) ([]confirmedRow, error) {
	q := r.db.WithContext(ctx).Model(&models.TransactionLog{}).
		Select("chain", "wallet_address", "user_identifier", "gas_cost_usd", "paymaster_paid", "created_at").
		Where("project_id = ? AND status = ?", projectID, string(entities.TxStatusConfirmed))
	if !from.IsZero() {
		q = q.Where("created_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("created_at < ?", to)
	}
	var rows []confirmedRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Overview aggregates confirmed rows since `from`. Grouping runs in Go so the
// same query plan serves sqlite in tests and postgres in production.
func (r *TransactionLogRepository) Overview(ctx context.Context, projectID string, from time.Time) (*entities.AnalyticsOverview, error) {
	rows, err := r.confirmedRows(ctx, projectID, from, time.Time{})
	if err != nil {
		return nil, err
	}

	wallets := map[string]struct{}{}
	users := map[string]struct{}{}
	overview := &entities.AnalyticsOverview{}
	for _, row := range rows {
		overview.TotalTransactions++
		overview.TotalGasUSD += row.GasCostUSD
		wallets[row.WalletAddress] = struct{}{}
		users[row.UserIdentifier] = struct{}{}
		if row.PaymasterPaid {
			overview.PaymasterTransactions++
		}
	}
	overview.DistinctWallets = int64(len(wallets))
	overview.DistinctUsers = int64(len(users))
	if overview.TotalTransactions > 0 {
		overview.PaymasterCoveragePct = float64(overview.PaymasterTransactions) / float64(overview.TotalTransactions) * 100
	}
	return overview, nil
}

// DailyMetrics groups confirmed rows by (UTC date, chain) over [from, to)
func (r *TransactionLogRepository) DailyMetrics(ctx context.Context, projectID string, from, to time.Time) ([]*entities.DailyMetric, error) {
	rows, err := r.confirmedRows(ctx, projectID, from, to)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		metric *entities.DailyMetric
		users  map[string]struct{}
	}
	type key struct {
		date  time.Time
		chain string
	}
	buckets := map[key]*bucket{}
	for _, row := range rows {
		day := row.CreatedAt.UTC().Truncate(24 * time.Hour)
		k := key{date: day, chain: row.Chain}
		b, ok := buckets[k]
		if !ok {
			b = &bucket{
				metric: &entities.DailyMetric{
					ProjectID: projectID,
					Date:      day,
					Chain:     entities.Chain(row.Chain),
				},
				users: map[string]struct{}{},
			}
			buckets[k] = b
		}
		b.metric.TxCount++
		b.metric.GasUSD += row.GasCostUSD
		b.users[row.UserIdentifier] = struct{}{}
		if row.PaymasterPaid {
			b.metric.PaymasterTxs++
		}
	}

	metrics := make([]*entities.DailyMetric, 0, len(buckets))
	for _, b := range buckets {
		b.metric.UniqueUsers = int64(len(b.users))
		metrics = append(metrics, b.metric)
	}
	sortDailyMetrics(metrics)
	return metrics, nil
}

func sortDailyMetrics(metrics []*entities.DailyMetric) {
	for i := 1; i < len(metrics); i++ {
		for j := i; j > 0; j-- {
			a, b := metrics[j-1], metrics[j]
			if a.Date.Before(b.Date) || (a.Date.Equal(b.Date) && a.Chain <= b.Chain) {
				break
			}
			metrics[j-1], metrics[j] = b, a
		}
	}
}

// DistinctTxTypes counts distinct confirmed transaction types for one user
func (r *TransactionLogRepository) DistinctTxTypes(ctx context.Context, projectID, userIdentifier string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.TransactionLog{}).
		Where("project_id = ? AND user_identifier = ? AND status = ?",
			projectID, userIdentifier, string(entities.TxStatusConfirmed)).
		Distinct("transaction_type").
		Count(&count).Error
	return count, err
}

// ActiveDayStreak counts consecutive UTC days with at least one confirmed
// transaction, ending today or yesterday
func (r *TransactionLogRepository) ActiveDayStreak(ctx context.Context, projectID, userIdentifier string, now time.Time) (int, error) {
	var stamps []time.Time
	err := r.db.WithContext(ctx).Model(&models.TransactionLog{}).
		Where("project_id = ? AND user_identifier = ? AND status = ? AND created_at >= ?",
			projectID, userIdentifier, string(entities.TxStatusConfirmed), now.Add(-streakLookback)).
		Pluck("created_at", &stamps).Error
	if err != nil {
		return 0, err
	}

	days := map[time.Time]struct{}{}
	for _, ts := range stamps {
		days[ts.UTC().Truncate(24*time.Hour)] = struct{}{}
	}

	day := now.UTC().Truncate(24 * time.Hour)
	if _, ok := days[day]; !ok {
		// A streak that ended yesterday still counts.
		day = day.AddDate(0, 0, -1)
	}
	streak := 0
	for {
		if _, ok := days[day]; !ok {
			break
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak, nil
}

// ExportRows returns confirmed rows in [from, to) ordered oldest first
func (r *TransactionLogRepository) ExportRows(ctx context.Context, projectID string, from, to time.Time) ([]*entities.TransactionLog, error) {
	var ms []models.TransactionLog
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND status = ? AND created_at >= ? AND created_at < ?",
			projectID, string(entities.TxStatusConfirmed), from, to).
		Order("created_at ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	logs := make([]*entities.TransactionLog, 0, len(ms))
	for i := range ms {
		l, err := txLogToEntity(&ms[i])
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, nil
}

func txLogToModel(l *entities.TransactionLog) (*models.TransactionLog, error) {
	details := ""
	if l.TransactionDetails != nil {
		b, err := json.Marshal(l.TransactionDetails)
		if err != nil {
			return nil, err
		}
		details = string(b)
	}
	metadata := ""
	if l.Metadata != nil {
		b, err := json.Marshal(l.Metadata)
		if err != nil {
			return nil, err
		}
		metadata = string(b)
	}
	return &models.TransactionLog{
		ID:                 l.ID,
		ProjectID:          l.ProjectID,
		TransactionType:    l.TransactionType,
		Chain:              string(l.Chain),
		WalletAddress:      l.WalletAddress,
		UserIdentifier:     l.UserIdentifier,
		SocialType:         l.SocialType,
		TxHash:             l.TxHash.Ptr(),
		BlockNumber:        l.BlockNumber.Ptr(),
		GasLimit:           l.GasLimit.Ptr(),
		GasUsed:            l.GasUsed.Ptr(),
		GasPrice:           l.GasPrice.Ptr(),
		GasCost:            l.GasCost.Ptr(),
		GasCostUSD:         l.GasCostUSD,
		Currency:           l.Currency,
		PaymasterPaid:      l.PaymasterPaid,
		PaymasterAddress:   l.PaymasterAddress.Ptr(),
		Status:             string(l.Status),
		ErrorMessage:       l.ErrorMessage.Ptr(),
		TransactionDetails: details,
		Metadata:           metadata,
		CreatedAt:          l.CreatedAt,
		ConfirmedAt:        l.ConfirmedAt.Ptr(),
	}, nil
}

func txLogToEntity(m *models.TransactionLog) (*entities.TransactionLog, error) {
	var details map[string]interface{}
	if m.TransactionDetails != "" {
		if err := json.Unmarshal([]byte(m.TransactionDetails), &details); err != nil {
			return nil, err
		}
	}
	var metadata map[string]interface{}
	if m.Metadata != "" {
		if err := json.Unmarshal([]byte(m.Metadata), &metadata); err != nil {
			return nil, err
		}
	}
	return &entities.TransactionLog{
		ID:                 m.ID,
		ProjectID:          m.ProjectID,
		TransactionType:    m.TransactionType,
		Chain:              entities.Chain(m.Chain),
		WalletAddress:      m.WalletAddress,
		UserIdentifier:     m.UserIdentifier,
		SocialType:         m.SocialType,
		TxHash:             null.StringFromPtr(m.TxHash),
		BlockNumber:        null.Int64FromPtr(m.BlockNumber),
		GasLimit:           null.Int64FromPtr(m.GasLimit),
		GasUsed:            null.Int64FromPtr(m.GasUsed),
		GasPrice:           null.StringFromPtr(m.GasPrice),
		GasCost:            null.StringFromPtr(m.GasCost),
		GasCostUSD:         m.GasCostUSD,
		Currency:           m.Currency,
		PaymasterPaid:      m.PaymasterPaid,
		PaymasterAddress:   null.StringFromPtr(m.PaymasterAddress),
		Status:             entities.TxStatus(m.Status),
		ErrorMessage:       null.StringFromPtr(m.ErrorMessage),
		TransactionDetails: details,
		Metadata:           metadata,
		CreatedAt:          m.CreatedAt,
		ConfirmedAt:        null.TimeFromPtr(m.ConfirmedAt),
	}, nil
}
