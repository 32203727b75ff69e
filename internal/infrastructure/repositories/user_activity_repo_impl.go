package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/infrastructure/models"
)

// UserActivityRepository implements rolling-counter operations
type UserActivityRepository struct {
	db *gorm.DB
}

// NewUserActivityRepository creates a new user activity repository
func NewUserActivityRepository(db *gorm.DB) *UserActivityRepository {
	return &UserActivityRepository{db: db}
}

// Upsert replaces the full counter row for a (project, user) pair
func (r *UserActivityRepository) Upsert(ctx context.Context, activity *entities.UserActivity) error {
	m, err := activityToModel(activity)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "project_id"}, {Name: "user_identifier"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"social_type", "wallets_created", "transactions_sent",
			"total_gas_spent_usd", "paymaster_transactions", "user_paid_transactions",
			"chains_used", "preferred_chain", "first_active", "last_active",
			"engagement_score",
		}),
	}).Create(m).Error
}

// Get gets the counters for a (project, user) pair
func (r *UserActivityRepository) Get(ctx context.Context, projectID, userIdentifier string) (*entities.UserActivity, error) {
	var m models.UserActivity
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND user_identifier = ?", projectID, userIdentifier).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return activityToEntity(&m)
}

// TopUsers orders users by transactions_sent or total_gas_spent_usd, capped at 100
func (r *UserActivityRepository) TopUsers(ctx context.Context, projectID, orderBy string, limit int) ([]*entities.TopUser, error) {
	order := "transactions_sent DESC"
	if orderBy == "totalGasSpentUsd" {
		order = "total_gas_spent_usd DESC"
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var ms []models.UserActivity
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order(order).
		Limit(limit).
		Find(&ms).Error
	if err != nil {
		return nil, err
	}

	users := make([]*entities.TopUser, 0, len(ms))
	for i := range ms {
		users = append(users, &entities.TopUser{
			UserIdentifier:   ms[i].UserIdentifier,
			SocialType:       ms[i].SocialType,
			TransactionsSent: ms[i].TransactionsSent,
			TotalGasSpentUSD: ms[i].TotalGasSpentUSD,
			EngagementScore:  ms[i].EngagementScore,
		})
	}
	return users, nil
}

// Cohorts buckets users by firstActive age into 7/30/90-day cohorts
func (r *UserActivityRepository) Cohorts(ctx context.Context, projectID string, now time.Time) ([]*entities.CohortReport, error) {
	var ms []models.UserActivity
	err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Find(&ms).Error
	if err != nil {
		return nil, err
	}

	type acc struct {
		users  int64
		tx     int64
		gasUSD float64
		active int64
	}
	buckets := map[string]*acc{"7d": {}, "30d": {}, "90d": {}}
	activeCutoff := now.AddDate(0, 0, -7)

	for i := range ms {
		age := now.Sub(ms[i].FirstActive)
		var bucket string
		switch {
		case age <= 7*24*time.Hour:
			bucket = "7d"
		case age <= 30*24*time.Hour:
			bucket = "30d"
		case age <= 90*24*time.Hour:
			bucket = "90d"
		default:
			continue
		}
		a := buckets[bucket]
		a.users++
		a.tx += int64(ms[i].TransactionsSent)
		a.gasUSD += ms[i].TotalGasSpentUSD
		if ms[i].LastActive.After(activeCutoff) {
			a.active++
		}
	}

	reports := make([]*entities.CohortReport, 0, 3)
	for _, bucket := range []string{"7d", "30d", "90d"} {
		a := buckets[bucket]
		report := &entities.CohortReport{Bucket: bucket, TotalUsers: a.users}
		if a.users > 0 {
			report.AvgTx = float64(a.tx) / float64(a.users)
			report.AvgGasUSD = a.gasUSD / float64(a.users)
			report.RetentionRate = float64(a.active) / float64(a.users) * 100
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// IncrementOnConfirmedTx merges one confirmed transaction into the counters.
// Runs read-modify-write in a transaction; the ledger volume per user is low
// enough that row contention is not a concern.
func (r *UserActivityRepository) IncrementOnConfirmedTx(ctx context.Context, projectID, userIdentifier, socialType string, chain entities.Chain, gasUSD float64, paymasterPaid bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activity, err := r.loadOrInit(tx, projectID, userIdentifier, socialType)
		if err != nil {
			return err
		}

		activity.TransactionsSent++
		activity.TotalGasSpentUSD += gasUSD
		if paymasterPaid {
			activity.PaymasterTransactions++
		} else {
			activity.UserPaidTransactions++
		}
		addChain(activity, chain)
		activity.PreferredChain = chain
		activity.LastActive = time.Now()

		m, err := activityToModel(activity)
		if err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "user_identifier"}},
			UpdateAll: true,
		}).Create(m).Error
	})
}

// IncrementWalletsCreated merges one wallet creation into the counters
func (r *UserActivityRepository) IncrementWalletsCreated(ctx context.Context, projectID, userIdentifier, socialType string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activity, err := r.loadOrInit(tx, projectID, userIdentifier, socialType)
		if err != nil {
			return err
		}
		activity.WalletsCreated++
		activity.LastActive = time.Now()

		m, err := activityToModel(activity)
		if err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "user_identifier"}},
			UpdateAll: true,
		}).Create(m).Error
	})
}

func (r *UserActivityRepository) loadOrInit(tx *gorm.DB, projectID, userIdentifier, socialType string) (*entities.UserActivity, error) {
	var m models.UserActivity
	err := tx.Where("project_id = ? AND user_identifier = ?", projectID, userIdentifier).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			now := time.Now()
			return &entities.UserActivity{
				ProjectID:      projectID,
				UserIdentifier: userIdentifier,
				SocialType:     socialType,
				FirstActive:    now,
				LastActive:     now,
			}, nil
		}
		return nil, err
	}
	return activityToEntity(&m)
}

func addChain(a *entities.UserActivity, chain entities.Chain) {
	for _, c := range a.ChainsUsed {
		if c == chain {
			return
		}
	}
	a.ChainsUsed = append(a.ChainsUsed, chain)
}

func activityToModel(a *entities.UserActivity) (*models.UserActivity, error) {
	chains, err := json.Marshal(a.ChainsUsed)
	if err != nil {
		return nil, err
	}
	return &models.UserActivity{
		ProjectID:             a.ProjectID,
		UserIdentifier:        a.UserIdentifier,
		SocialType:            a.SocialType,
		WalletsCreated:        a.WalletsCreated,
		TransactionsSent:      a.TransactionsSent,
		TotalGasSpentUSD:      a.TotalGasSpentUSD,
		PaymasterTransactions: a.PaymasterTransactions,
		UserPaidTransactions:  a.UserPaidTransactions,
		ChainsUsed:            string(chains),
		PreferredChain:        string(a.PreferredChain),
		FirstActive:           a.FirstActive,
		LastActive:            a.LastActive,
		EngagementScore:       a.EngagementScore,
	}, nil
}

func activityToEntity(m *models.UserActivity) (*entities.UserActivity, error) {
	var chains []entities.Chain
	if m.ChainsUsed != "" {
		if err := json.Unmarshal([]byte(m.ChainsUsed), &chains); err != nil {
			return nil, err
		}
	}
	return &entities.UserActivity{
		ProjectID:             m.ProjectID,
		UserIdentifier:        m.UserIdentifier,
		SocialType:            m.SocialType,
		WalletsCreated:        m.WalletsCreated,
		TransactionsSent:      m.TransactionsSent,
		TotalGasSpentUSD:      m.TotalGasSpentUSD,
		PaymasterTransactions: m.PaymasterTransactions,
		UserPaidTransactions:  m.UserPaidTransactions,
		ChainsUsed:            chains,
		PreferredChain:        entities.Chain(m.PreferredChain),
		FirstActive:           m.FirstActive,
		LastActive:            m.LastActive,
		EngagementScore:       m.EngagementScore,
	}, nil
}

// DailyMetricRepository stores idempotent daily rollups
type DailyMetricRepository struct {
	db *gorm.DB
}

// NewDailyMetricRepository creates a new daily metric repository
func NewDailyMetricRepository(db *gorm.DB) *DailyMetricRepository {
	return &DailyMetricRepository{db: db}
}

// Upsert writes a rollup row; rerunning a rollup overwrites the same key
func (r *DailyMetricRepository) Upsert(ctx context.Context, metric *entities.DailyMetric) error {
	m := &models.DailyMetric{
		ProjectID:    metric.ProjectID,
		Date:         metric.Date,
		Chain:        string(metric.Chain),
		TxCount:      metric.TxCount,
		UniqueUsers:  metric.UniqueUsers,
		GasUSD:       metric.GasUSD,
		PaymasterTxs: metric.PaymasterTxs,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "project_id"}, {Name: "date"}, {Name: "chain"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"tx_count", "unique_users", "gas_usd", "paymaster_txs",
		}),
	}).Create(m).Error
}

// List returns rollup rows for [from, to) ordered by date then chain
func (r *DailyMetricRepository) List(ctx context.Context, projectID string, from, to time.Time) ([]*entities.DailyMetric, error) {
	var ms []models.DailyMetric
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND date >= ? AND date < ?", projectID, from, to).
		Order("date ASC, chain ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	metrics := make([]*entities.DailyMetric, 0, len(ms))
	for i := range ms {
		metrics = append(metrics, &entities.DailyMetric{
			ProjectID:    ms[i].ProjectID,
			Date:         ms[i].Date,
			Chain:        entities.Chain(ms[i].Chain),
			TxCount:      ms[i].TxCount,
			UniqueUsers:  ms[i].UniqueUsers,
			GasUSD:       ms[i].GasUSD,
			PaymasterTxs: ms[i].PaymasterTxs,
		})
	}
	return metrics, nil
}
