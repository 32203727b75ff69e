package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"nexuspay.backend/internal/domain/repositories"
	"nexuspay.backend/pkg/logger"
)

// rollupSchedule runs shortly after midnight UTC so the previous day is closed
const rollupSchedule = "10 0 * * *"

// AnalyticsRollup materializes per-day (project, chain) metrics from the raw
// transaction log. Rollups recompute from source, so reruns are idempotent.
type AnalyticsRollup struct {
	txlogs     repositories.TransactionLogRepository
	daily      repositories.DailyMetricRepository
	paymasters repositories.PaymasterRepository
	cron       *cron.Cron
}

func NewAnalyticsRollup(
	txlogs repositories.TransactionLogRepository,
	daily repositories.DailyMetricRepository,
	paymasters repositories.PaymasterRepository,
) *AnalyticsRollup {
	return &AnalyticsRollup{
		txlogs:     txlogs,
		daily:      daily,
		paymasters: paymasters,
		cron:       cron.New(cron.WithLocation(time.UTC)),
	}
}

func (j *AnalyticsRollup) Start(ctx context.Context) {
	_, err := j.cron.AddFunc(rollupSchedule, func() {
		yesterday := time.Now().UTC().AddDate(0, 0, -1)
		j.RollupDay(ctx, yesterday)
	})
	if err != nil {
		logger.Error(ctx, "analytics rollup: bad schedule", zap.Error(err))
		return
	}
	logger.Info(ctx, "starting analytics rollup", zap.String("schedule", rollupSchedule))
	j.cron.Start()
}

func (j *AnalyticsRollup) Stop() {
	<-j.cron.Stop().Done()
}

// RollupDay recomputes and upserts the metrics for one UTC day across all
// projects. Exported for backfills.
func (j *AnalyticsRollup) RollupDay(ctx context.Context, day time.Time) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	// Every project has at least one paymaster, so the paymaster table is a
	// cheap project enumeration.
	paymasters, err := j.paymasters.ListAll(ctx)
	if err != nil {
		logger.Error(ctx, "analytics rollup: list projects failed", zap.Error(err))
		return
	}

	seen := make(map[string]struct{}, len(paymasters))
	var rows int
	for _, pm := range paymasters {
		if _, done := seen[pm.ProjectID]; done {
			continue
		}
		seen[pm.ProjectID] = struct{}{}

		metrics, err := j.txlogs.DailyMetrics(ctx, pm.ProjectID, dayStart, dayEnd)
		if err != nil {
			logger.Error(ctx, "analytics rollup: metrics failed",
				zap.String("project_id", pm.ProjectID), zap.Error(err))
			continue
		}
		for _, metric := range metrics {
			if err := j.daily.Upsert(ctx, metric); err != nil {
				logger.Error(ctx, "analytics rollup: upsert failed",
					zap.String("project_id", pm.ProjectID), zap.Error(err))
				continue
			}
			rows++
		}
	}

	logger.Info(ctx, "analytics rollup complete",
		zap.Time("day", dayStart), zap.Int("projects", len(seen)), zap.Int("rows", rows))
}
