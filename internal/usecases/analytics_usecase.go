package usecases

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/domain/repositories"
)

const (
	defaultOverviewDays = 30
	maxOverviewDays     = 365
	maxTopUsers         = 100
	maxExportWindow     = 90 * 24 * time.Hour
)

// AnalyticsUsecase serves project analytics off the transaction log, the
// rolling per-user counters and the nightly rollups
type AnalyticsUsecase struct {
	txLogRepo    repositories.TransactionLogRepository
	activityRepo repositories.UserActivityRepository
	dailyRepo    repositories.DailyMetricRepository
}

// NewAnalyticsUsecase creates a new analytics usecase
func NewAnalyticsUsecase(
	txLogRepo repositories.TransactionLogRepository,
	activityRepo repositories.UserActivityRepository,
	dailyRepo repositories.DailyMetricRepository,
) *AnalyticsUsecase {
	return &AnalyticsUsecase{
		txLogRepo:    txLogRepo,
		activityRepo: activityRepo,
		dailyRepo:    dailyRepo,
	}
}

// Overview summarizes the trailing window; days defaults to 30, capped at 365
func (u *AnalyticsUsecase) Overview(ctx context.Context, projectID string, days int) (*entities.AnalyticsOverview, error) {
	if days <= 0 {
		days = defaultOverviewDays
	}
	if days > maxOverviewDays {
		days = maxOverviewDays
	}

	overview, err := u.txLogRepo.Overview(ctx, projectID, time.Now().UTC().AddDate(0, 0, -days))
	if err != nil {
		return nil, err
	}
	overview.Days = days
	return overview, nil
}

// Daily returns per-(date, chain) rows for [from, to]. Rolled-up rows are
// preferred; days past the last rollup (typically today, since the rollup runs
// nightly for the previous day) are computed live from the transaction log.
func (u *AnalyticsUsecase) Daily(ctx context.Context, projectID string, from, to time.Time) ([]*entities.DailyMetric, error) {
	from, to, err := normalizeWindow(from, to, defaultOverviewDays)
	if err != nil {
		return nil, err
	}

	rolled, err := u.dailyRepo.List(ctx, projectID, from, to)
	if err != nil {
		return nil, err
	}

	liveFrom := from
	if len(rolled) > 0 {
		last := rolled[len(rolled)-1].Date
		liveFrom = last.AddDate(0, 0, 1)
	}
	if !liveFrom.Before(to) && !liveFrom.Equal(to) {
		return rolled, nil
	}

	live, err := u.txLogRepo.DailyMetrics(ctx, projectID, liveFrom, to)
	if err != nil {
		return nil, err
	}
	return append(rolled, live...), nil
}

// TopUsers returns the most active users ordered by transactionsSent or
// totalGasSpentUsd, capped at 100 rows
func (u *AnalyticsUsecase) TopUsers(ctx context.Context, projectID, orderBy string, limit int) ([]*entities.TopUser, error) {
	switch orderBy {
	case "":
		orderBy = "transactionsSent"
	case "transactionsSent", "totalGasSpentUsd":
	default:
		return nil, domainerrors.BadRequest("orderBy must be transactionsSent or totalGasSpentUsd").WithField("orderBy")
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > maxTopUsers {
		limit = maxTopUsers
	}
	return u.activityRepo.TopUsers(ctx, projectID, orderBy, limit)
}

// Cohorts buckets users by account age
func (u *AnalyticsUsecase) Cohorts(ctx context.Context, projectID string) ([]*entities.CohortReport, error) {
	return u.activityRepo.Cohorts(ctx, projectID, time.Now().UTC())
}

// Engagement recomputes and persists a user's engagement score
func (u *AnalyticsUsecase) Engagement(ctx context.Context, projectID, userIdentifier string) (*entities.UserActivity, error) {
	activity, err := u.activityRepo.Get(ctx, projectID, userIdentifier)
	if err != nil {
		return nil, err
	}

	txTypes, err := u.txLogRepo.DistinctTxTypes(ctx, projectID, userIdentifier)
	if err != nil {
		return nil, err
	}
	streak, err := u.txLogRepo.ActiveDayStreak(ctx, projectID, userIdentifier, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	activity.EngagementScore = engagementScore(activity, txTypes, streak, time.Now().UTC())
	if err := u.activityRepo.Upsert(ctx, activity); err != nil {
		return nil, err
	}
	return activity, nil
}

// engagementScore weights breadth and recency of activity, capped at 1000
func engagementScore(a *entities.UserActivity, txTypes int64, streakDays int, now time.Time) int {
	score := 2*a.TransactionsSent +
		5*a.WalletsCreated +
		10*len(a.ChainsUsed) +
		3*int(txTypes)

	idle := now.Sub(a.LastActive)
	switch {
	case idle <= 24*time.Hour:
		score += 20
	case idle <= 7*24*time.Hour:
		score += 10
	case idle <= 30*24*time.Hour:
		score += 5
	}

	streakBonus := 2 * streakDays
	if streakBonus > 50 {
		streakBonus = 50
	}
	score += streakBonus

	if score > entities.MaxEngagementScore {
		score = entities.MaxEngagementScore
	}
	return score
}

// ExportCSV renders the project's transaction log for [from, to] as CSV.
// The window is capped at 90 days.
func (u *AnalyticsUsecase) ExportCSV(ctx context.Context, projectID string, from, to time.Time) ([]byte, error) {
	from, to, err := normalizeWindow(from, to, defaultOverviewDays)
	if err != nil {
		return nil, err
	}
	if to.Sub(from) > maxExportWindow {
		return nil, domainerrors.BadRequest("export window is capped at 90 days").WithField("from")
	}

	rows, err := u.txLogRepo.ExportRows(ctx, projectID, from, to)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{
		"id", "createdAt", "transactionType", "chain", "walletAddress",
		"userIdentifier", "socialType", "txHash", "status",
		"gasCostUsd", "paymasterPaid", "currency", "explorerUrl",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, row := range rows {
		record := []string{
			row.ID,
			row.CreatedAt.UTC().Format(time.RFC3339),
			row.TransactionType,
			string(row.Chain),
			row.WalletAddress,
			row.UserIdentifier,
			row.SocialType,
			row.TxHash.String,
			string(row.Status),
			strconv.FormatFloat(row.GasCostUSD, 'f', -1, 64),
			strconv.FormatBool(row.PaymasterPaid),
			row.Currency,
			row.ExplorerURL,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// normalizeWindow fills defaults and validates ordering. A zero to means now;
// a zero from means defaultDays before to.
func normalizeWindow(from, to time.Time, defaultDays int) (time.Time, time.Time, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -defaultDays)
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, domainerrors.BadRequest(
			fmt.Sprintf("from %s must precede to %s", from.Format(time.RFC3339), to.Format(time.RFC3339))).
			WithField("from")
	}
	return from, to, nil
}
