package entities

import "time"

// AnalyticsOverview summarizes the last N days of a project
type AnalyticsOverview struct {
	Days                  int     `json:"days"`
	TotalTransactions     int64   `json:"total_transactions"`
	DistinctWallets       int64   `json:"distinct_wallets"`
	DistinctUsers         int64   `json:"distinct_users"`
	TotalGasUSD           float64 `json:"total_gas_usd"`
	PaymasterTransactions int64   `json:"paymaster_transactions"`
	PaymasterCoveragePct  float64 `json:"paymaster_coverage_pct"`
}

// DailyMetric is the (date, chain) rollup row. Recomputable from raw logs.
type DailyMetric struct {
	ProjectID    string    `json:"projectId"`
	Date         time.Time `json:"date"`
	Chain        Chain     `json:"chain"`
	TxCount      int64     `json:"count"`
	UniqueUsers  int64     `json:"uniqueUsers"`
	GasUSD       float64   `json:"usdGas"`
	PaymasterTxs int64     `json:"paymasterTx"`
}

// TopUser is an entry in the top-users report
type TopUser struct {
	UserIdentifier   string  `json:"userIdentifier"`
	SocialType       string  `json:"socialType"`
	TransactionsSent int     `json:"transactionsSent"`
	TotalGasSpentUSD float64 `json:"totalGasSpentUsd"`
	EngagementScore  int     `json:"engagementScore"`
}

// CohortReport buckets users by firstActive age
type CohortReport struct {
	Bucket        string  `json:"bucket"` // "7d", "30d", "90d"
	TotalUsers    int64   `json:"totalUsers"`
	AvgTx         float64 `json:"avgTx"`
	AvgGasUSD     float64 `json:"avgGasUsd"`
	RetentionRate float64 `json:"retentionRate"`
}

// CostReport aggregates paymaster spend per chain over a window
type CostReport struct {
	Chain        Chain   `json:"chain"`
	ConfirmedTxs int64   `json:"confirmedTxs"`
	TotalWei     string  `json:"totalWei"`
	TotalUSD     float64 `json:"totalUsd"`
}
