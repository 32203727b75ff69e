package models

import "time"

type TransactionLog struct {
	ID                 string `gorm:"type:varchar(40);primaryKey"`
	ProjectID          string `gorm:"type:varchar(40);not null;index:idx_txlogs_project_created,priority:1;index:idx_txlogs_project_chain,priority:1;index:idx_txlogs_project_user,priority:1"`
	TransactionType    string `gorm:"type:varchar(40);not null"`
	Chain              string `gorm:"type:varchar(20);not null;index:idx_txlogs_project_chain,priority:2"`
	WalletAddress      string `gorm:"type:varchar(64);not null"`
	UserIdentifier     string `gorm:"type:varchar(255);not null;index:idx_txlogs_project_user,priority:2"`
	SocialType         string `gorm:"type:varchar(50)"`
	TxHash             *string `gorm:"type:varchar(128);index"`
	BlockNumber        *int64
	GasLimit           *int64
	GasUsed            *int64
	GasPrice           *string `gorm:"type:varchar(40)"`
	GasCost            *string `gorm:"type:varchar(80)"`
	GasCostUSD         float64 `gorm:"column:gas_cost_usd"`
	Currency           string  `gorm:"type:varchar(10)"`
	PaymasterPaid      bool    `gorm:"default:false"`
	PaymasterAddress   *string `gorm:"type:varchar(64)"`
	Status             string  `gorm:"type:varchar(20);not null;default:'pending'"`
	ErrorMessage       *string `gorm:"type:varchar(500)"`
	TransactionDetails string  `gorm:"type:text"` // JSON object
	Metadata           string  `gorm:"type:text"` // JSON object
	CreatedAt          time.Time `gorm:"index:idx_txlogs_project_created,priority:2;index:idx_txlogs_project_chain,priority:3;index:idx_txlogs_project_user,priority:3"`
	ConfirmedAt        *time.Time `gorm:"type:timestamp"`
}

type UserActivity struct {
	ProjectID             string `gorm:"type:varchar(40);primaryKey"`
	UserIdentifier        string `gorm:"type:varchar(255);primaryKey"`
	SocialType            string `gorm:"type:varchar(50)"`
	WalletsCreated        int
	TransactionsSent      int
	TotalGasSpentUSD      float64 `gorm:"column:total_gas_spent_usd"`
	PaymasterTransactions int
	UserPaidTransactions  int
	ChainsUsed            string `gorm:"type:text"` // JSON array
	PreferredChain        string `gorm:"type:varchar(20)"`
	FirstActive           time.Time
	LastActive            time.Time `gorm:"index"`
	EngagementScore       int
}

type DailyMetric struct {
	ProjectID    string    `gorm:"type:varchar(40);primaryKey"`
	Date         time.Time `gorm:"primaryKey"`
	Chain        string    `gorm:"type:varchar(20);primaryKey"`
	TxCount      int64
	UniqueUsers  int64
	GasUSD       float64 `gorm:"column:gas_usd"`
	PaymasterTxs int64
}
