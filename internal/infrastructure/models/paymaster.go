package models

import "time"

type ProjectPaymaster struct {
	ID                  string `gorm:"type:varchar(40);primaryKey"`
	ProjectID           string `gorm:"type:varchar(40);not null;uniqueIndex:idx_paymasters_project_chain,priority:1"`
	Chain               string `gorm:"type:varchar(20);not null;uniqueIndex:idx_paymasters_project_chain,priority:2"`
	Address             string `gorm:"type:varchar(64);not null"`
	EncryptedPrivateKey string `gorm:"type:text;not null"`
	Frozen              bool   `gorm:"default:false"`
	CreatedAt           time.Time
}

type PaymasterBalance struct {
	ProjectID     string  `gorm:"type:varchar(40);primaryKey"`
	Chain         string  `gorm:"type:varchar(20);primaryKey"`
	Address       string  `gorm:"type:varchar(64);not null"`
	BalanceNative float64
	BalanceWei    string `gorm:"type:varchar(80);not null;default:'0'"`
	BalanceUSD    float64 `gorm:"column:balance_usd"`
	TokenPriceUSD float64 `gorm:"column:token_price_usd"`
	LastUpdated   time.Time `gorm:"index"`
	LastTxHash    *string   `gorm:"type:varchar(128)"`
}

type PaymasterPayment struct {
	ID                string `gorm:"type:varchar(40);primaryKey"`
	ProjectID         string `gorm:"type:varchar(40);not null;index:idx_payments_project_created,priority:1"`
	PaymasterAddress  string `gorm:"type:varchar(64);not null"`
	Chain             string `gorm:"type:varchar(20);not null"`
	Amount            float64
	AmountWei         string `gorm:"type:varchar(80);not null"`
	GasForAddress     string `gorm:"type:varchar(64)"`
	TxHash            string `gorm:"type:varchar(128);uniqueIndex;not null"`
	BlockNumber       *int64
	GasPrice          *string `gorm:"type:varchar(40)"`
	GasUsed           *int64
	USDValue          float64 `gorm:"column:usd_value"`
	OperationType     string  `gorm:"type:varchar(40);not null"`
	UserOperationHash *string `gorm:"type:varchar(128)"`
	Status            string  `gorm:"type:varchar(20);not null;default:'pending';index"`
	CreatedAt         time.Time `gorm:"index:idx_payments_project_created,priority:2"`
}
