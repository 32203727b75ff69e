package models

import "time"

type Wallet struct {
	ID          string `gorm:"type:varchar(40);primaryKey"`
	ProjectID   string `gorm:"type:varchar(40);not null;uniqueIndex:idx_wallets_social,priority:1"`
	SocialID    string `gorm:"type:varchar(255);not null;uniqueIndex:idx_wallets_social,priority:2"`
	SocialType  string `gorm:"type:varchar(50);not null;uniqueIndex:idx_wallets_social,priority:3"`
	Addresses   string `gorm:"type:text;not null"` // JSON map chain→address
	Deployments string `gorm:"type:text;not null"` // JSON map chain→deployment state
	Metadata    string `gorm:"type:text"`          // JSON object
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
