package models

import (
	"time"

	"gorm.io/gorm"
)

type APIKey struct {
	ID           string  `gorm:"type:varchar(40);primaryKey"`
	ProjectID    string  `gorm:"type:varchar(40);not null;index:idx_api_keys_project_status,priority:1"`
	Name         string  `gorm:"type:varchar(100);not null"`
	EncryptedKey string  `gorm:"type:text;not null"`
	KeyIndex     string  `gorm:"type:varchar(64);uniqueIndex;not null"`
	KeyPreview   string  `gorm:"type:varchar(40);not null"`
	Type         string  `gorm:"type:varchar(20);not null"`
	Permissions  string  `gorm:"type:text;not null"` // JSON array
	IPAllowlist  string  `gorm:"type:text"`          // JSON array
	CreatedBy    string  `gorm:"type:varchar(40);not null"`
	LastUsedAt   *time.Time `gorm:"type:timestamp"`
	UsageCount   int64      `gorm:"default:0"`
	ExpiresAt    *time.Time `gorm:"type:timestamp"`
	RotatedAt    *time.Time `gorm:"type:timestamp"`
	Status       string     `gorm:"type:varchar(20);not null;default:'active';index:idx_api_keys_project_status,priority:2"`
	CreatedAt    time.Time  `gorm:"index:idx_api_keys_project_status,priority:3"`
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

type APIKeyUsage struct {
	UsageID        string `gorm:"type:varchar(40);primaryKey"`
	APIKeyID       string `gorm:"column:api_key_id;type:varchar(40);not null;index:idx_usage_key_created,priority:1"`
	ProjectID      string `gorm:"type:varchar(40);not null;index:idx_usage_project_created,priority:1"`
	Endpoint       string `gorm:"type:varchar(255);not null"`
	Method         string `gorm:"type:varchar(10);not null"`
	StatusCode     int
	ResponseTimeMs int64
	IPAddress      string  `gorm:"type:varchar(45)"`
	UserAgent      string  `gorm:"type:varchar(255)"`
	RequestSize    *int64
	ResponseSize   *int64
	ErrorMessage   *string   `gorm:"type:varchar(500)"`
	CreatedAt      time.Time `gorm:"index:idx_usage_key_created,priority:2;index:idx_usage_project_created,priority:2"`
}
