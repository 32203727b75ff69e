package models

import (
	"time"

	"gorm.io/gorm"
)

type Project struct {
	ID                 string  `gorm:"type:varchar(40);primaryKey"`
	Name               string  `gorm:"type:varchar(100);not null"`
	Slug               string  `gorm:"type:varchar(120);uniqueIndex;not null"`
	Description        *string `gorm:"type:text"`
	Website            *string `gorm:"type:varchar(255)"`
	OwnerID            string  `gorm:"type:varchar(40);not null;index:idx_projects_owner_created,priority:1"`
	Chains             string  `gorm:"type:text;not null"` // JSON array
	PaymasterEnabled   bool    `gorm:"default:true"`
	WebhookURL         *string `gorm:"type:varchar(500)"`
	RateLimitPerMinute int     `gorm:"default:1000"`
	Status             string  `gorm:"type:varchar(20);not null;default:'active'"`
	CreatedAt          time.Time `gorm:"index:idx_projects_owner_created,priority:2"`
	UpdatedAt          time.Time
	DeletedAt          gorm.DeletedAt `gorm:"index"`
}

type ProjectMember struct {
	ProjectID  string `gorm:"type:varchar(40);primaryKey"`
	UserID     string `gorm:"type:varchar(40);primaryKey"`
	Email      string `gorm:"type:varchar(255);not null"`
	Role       string `gorm:"type:varchar(20);not null"`
	InvitedBy  string `gorm:"type:varchar(40);not null"`
	InvitedAt  time.Time
	AcceptedAt *time.Time `gorm:"type:timestamp"`
}
