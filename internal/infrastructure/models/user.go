package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID                  string     `gorm:"type:varchar(40);primaryKey"`
	Email               string     `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash        *string    `gorm:"type:varchar(255)"`
	OAuthID             *string    `gorm:"column:oauth_id;type:varchar(255);index"`
	OAuthProvider       *string    `gorm:"column:oauth_provider;type:varchar(50)"`
	Name                string     `gorm:"type:varchar(100);not null"`
	Company             *string    `gorm:"type:varchar(255)"`
	EmailVerified       bool       `gorm:"default:false"`
	VerificationToken   *string    `gorm:"type:varchar(64);index"`
	VerificationExpires *time.Time `gorm:"type:timestamp"`
	ResetToken          *string    `gorm:"type:varchar(64);index"`
	ResetExpires        *time.Time `gorm:"type:timestamp"`
	LastLogin           *time.Time `gorm:"type:timestamp"`
	LoginAttempts       int        `gorm:"default:0"`
	LockedUntil         *time.Time `gorm:"type:timestamp"`
	Status              string     `gorm:"type:varchar(20);not null;default:'active'"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DeletedAt           gorm.DeletedAt `gorm:"index"`
}
