package main

import (
	"gorm.io/gorm"

	"nexuspay.backend/internal/infrastructure/models"
)

// runMigrations applies the full schema. Indexes and constraints are
// declared on the model structs.
func runMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.ProjectMember{},
		&models.APIKey{},
		&models.APIKeyUsage{},
		&models.ProjectPaymaster{},
		&models.PaymasterBalance{},
		&models.PaymasterPayment{},
		&models.Wallet{},
		&models.TransactionLog{},
		&models.UserActivity{},
		&models.DailyMetric{},
	)
}
