package main

import (
	"SpinApi/cmd/db"
	"SpinApi/internal/models"
	"SpinApi/pkg/logger"
)

func main() {
	if err := db.Connect(); err != nil {
		logger.Fatal("%v", err)
	}

	err := db.DB.AutoMigrate(
		&models.User{},
		&models.Wheel{},
		&models.Join{},
		&models.Transaction{},
		&models.Config{},
	)
	if err != nil {
		logger.Fatal("%v", err)
	}

	if err := models.SeedDefaultFeeSplit(nil); err != nil {
		logger.Fatal("%v", err)
	}

	logger.Info("Migrated.")
}
