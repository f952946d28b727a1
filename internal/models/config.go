package models

import (
	"SpinApi/cmd/db"
	"SpinApi/pkg/logger"
	"fmt"

	"gorm.io/gorm"
)

const (
	ConfigFeeSplitWinner = "fee_split_winner"
	ConfigFeeSplitAdmin  = "fee_split_admin"
	ConfigFeeSplitApp    = "fee_split_app"
)

// Config holds named numeric game parameters.
type Config struct {
	Key   string `gorm:"primaryKey"`
	Value int64  `gorm:"not null"`
}

// FeeSplit is the entry fee split in whole percentages. Winner + Admin + App
// must equal 100.
type FeeSplit struct {
	Winner int64
	Admin  int64
	App    int64
}

// Apply splits fee into pool contributions. Winner and admin shares round
// down; the remainder goes to the app pool so the three parts always sum to
// the fee exactly.
func (s FeeSplit) Apply(fee int64) (winner, admin, app int64) {
	winner = fee * s.Winner / 100
	admin = fee * s.Admin / 100
	app = fee - winner - admin
	return winner, admin, app
}

func GetFeeSplit(tx *gorm.DB) (FeeSplit, error) {
	if tx == nil {
		tx = db.DB
	}

	var split FeeSplit
	keys := map[string]*int64{
		ConfigFeeSplitWinner: &split.Winner,
		ConfigFeeSplitAdmin:  &split.Admin,
		ConfigFeeSplitApp:    &split.App,
	}

	for key, dst := range keys {
		var cfg Config
		if err := tx.Where("key = ?", key).First(&cfg).Error; err != nil {
			return FeeSplit{}, logger.WrapError(err, "")
		}
		*dst = cfg.Value
	}

	if split.Winner+split.Admin+split.App != 100 {
		return FeeSplit{}, logger.WrapError(fmt.Errorf(
			"fee split percentages sum to %d, want 100",
			split.Winner+split.Admin+split.App), "")
	}

	return split, nil
}

// SeedDefaultFeeSplit writes the default 70/20/10 split, keeping existing
// values.
func SeedDefaultFeeSplit(tx *gorm.DB) error {
	if tx == nil {
		tx = db.DB
	}

	defaults := []Config{
		{Key: ConfigFeeSplitWinner, Value: 70},
		{Key: ConfigFeeSplitAdmin, Value: 20},
		{Key: ConfigFeeSplitApp, Value: 10},
	}

	for _, cfg := range defaults {
		var existing Config
		err := tx.Where(Config{Key: cfg.Key}).
			Attrs(Config{Value: cfg.Value}).
			FirstOrCreate(&existing).Error
		if err != nil {
			return logger.WrapError(err, "")
		}
	}

	return nil
}
