package models

import (
	"SpinApi/cmd/db"
	"SpinApi/pkg/logger"
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	WheelStatusPending  = "pending"
	WheelStatusActive   = "active"
	WheelStatusFinished = "finished"
	WheelStatusAborted  = "aborted"
)

const (
	WheelModeElimination = "elimination"
	WheelModeDirectDraw  = "direct_draw"
)

// Wheel is one round of the game. The pools accumulate split entry fees and
// must always sum to the fees collected until the wheel reaches a terminal
// state. SeedHash is the fairness commitment published at creation; the seed
// itself stays in process memory until RevealedSeed is written by the
// finalize or abort transaction.
type Wheel struct {
	ID              int64  `gorm:"primaryKey,autoIncrement"`
	OwnerID         int64  `gorm:"not null;index"`
	Status          string `gorm:"not null;index"`
	Mode            string `gorm:"not null"`
	EntryFee        int64  `gorm:"not null"`
	MinParticipants int    `gorm:"not null"`
	WinnerPool      int64
	AdminPool       int64
	AppPool         int64
	SeedHash        string `gorm:"not null"`
	RevealedSeed    string
	CreatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

func (w *Wheel) IsTerminal() bool {
	return w.Status == WheelStatusFinished || w.Status == WheelStatusAborted
}

func GetWheelByID(tx *gorm.DB, wheelID int64) (*Wheel, error) {
	if tx == nil {
		tx = db.DB
	}

	var wheel Wheel
	if err := tx.First(&wheel, wheelID).Error; err != nil {
		return nil, logger.WrapError(err, "")
	}

	return &wheel, nil
}

// GetLiveWheel returns the wheel currently in a non-terminal state, or nil
// when there is none. At most one wheel may be live at a time.
func GetLiveWheel(tx *gorm.DB) (*Wheel, error) {
	if tx == nil {
		tx = db.DB
	}

	var wheel Wheel
	err := tx.Where("status IN ?", []string{WheelStatusPending, WheelStatusActive}).
		First(&wheel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, logger.WrapError(err, "")
	}

	return &wheel, nil
}

func ListWheels(tx *gorm.DB, limit int) ([]Wheel, error) {
	if tx == nil {
		tx = db.DB
	}

	var wheels []Wheel
	err := tx.Order("id DESC").Limit(limit).Find(&wheels).Error
	if err != nil {
		return nil, logger.WrapError(err, "")
	}

	return wheels, nil
}

func GetActiveWheels(tx *gorm.DB) ([]Wheel, error) {
	if tx == nil {
		tx = db.DB
	}

	var wheels []Wheel
	err := tx.Where("status = ?", WheelStatusActive).Find(&wheels).Error
	if err != nil {
		return nil, logger.WrapError(err, "")
	}

	return wheels, nil
}

func GetPendingWheels(tx *gorm.DB) ([]Wheel, error) {
	if tx == nil {
		tx = db.DB
	}

	var wheels []Wheel
	err := tx.Where("status = ?", WheelStatusPending).Find(&wheels).Error
	if err != nil {
		return nil, logger.WrapError(err, "")
	}

	return wheels, nil
}
