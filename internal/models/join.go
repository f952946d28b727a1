package models

import (
	"SpinApi/cmd/db"
	"SpinApi/pkg/logger"
	"time"

	"gorm.io/gorm"
)

// Join is a user's paid entry into a specific wheel. Elimination is a
// one-way mark: EliminatedAt and EliminationOrder are written once and never
// cleared. Paid flips back to false only when the entry fee is refunded on
// abort.
type Join struct {
	ID               int64 `gorm:"primaryKey,autoIncrement"`
	WheelID          int64 `gorm:"not null;uniqueIndex:idx_wheel_user"`
	UserID           int64 `gorm:"not null;index;uniqueIndex:idx_wheel_user"`
	Paid             bool
	EliminatedAt     *time.Time
	EliminationOrder int
	Payout           int64
	CreatedAt        time.Time
}

func (j *Join) IsEliminated() bool {
	return j.EliminatedAt != nil
}

func GetJoinsByWheelID(tx *gorm.DB, wheelID int64) ([]Join, error) {
	if tx == nil {
		tx = db.DB
	}

	var joins []Join
	err := tx.Where("wheel_id = ?", wheelID).Order("id ASC").Find(&joins).Error
	if err != nil {
		return nil, logger.WrapError(err, "")
	}

	return joins, nil
}

func GetPaidJoins(tx *gorm.DB, wheelID int64) ([]Join, error) {
	if tx == nil {
		tx = db.DB
	}

	var joins []Join
	err := tx.Where("wheel_id = ? AND paid = ?", wheelID, true).
		Order("id ASC").Find(&joins).Error
	if err != nil {
		return nil, logger.WrapError(err, "")
	}

	return joins, nil
}

// GetActiveJoins returns paid, not yet eliminated participants ordered by
// join id. This ordering is what the fairness draws index into, so it must
// be stable.
func GetActiveJoins(tx *gorm.DB, wheelID int64) ([]Join, error) {
	if tx == nil {
		tx = db.DB
	}

	var joins []Join
	err := tx.Where("wheel_id = ? AND paid = ? AND eliminated_at IS NULL", wheelID, true).
		Order("id ASC").Find(&joins).Error
	if err != nil {
		return nil, logger.WrapError(err, "")
	}

	return joins, nil
}

func CountPaidJoins(tx *gorm.DB, wheelID int64) (int, error) {
	if tx == nil {
		tx = db.DB
	}

	var count int64
	err := tx.Model(&Join{}).
		Where("wheel_id = ? AND paid = ?", wheelID, true).
		Count(&count).Error
	if err != nil {
		return 0, logger.WrapError(err, "")
	}

	return int(count), nil
}
