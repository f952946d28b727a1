package models

import (
	"SpinApi/cmd/db"
	"SpinApi/pkg/logger"
	"time"

	"gorm.io/gorm"
)

const (
	TransactionKindCredit = "credit"
	TransactionKindDebit  = "debit"
)

const (
	TransactionReasonEntryFee     = "entry_fee"
	TransactionReasonWinnerPayout = "winner_payout"
	TransactionReasonAdminPayout  = "admin_payout"
	TransactionReasonDeposit      = "deposit"
)

// Transaction is an append-only ledger entry. Amount is signed: debits are
// negative, credits positive. A user's balance must always equal the sum of
// their transaction amounts.
type Transaction struct {
	ID        int64  `gorm:"primaryKey,autoIncrement"`
	UserID    int64  `gorm:"not null;index"`
	Amount    int64  `gorm:"not null"`
	Kind      string `gorm:"not null"`
	WheelID   int64  `gorm:"index"`
	Reason    string
	CreatedAt time.Time
}

func GetUserTransactions(tx *gorm.DB, userID int64) ([]Transaction, error) {
	if tx == nil {
		tx = db.DB
	}

	var transactions []Transaction
	err := tx.Where("user_id = ?", userID).Order("id ASC").Find(&transactions).Error
	if err != nil {
		return nil, logger.WrapError(err, "")
	}

	return transactions, nil
}

// UserTransactionSum reconciles the ledger for one user.
func UserTransactionSum(tx *gorm.DB, userID int64) (int64, error) {
	if tx == nil {
		tx = db.DB
	}

	var sum int64
	err := tx.Model(&Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ?", userID).
		Scan(&sum).Error
	if err != nil {
		return 0, logger.WrapError(err, "")
	}

	return sum, nil
}
