package service

import (
	"SpinApi/cmd/db"
	"SpinApi/internal/models"
	"SpinApi/pkg/logger"
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// finalizeWheel credits the winner pool to the winner and the admin pool to
// the wheel owner, reveals the seed and moves the wheel to finished, all in
// one transaction. Idempotent: a retry against an already-terminal wheel is
// a no-op. Row locks are taken wheel first, then user rows, the same order
// as every other money-moving unit here.
func (s *WheelService) finalizeWheel(ctx context.Context, wheelID int64, winnerUserID int64) error {
	seed, _ := s.seed(wheelID)

	var wheel models.Wheel
	var payout int64

	err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := models.LockForUpdate(tx).First(&wheel, wheelID).Error; err != nil {
			return logger.WrapError(err, "")
		}
		if wheel.IsTerminal() {
			return nil
		}

		payout = wheel.WinnerPool

		if err := creditUser(tx, winnerUserID, wheel.WinnerPool, wheelID,
			models.TransactionReasonWinnerPayout); err != nil {
			return err
		}
		if err := creditUser(tx, wheel.OwnerID, wheel.AdminPool, wheelID,
			models.TransactionReasonAdminPayout); err != nil {
			return err
		}

		err := tx.Model(&models.Join{}).
			Where("wheel_id = ? AND user_id = ?", wheelID, winnerUserID).
			Update("payout", wheel.WinnerPool).Error
		if err != nil {
			return logger.WrapError(err, "")
		}

		now := time.Now()
		res := tx.Model(&models.Wheel{}).
			Where("id = ? AND status = ?", wheelID, models.WheelStatusActive).
			Updates(map[string]interface{}{
				"status":        models.WheelStatusFinished,
				"finished_at":   now,
				"revealed_seed": seed,
			})
		if res.Error != nil {
			return logger.WrapError(res.Error, "")
		}
		if res.RowsAffected == 0 {
			return logger.WrapError(ErrInvalidState, "wheel left active state mid-finalization")
		}

		return nil
	})
	if err != nil {
		logger.Error("Finalize of wheel %d did not commit: %v", wheelID, err)
		return err
	}

	if wheel.IsTerminal() {
		// Retried after a previous finalize already landed.
		return nil
	}

	s.dropSeed(wheelID)
	s.disarmDeadline(wheelID)

	s.events.Publish(ctx, Event{
		Type:    EventWheelFinished,
		WheelID: wheelID,
		Payload: map[string]interface{}{
			"winner_user_id": winnerUserID,
			"payout":         payout,
			"seed":           seed,
			"seed_hash":      wheel.SeedHash,
		},
	})

	logger.Info("Wheel %d finished: user %d won %d coins", wheelID, winnerUserID, payout)

	return nil
}

// abortWheel refunds exactly the entry fee to every paid participant and
// moves the wheel to aborted. The pools are discarded: no fee-split
// obligation was fulfilled, so the refund is the fee, not pool remnants.
// Idempotent against retries.
func (s *WheelService) abortWheel(ctx context.Context, wheelID int64, reason string) error {
	seed, _ := s.seed(wheelID)

	var wheel models.Wheel
	var refunded int

	err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := models.LockForUpdate(tx).First(&wheel, wheelID).Error; err != nil {
			return logger.WrapError(err, "")
		}
		if wheel.IsTerminal() {
			return nil
		}

		paid, err := models.GetPaidJoins(tx, wheelID)
		if err != nil {
			return logger.WrapError(err, "")
		}

		for _, join := range paid {
			if err := creditUser(tx, join.UserID, wheel.EntryFee, wheelID,
				fmt.Sprintf("refund:%s", reason)); err != nil {
				return err
			}

			// Paid flips back so a retried abort cannot refund twice.
			err := tx.Model(&models.Join{}).
				Where("id = ?", join.ID).
				Update("paid", false).Error
			if err != nil {
				return logger.WrapError(err, "")
			}
		}
		refunded = len(paid)

		now := time.Now()
		res := tx.Model(&models.Wheel{}).
			Where("id = ? AND status IN ?", wheelID,
				[]string{models.WheelStatusPending, models.WheelStatusActive}).
			Updates(map[string]interface{}{
				"status":        models.WheelStatusAborted,
				"finished_at":   now,
				"revealed_seed": seed,
			})
		if res.Error != nil {
			return logger.WrapError(res.Error, "")
		}
		if res.RowsAffected == 0 {
			return logger.WrapError(ErrInvalidState, "wheel left live state mid-abort")
		}

		return nil
	})
	if err != nil {
		logger.Error("Abort of wheel %d did not commit: %v", wheelID, err)
		return err
	}

	if wheel.IsTerminal() {
		return nil
	}

	s.dropSeed(wheelID)
	s.disarmDeadline(wheelID)

	s.events.Publish(ctx, Event{
		Type:    EventWheelAborted,
		WheelID: wheelID,
		Payload: map[string]interface{}{
			"reason":   reason,
			"refunded": refunded,
		},
	})

	logger.Info("Wheel %d aborted (%s), refunded %d participants", wheelID, reason, refunded)

	return nil
}

// creditUser adds amount to a user's balance under a row lock and appends
// the matching ledger entry. Zero amounts still get an entry so the audit
// trail covers every payout decision.
func creditUser(tx *gorm.DB, userID int64, amount int64, wheelID int64, reason string) error {
	var user models.User
	if err := models.LockForUpdate(tx).First(&user, userID).Error; err != nil {
		return logger.WrapError(err, "")
	}

	if err := tx.Model(&user).Update("balance",
		gorm.Expr("balance + ?", amount)).Error; err != nil {
		return logger.WrapError(err, "")
	}

	entry := models.Transaction{
		UserID:  userID,
		Amount:  amount,
		Kind:    models.TransactionKindCredit,
		WheelID: wheelID,
		Reason:  reason,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return logger.WrapError(err, "")
	}

	return nil
}
