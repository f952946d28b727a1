package service

import (
	"SpinApi/cmd/db"
	"SpinApi/internal/middleware"
	"SpinApi/internal/models"
	"SpinApi/pkg/logger"
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Charger is the payment gateway capability: charge a user some amount of
// real money and report whether it went through. The gateway itself is an
// external collaborator.
type Charger interface {
	Charge(ctx context.Context, userID int64, amount int64) error
}

// MockCharger stands in for the gateway: every charge succeeds.
type MockCharger struct{}

func (MockCharger) Charge(_ context.Context, _ int64, _ int64) error {
	return nil
}

type DepositService struct {
	charger Charger
}

func NewDepositService(charger Charger) *DepositService {
	return &DepositService{charger: charger}
}

type depositInput struct {
	Amount int64 `json:"Amount" validate:"required,min=1"`
}

var errChargeFailed = errors.New("charge failed")

// CreateDepositHandler charges the caller through the gateway and credits
// the coins in one ledger transaction.
func (d *DepositService) CreateDepositHandler(c *gin.Context) {
	userID, err := middleware.GetUserIDFromGinContext(c)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	var input depositInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": "Invalid input"})
		return
	}
	if err := validator.New().Struct(input); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	if err := d.Deposit(c.Request.Context(), userID, input.Amount); err != nil {
		if errors.Is(err, errChargeFailed) {
			c.JSON(402, gin.H{"error": "Payment was declined"})
			return
		}
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	c.JSON(200, gin.H{"status": "deposit credited"})
}

func (d *DepositService) Deposit(ctx context.Context, userID int64, amount int64) error {
	if err := d.charger.Charge(ctx, userID, amount); err != nil {
		logger.Warn("Charge of %d for user %d declined: %v", amount, userID, err)
		return errChargeFailed
	}

	return db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := models.LockForUpdate(tx).First(&user, userID).Error; err != nil {
			return logger.WrapError(err, "")
		}

		if err := tx.Model(&user).Update("balance",
			gorm.Expr("balance + ?", amount)).Error; err != nil {
			return logger.WrapError(err, "")
		}

		entry := models.Transaction{
			UserID: userID,
			Amount: amount,
			Kind:   models.TransactionKindCredit,
			Reason: models.TransactionReasonDeposit,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return logger.WrapError(err, "")
		}

		return nil
	})
}
