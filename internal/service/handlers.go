package service

import (
	"SpinApi/internal/fairness"
	"SpinApi/internal/middleware"
	"SpinApi/internal/models"
	"SpinApi/pkg/logger"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

// CreateWheelHandler handles POST requests to open a new wheel.
func (s *WheelService) CreateWheelHandler(c *gin.Context) {
	userID, err := middleware.GetUserIDFromGinContext(c)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	var input CreateWheelInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": "Invalid input"})
		return
	}

	wheel, err := s.CreateWheel(c.Request.Context(), userID, input)
	if err != nil {
		respondWheelError(c, err)
		return
	}

	c.JSON(200, wheel)
}

// JoinWheelHandler handles POST requests to join a pending wheel.
func (s *WheelService) JoinWheelHandler(c *gin.Context) {
	userID, err := middleware.GetUserIDFromGinContext(c)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	wheelID, err := wheelIDFromParam(c)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid wheel id"})
		return
	}

	join, err := s.JoinWheel(c.Request.Context(), wheelID, userID)
	if err != nil {
		respondWheelError(c, err)
		return
	}

	c.JSON(200, join)
}

// StartWheelHandler handles POST requests for a manual start trigger.
func (s *WheelService) StartWheelHandler(c *gin.Context) {
	userID, err := middleware.GetUserIDFromGinContext(c)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	wheelID, err := wheelIDFromParam(c)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid wheel id"})
		return
	}

	if err := s.StartWheel(c.Request.Context(), wheelID, userID); err != nil {
		respondWheelError(c, err)
		return
	}

	c.JSON(200, gin.H{"status": "started"})
}

func (s *WheelService) ListWheelsHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	wheels, err := s.ListWheels(limit)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	c.JSON(200, wheels)
}

func (s *WheelService) ListParticipantsHandler(c *gin.Context) {
	wheelID, err := wheelIDFromParam(c)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid wheel id"})
		return
	}

	joins, err := s.ListParticipants(wheelID)
	if err != nil {
		respondWheelError(c, err)
		return
	}

	c.JSON(200, joins)
}

// VerifyWheelHandler lets clients re-run the committed draws of a finished
// wheel from its revealed seed and compare them with what was broadcast
// during the round: the full elimination sequence in elimination mode, the
// single weighted draw in direct-draw mode.
func (s *WheelService) VerifyWheelHandler(c *gin.Context) {
	wheelID, err := wheelIDFromParam(c)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid wheel id"})
		return
	}

	wheel, err := models.GetWheelByID(nil, wheelID)
	if err != nil {
		c.JSON(404, gin.H{"error": "Wheel not found"})
		return
	}

	if !wheel.IsTerminal() || wheel.RevealedSeed == "" {
		c.JSON(409, gin.H{"error": "Seed not revealed yet"})
		return
	}

	result := gin.H{
		"seed":             wheel.RevealedSeed,
		"seed_hash":        wheel.SeedHash,
		"commitment_valid": fairness.VerifyCommitment(wheel.RevealedSeed, wheel.SeedHash),
	}

	if wheel.Mode == models.WheelModeDirectDraw {
		// Same draw input as the settlement: paid, non-eliminated
		// participants ordered by join id, equal weights, nonce 1.
		participants, err := models.GetActiveJoins(nil, wheelID)
		if err != nil {
			logger.Error("%v", err)
			c.Status(500)
			return
		}
		if len(participants) > 0 {
			weights := make([]int64, len(participants))
			for i := range weights {
				weights[i] = 1
			}
			winnerIdx, err := fairness.WeightedPick(wheel.RevealedSeed, 1, weights)
			if err != nil {
				logger.Error("%v", err)
				c.Status(500)
				return
			}
			result["winner_user_id"] = participants[winnerIdx].UserID
		}
		c.JSON(200, result)
		return
	}

	joins, err := models.GetJoinsByWheelID(nil, wheelID)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	sequence := fairness.EliminationSequence(wheel.RevealedSeed, len(joins))
	order := make([]int64, 0, len(sequence))
	for _, idx := range sequence {
		order = append(order, joins[idx].UserID)
	}
	result["elimination_order"] = order

	c.JSON(200, result)
}

// GetUserTransactionsHandler returns the caller's ledger entries.
func GetUserTransactionsHandler(c *gin.Context) {
	userID, err := middleware.GetUserIDFromGinContext(c)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	transactions, err := models.GetUserTransactions(nil, userID)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	if len(transactions) == 0 {
		c.String(404, "[]")
		return
	}

	c.JSON(200, transactions)
}

func wheelIDFromParam(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

func respondWheelError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		c.JSON(403, gin.H{"error": "Permission denied"})
	case errors.Is(err, ErrWheelConflict):
		c.JSON(409, gin.H{"error": "Another wheel is already live"})
	case errors.Is(err, ErrInvalidState):
		c.JSON(409, gin.H{"error": "Wheel is not in a valid state for this operation"})
	case errors.Is(err, ErrWheelNotJoinable):
		c.JSON(409, gin.H{"error": "Wheel is not accepting joins"})
	case errors.Is(err, ErrInsufficientBalance):
		c.JSON(402, gin.H{"error": "Insufficient balance"})
	case errors.Is(err, ErrInsufficientParticipants):
		c.JSON(400, gin.H{"error": "Not enough paid participants"})
	case errors.Is(err, ErrDuplicateJoin):
		c.JSON(400, gin.H{"error": "You already joined this wheel"})
	case errors.Is(err, ErrNotFound):
		c.JSON(404, gin.H{"error": "Not found"})
	default:
		logger.Error("%v", err)
		c.Status(500)
	}
}
