package service

import (
	"SpinApi/cmd/db"
	"SpinApi/internal/fairness"
	"SpinApi/internal/lock"
	"SpinApi/internal/models"
	"SpinApi/pkg/logger"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	defaultTickInterval = 7 * time.Second
	defaultJoinDeadline = 60 * time.Second
	wheelLockTTL        = 10 * time.Second

	createLockKey = "wheel:create"

	triggerManual   = "manual"
	triggerDeadline = "deadline"
)

// WheelService owns the wheel lifecycle: the state machine, the atomic coin
// movements, the elimination scheduler and the secret seeds. Seeds and
// deadline timers live only in process memory; a wheel that loses them
// across a restart is aborted and refunded by RecoverOnStartup.
type WheelService struct {
	locker lock.Locker
	events Broadcaster

	mu        sync.Mutex
	seeds     map[int64]string
	deadlines map[int64]*time.Timer
	loops     map[int64]bool

	// TickInterval and JoinDeadline are fields so tests can shorten them.
	TickInterval time.Duration
	JoinDeadline time.Duration
}

func NewWheelService(locker lock.Locker, events Broadcaster) *WheelService {
	return &WheelService{
		locker:       locker,
		events:       events,
		seeds:        make(map[int64]string),
		deadlines:    make(map[int64]*time.Timer),
		loops:        make(map[int64]bool),
		TickInterval: defaultTickInterval,
		JoinDeadline: defaultJoinDeadline,
	}
}

func wheelLockKey(wheelID int64) string {
	return fmt.Sprintf("wheel:%d", wheelID)
}

type CreateWheelInput struct {
	EntryFee        int64  `json:"EntryFee" validate:"required,min=1"`
	MinParticipants int    `json:"MinParticipants" validate:"required,min=2"`
	Mode            string `json:"Mode" validate:"omitempty,oneof=elimination direct_draw"`
}

// CreateWheel opens a new wheel owned by an admin. Only one wheel may be
// live at a time; the check and the insert run under the creation lock so
// two concurrent creates cannot both pass it.
func (s *WheelService) CreateWheel(ctx context.Context, ownerID int64, input CreateWheelInput) (*models.Wheel, error) {
	if err := validator.New().Struct(input); err != nil {
		return nil, logger.WrapError(err, "")
	}
	if input.Mode == "" {
		input.Mode = models.WheelModeElimination
	}

	owner, err := models.GetUserByID(nil, ownerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, logger.WrapError(err, "")
	}
	if !owner.IsAdmin {
		return nil, ErrPermissionDenied
	}

	seed, seedHash, err := fairness.NewSeed()
	if err != nil {
		return nil, logger.WrapError(err, "")
	}

	token, ok, err := s.locker.TryLock(ctx, createLockKey, wheelLockTTL)
	if err != nil {
		return nil, logger.WrapError(err, "")
	}
	if !ok {
		return nil, ErrWheelConflict
	}
	defer s.locker.Unlock(ctx, createLockKey, token)

	wheel := models.Wheel{
		OwnerID:         ownerID,
		Status:          models.WheelStatusPending,
		Mode:            input.Mode,
		EntryFee:        input.EntryFee,
		MinParticipants: input.MinParticipants,
		SeedHash:        seedHash,
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		live, err := models.GetLiveWheel(tx)
		if err != nil {
			return logger.WrapError(err, "")
		}
		if live != nil {
			return ErrWheelConflict
		}

		if err := tx.Create(&wheel).Error; err != nil {
			return logger.WrapError(err, "")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.storeSeed(wheel.ID, seed)
	s.armDeadline(wheel.ID, s.JoinDeadline)

	s.events.Publish(ctx, Event{
		Type:    EventWheelCreated,
		WheelID: wheel.ID,
		Payload: map[string]interface{}{
			"owner_id":         wheel.OwnerID,
			"entry_fee":        wheel.EntryFee,
			"min_participants": wheel.MinParticipants,
			"mode":             wheel.Mode,
			"seed_hash":        wheel.SeedHash,
		},
	})

	logger.Info("Created wheel %d (fee=%d, min=%d, mode=%s)",
		wheel.ID, wheel.EntryFee, wheel.MinParticipants, wheel.Mode)

	return &wheel, nil
}

// JoinWheel debits the entry fee, splits it into the pools and registers the
// participant, all in one transaction. The wheel row is locked before the
// user row; every money-moving unit in this package takes row locks in that
// same order (wheel, then user rows ascending) to avoid lock-order
// deadlocks.
func (s *WheelService) JoinWheel(ctx context.Context, wheelID int64, userID int64) (*models.Join, error) {
	var join models.Join
	var wheel models.Wheel

	err := db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := models.LockForUpdate(tx).First(&wheel, wheelID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return logger.WrapError(err, "")
		}

		if wheel.Status != models.WheelStatusPending {
			return ErrWheelNotJoinable
		}

		var alreadyJoined bool
		err := tx.Model(&models.Join{}).
			Select("count(*) > 0").
			Where("wheel_id = ? AND user_id = ?", wheelID, userID).
			Scan(&alreadyJoined).Error
		if err != nil {
			return logger.WrapError(err, "")
		}
		if alreadyJoined {
			return ErrDuplicateJoin
		}

		var user models.User
		if err := models.LockForUpdate(tx).First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return logger.WrapError(err, "")
		}

		if user.Balance < wheel.EntryFee {
			return ErrInsufficientBalance
		}

		split, err := models.GetFeeSplit(tx)
		if err != nil {
			return logger.WrapError(err, "")
		}
		winnerAmt, adminAmt, appAmt := split.Apply(wheel.EntryFee)

		if err := tx.Model(&user).Update("balance",
			gorm.Expr("balance - ?", wheel.EntryFee)).Error; err != nil {
			return logger.WrapError(err, "")
		}

		err = tx.Model(&wheel).Updates(map[string]interface{}{
			"winner_pool": gorm.Expr("winner_pool + ?", winnerAmt),
			"admin_pool":  gorm.Expr("admin_pool + ?", adminAmt),
			"app_pool":    gorm.Expr("app_pool + ?", appAmt),
		}).Error
		if err != nil {
			return logger.WrapError(err, "")
		}

		entry := models.Transaction{
			UserID:  userID,
			Amount:  -wheel.EntryFee,
			Kind:    models.TransactionKindDebit,
			WheelID: wheelID,
			Reason:  models.TransactionReasonEntryFee,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return logger.WrapError(err, "")
		}

		join = models.Join{
			WheelID: wheelID,
			UserID:  userID,
			Paid:    true,
		}
		if err := tx.Create(&join).Error; err != nil {
			// The unique index backs up the count check against a
			// concurrent join by the same user.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateJoin
			}
			return logger.WrapError(err, "")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, Event{
		Type:    EventParticipantJoined,
		WheelID: wheelID,
		Payload: map[string]interface{}{
			"user_id":   userID,
			"entry_fee": wheel.EntryFee,
		},
	})

	return &join, nil
}

// StartWheel is the manual start trigger. Only the wheel owner or an admin
// may fire it; the deadline timer fires the same transition without the
// permission check.
func (s *WheelService) StartWheel(ctx context.Context, wheelID int64, requesterID int64) error {
	requester, err := models.GetUserByID(nil, requesterID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return logger.WrapError(err, "")
	}

	wheel, err := models.GetWheelByID(nil, wheelID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return logger.WrapError(err, "")
	}

	if !requester.IsAdmin && requester.ID != wheel.OwnerID {
		return ErrPermissionDenied
	}

	return s.triggerStart(ctx, wheelID, triggerManual)
}

// triggerStart performs the pending -> active transition under the wheel's
// advisory lock so a manual start and the deadline cannot both begin the
// elimination loop. A trigger that loses the lock, or arrives after a
// terminal state, is a no-op.
func (s *WheelService) triggerStart(ctx context.Context, wheelID int64, trigger string) error {
	token, ok, err := s.locker.TryLock(ctx, wheelLockKey(wheelID), wheelLockTTL)
	if err != nil {
		return logger.WrapError(err, "")
	}
	if !ok {
		logger.Info("Start trigger %q for wheel %d skipped: transition already in flight", trigger, wheelID)
		return nil
	}
	defer s.locker.Unlock(ctx, wheelLockKey(wheelID), token)

	wheel, err := models.GetWheelByID(nil, wheelID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return logger.WrapError(err, "")
	}

	if wheel.IsTerminal() {
		if trigger == triggerManual {
			// A human asked to start a finished wheel; tell them so.
			return ErrInvalidState
		}
		// Duplicate timer fired after the wheel already ended.
		return nil
	}
	if wheel.Status != models.WheelStatusPending {
		return ErrInvalidState
	}

	paid, err := models.CountPaidJoins(nil, wheelID)
	if err != nil {
		return logger.WrapError(err, "")
	}
	if paid < wheel.MinParticipants {
		if err := s.abortWheel(ctx, wheelID, "insufficient_participants"); err != nil {
			return logger.WrapError(err, "")
		}
		return ErrInsufficientParticipants
	}

	now := time.Now()
	err = db.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Wheel{}).
			Where("id = ? AND status = ?", wheelID, models.WheelStatusPending).
			Updates(map[string]interface{}{
				"status":     models.WheelStatusActive,
				"started_at": now,
			})
		if res.Error != nil {
			return logger.WrapError(res.Error, "")
		}
		if res.RowsAffected == 0 {
			return ErrInvalidState
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.disarmDeadline(wheelID)

	s.events.Publish(ctx, Event{
		Type:    EventWheelStarted,
		WheelID: wheelID,
		Payload: map[string]interface{}{
			"trigger":      trigger,
			"participants": paid,
		},
	})

	logger.Info("Wheel %d started by %s trigger with %d participants", wheelID, trigger, paid)

	go s.runWheel(wheelID)

	return nil
}

func (s *WheelService) ListWheels(limit int) ([]models.Wheel, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return models.ListWheels(nil, limit)
}

func (s *WheelService) ListParticipants(wheelID int64) ([]models.Join, error) {
	if _, err := models.GetWheelByID(nil, wheelID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, logger.WrapError(err, "")
	}
	return models.GetJoinsByWheelID(nil, wheelID)
}

// Secret seed bookkeeping. Seeds are owned by this service, keyed by wheel
// id, and destroyed when the wheel reveals them or aborts.

func (s *WheelService) storeSeed(wheelID int64, seed string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeds[wheelID] = seed
}

func (s *WheelService) seed(wheelID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seed, ok := s.seeds[wheelID]
	return seed, ok
}

func (s *WheelService) dropSeed(wheelID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seeds, wheelID)
}

func (s *WheelService) armDeadline(wheelID int64, d time.Duration) {
	timer := time.AfterFunc(d, func() {
		err := s.triggerStart(context.Background(), wheelID, triggerDeadline)
		if err != nil && !errors.Is(err, ErrInsufficientParticipants) {
			logger.Error("Deadline auto-start for wheel %d failed: %v", wheelID, err)
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadlines[wheelID] = timer
}

func (s *WheelService) disarmDeadline(wheelID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.deadlines[wheelID]; ok {
		timer.Stop()
		delete(s.deadlines, wheelID)
	}
}
