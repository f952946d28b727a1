package service

import (
	"SpinApi/cmd/db"
	"SpinApi/internal/fairness"
	"SpinApi/internal/models"
	"SpinApi/pkg/logger"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// runWheel drives an active wheel to its terminal state. In elimination mode
// it removes one participant per tick until one remains; in direct-draw mode
// it selects the winner with a single weighted draw. Loop failures are
// logged, never thrown: the supervisor re-arms a loop that died.
func (s *WheelService) runWheel(wheelID int64) {
	if !s.claimLoop(wheelID) {
		return
	}
	defer s.releaseLoop(wheelID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Wheel %d loop panicked: %v", wheelID, r)
		}
	}()

	ctx := context.Background()

	wheel, err := models.GetWheelByID(nil, wheelID)
	if err != nil {
		logger.Error("Wheel %d loop: %v", wheelID, err)
		return
	}

	seed, ok := s.seed(wheelID)
	if !ok {
		// No seed means the commitment can never be honoured; refund.
		logger.Error("Wheel %d has no seed in memory, aborting", wheelID)
		if err := s.abortWheel(ctx, wheelID, "seed_unavailable"); err != nil {
			logger.Error("%v", err)
		}
		return
	}

	if wheel.Mode == models.WheelModeDirectDraw {
		if err := s.runDirectDraw(ctx, wheelID, seed); err != nil {
			logger.Error("Wheel %d direct draw: %v", wheelID, err)
		}
		return
	}

	// The loop owns the active set: loaded once on entry and pruned in
	// place after every elimination. Joins are closed once the wheel is
	// active and elimination is the only participant-removing actor, so
	// the copy stays authoritative. A loop restarted by the supervisor
	// reloads it here and resumes the sequence at the right round.
	active, err := models.GetActiveJoins(nil, wheelID)
	if err != nil {
		logger.Error("Wheel %d loop: %v", wheelID, err)
		return
	}
	paid, err := models.CountPaidJoins(nil, wheelID)
	if err != nil {
		logger.Error("Wheel %d loop: %v", wheelID, err)
		return
	}

	ticker := time.NewTicker(s.TickInterval)
	defer ticker.Stop()

	for len(active) > 1 {
		<-ticker.C

		survivors, err := s.eliminateOne(ctx, wheelID, seed, paid, active)
		if err != nil {
			logger.Error("Wheel %d elimination tick: %v", wheelID, err)
			continue
		}
		if survivors == nil {
			// Terminal state reached while the tick was scheduled.
			return
		}
		active = survivors
	}

	if err := s.finishElimination(ctx, wheelID); err != nil {
		logger.Error("Wheel %d finalization: %v", wheelID, err)
	}
}

// eliminateOne removes the participant chosen by the committed seed for the
// current round and returns the surviving set. The round counter is derived
// from how far the set has shrunk, so a restarted loop continues the same
// verifiable sequence. A contended lock returns the set unchanged (the tick
// is skipped); a nil set with no error means the wheel left the active state
// and the loop must stop.
func (s *WheelService) eliminateOne(ctx context.Context, wheelID int64, seed string, paid int, active []models.Join) ([]models.Join, error) {
	token, ok, err := s.locker.TryLock(ctx, wheelLockKey(wheelID), wheelLockTTL)
	if err != nil {
		return active, logger.WrapError(err, "")
	}
	if !ok {
		// Another elimination for this wheel is in flight; skip the tick.
		return active, nil
	}
	defer s.locker.Unlock(ctx, wheelLockKey(wheelID), token)

	wheel, err := models.GetWheelByID(nil, wheelID)
	if err != nil {
		return active, logger.WrapError(err, "")
	}
	if wheel.Status != models.WheelStatusActive {
		return nil, nil
	}

	round := paid - len(active) + 1

	victimIdx, err := fairness.Pick(seed, uint64(round), len(active))
	if err != nil {
		return active, logger.WrapError(err, "")
	}
	victim := active[victimIdx]

	now := time.Now()
	var eliminated bool
	err = db.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Join{}).
			Where("id = ? AND eliminated_at IS NULL", victim.ID).
			Updates(map[string]interface{}{
				"eliminated_at":     now,
				"elimination_order": round,
			})
		if res.Error != nil {
			return logger.WrapError(res.Error, "")
		}
		eliminated = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return active, err
	}

	if eliminated {
		s.events.Publish(ctx, Event{
			Type:    EventUserEliminated,
			WheelID: wheelID,
			Payload: map[string]interface{}{
				"user_id":           victim.UserID,
				"elimination_order": round,
				"remaining":         len(active) - 1,
			},
		})

		logger.Info("Wheel %d eliminated user %d (round %d, %d remain)",
			wheelID, victim.UserID, round, len(active)-1)
	} else {
		// Marked in an earlier attempt; drop it without a second event.
		logger.Warn("Wheel %d round %d: participant %d already eliminated", wheelID, round, victim.UserID)
	}

	survivors := make([]models.Join, 0, len(active)-1)
	survivors = append(survivors, active[:victimIdx]...)
	survivors = append(survivors, active[victimIdx+1:]...)
	return survivors, nil
}

func (s *WheelService) finishElimination(ctx context.Context, wheelID int64) error {
	wheel, err := models.GetWheelByID(nil, wheelID)
	if err != nil {
		return logger.WrapError(err, "")
	}
	if wheel.IsTerminal() {
		return nil
	}

	active, err := models.GetActiveJoins(nil, wheelID)
	if err != nil {
		return logger.WrapError(err, "")
	}

	switch len(active) {
	case 0:
		return s.abortWheel(ctx, wheelID, "no_participants_remaining")
	case 1:
		return s.finalizeWheel(ctx, wheelID, active[0].UserID)
	default:
		return logger.WrapError(errors.New("elimination loop stopped early"), "")
	}
}

// runDirectDraw settles the wheel with one weighted draw over all paid
// participants (equal weights, nonce 1).
func (s *WheelService) runDirectDraw(ctx context.Context, wheelID int64, seed string) error {
	participants, err := models.GetActiveJoins(nil, wheelID)
	if err != nil {
		return logger.WrapError(err, "")
	}
	if len(participants) == 0 {
		return s.abortWheel(ctx, wheelID, "no_participants_remaining")
	}

	weights := make([]int64, len(participants))
	for i := range weights {
		weights[i] = 1
	}

	winnerIdx, err := fairness.WeightedPick(seed, 1, weights)
	if err != nil {
		return logger.WrapError(err, "")
	}

	return s.finalizeWheel(ctx, wheelID, participants[winnerIdx].UserID)
}

func (s *WheelService) claimLoop(wheelID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loops[wheelID] {
		return false
	}
	s.loops[wheelID] = true
	return true
}

func (s *WheelService) releaseLoop(wheelID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loops, wheelID)
}

func (s *WheelService) loopRunning(wheelID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loops[wheelID]
}

// Supervise periodically re-arms the loop for any active wheel that lost
// its scheduler, so a failed tick cannot stall a wheel forever. Runs until
// the process exits.
func (s *WheelService) Supervise() {
	for {
		time.Sleep(3 * s.TickInterval)

		wheels, err := models.GetActiveWheels(nil)
		if err != nil {
			logger.Error("Supervisor: %v", err)
			continue
		}

		for _, wheel := range wheels {
			if s.loopRunning(wheel.ID) {
				continue
			}
			logger.Warn("Supervisor restarting loop for active wheel %d", wheel.ID)
			go s.runWheel(wheel.ID)
		}
	}
}
