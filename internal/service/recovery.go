package service

import (
	"SpinApi/internal/models"
	"SpinApi/pkg/logger"
	"context"
)

// RecoverOnStartup sweeps wheels left over from a previous process. Secret
// seeds live only in process memory, so neither an active wheel nor a
// pending one can honour its commitment after a restart: an active wheel
// cannot continue its verifiable sequence, and a pending one would only
// collect more fees before failing the same way at start. Both are aborted
// and fully refunded instead of being left live with a dead seed.
func (s *WheelService) RecoverOnStartup(ctx context.Context) error {
	actives, err := models.GetActiveWheels(nil)
	if err != nil {
		return logger.WrapError(err, "")
	}

	for _, wheel := range actives {
		logger.Warn("Recovering wheel %d left active across restart, aborting", wheel.ID)
		if err := s.abortWheel(ctx, wheel.ID, "restart_recovery"); err != nil {
			logger.Error("Recovery abort of wheel %d failed: %v", wheel.ID, err)
		}
	}

	pendings, err := models.GetPendingWheels(nil)
	if err != nil {
		return logger.WrapError(err, "")
	}

	for _, wheel := range pendings {
		logger.Warn("Recovering pending wheel %d, seed lost across restart, aborting", wheel.ID)
		if err := s.abortWheel(ctx, wheel.ID, "restart_recovery"); err != nil {
			logger.Error("Recovery abort of wheel %d failed: %v", wheel.ID, err)
		}
	}

	return nil
}
