package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SpinApi/cmd/db"
	"SpinApi/internal/fairness"
	"SpinApi/internal/models"
)

func TestEliminationRunFinishesWheel(t *testing.T) {
	service, broadcaster := newTestService(t)
	admin := createUser(t, "admin", 0, true)
	users := createUsers(t, 5, 500)

	wheel, err := service.CreateWheel(context.Background(), admin.ID, CreateWheelInput{
		EntryFee:        100,
		MinParticipants: 2,
	})
	require.NoError(t, err)

	for _, user := range users {
		_, err := service.JoinWheel(context.Background(), wheel.ID, user.ID)
		require.NoError(t, err)
	}

	require.NoError(t, service.StartWheel(context.Background(), wheel.ID, admin.ID))
	finished := waitForStatus(t, wheel.ID, models.WheelStatusFinished)

	// The revealed seed must match the commitment published at creation.
	require.NotEmpty(t, finished.RevealedSeed)
	assert.True(t, fairness.VerifyCommitment(finished.RevealedSeed, finished.SeedHash))

	joins, err := models.GetJoinsByWheelID(nil, wheel.ID)
	require.NoError(t, err)
	require.Len(t, joins, 5)

	// Anyone holding the revealed seed can replay the full elimination
	// timeline and land on the same winner.
	sequence := fairness.EliminationSequence(finished.RevealedSeed, len(joins))
	for round := 0; round < len(sequence)-1; round++ {
		victim := joins[sequence[round]]
		assert.Equal(t, round+1, victim.EliminationOrder,
			"replay disagrees with recorded order at round %d", round+1)
		assert.NotNil(t, victim.EliminatedAt)
	}

	winner := joins[sequence[len(sequence)-1]]
	assert.Nil(t, winner.EliminatedAt)
	assert.Zero(t, winner.EliminationOrder)
	assert.Equal(t, finished.WinnerPool, winner.Payout)
	assert.Equal(t, int64(350), finished.WinnerPool)

	winnerUser, err := models.GetUserByID(nil, winner.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(500-100+350), winnerUser.Balance)

	owner, err := models.GetUserByID(nil, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, finished.AdminPool, owner.Balance)

	eliminations := broadcaster.ofType(EventUserEliminated)
	require.Len(t, eliminations, 4)
	for i, event := range eliminations {
		assert.Equal(t, i+1, event.Payload["elimination_order"])
	}

	done := broadcaster.ofType(EventWheelFinished)
	require.Len(t, done, 1)
	assert.Equal(t, finished.RevealedSeed, done[0].Payload["seed"])
	assert.Equal(t, winner.UserID, done[0].Payload["winner_user_id"])
}

func TestDirectDrawSettlesInOneDraw(t *testing.T) {
	service, broadcaster := newTestService(t)
	admin := createUser(t, "admin", 0, true)
	users := createUsers(t, 3, 500)

	wheel, err := service.CreateWheel(context.Background(), admin.ID, CreateWheelInput{
		EntryFee:        100,
		MinParticipants: 2,
		Mode:            models.WheelModeDirectDraw,
	})
	require.NoError(t, err)

	for _, user := range users {
		_, err := service.JoinWheel(context.Background(), wheel.ID, user.ID)
		require.NoError(t, err)
	}

	require.NoError(t, service.StartWheel(context.Background(), wheel.ID, admin.ID))
	finished := waitForStatus(t, wheel.ID, models.WheelStatusFinished)

	joins, err := models.GetJoinsByWheelID(nil, wheel.ID)
	require.NoError(t, err)

	weights := []int64{1, 1, 1}
	winnerIdx, err := fairness.WeightedPick(finished.RevealedSeed, 1, weights)
	require.NoError(t, err)

	winner := joins[winnerIdx]
	assert.Equal(t, finished.WinnerPool, winner.Payout)

	// Direct draw skips the round-by-round eliminations entirely.
	assert.Empty(t, broadcaster.ofType(EventUserEliminated))
	assert.Len(t, broadcaster.ofType(EventWheelFinished), 1)
}

func TestDeadlineAutoStart(t *testing.T) {
	service, broadcaster := newTestService(t)
	service.JoinDeadline = 75 * time.Millisecond
	admin := createUser(t, "admin", 0, true)
	users := createUsers(t, 2, 500)

	wheel, err := service.CreateWheel(context.Background(), admin.ID, CreateWheelInput{
		EntryFee:        100,
		MinParticipants: 2,
	})
	require.NoError(t, err)

	for _, user := range users {
		_, err := service.JoinWheel(context.Background(), wheel.ID, user.ID)
		require.NoError(t, err)
	}

	// No manual StartWheel: the join deadline must fire the transition.
	waitForStatus(t, wheel.ID, models.WheelStatusFinished)

	started := broadcaster.ofType(EventWheelStarted)
	require.Len(t, started, 1)
	assert.Equal(t, "deadline", started[0].Payload["trigger"])
}

func TestDeadlineAbortsUnderfilledWheel(t *testing.T) {
	service, broadcaster := newTestService(t)
	service.JoinDeadline = 50 * time.Millisecond
	admin := createUser(t, "admin", 0, true)
	player := createUser(t, "player", 500, false)

	wheel, err := service.CreateWheel(context.Background(), admin.ID, CreateWheelInput{
		EntryFee:        100,
		MinParticipants: 2,
	})
	require.NoError(t, err)

	_, err = service.JoinWheel(context.Background(), wheel.ID, player.ID)
	require.NoError(t, err)

	waitForStatus(t, wheel.ID, models.WheelStatusAborted)

	refreshed, err := models.GetUserByID(nil, player.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), refreshed.Balance)

	aborts := broadcaster.ofType(EventWheelAborted)
	require.Len(t, aborts, 1)
	assert.Equal(t, "insufficient_participants", aborts[0].Payload["reason"])
}

func TestRecoverOnStartupAbortsActiveWheel(t *testing.T) {
	service, broadcaster := newTestService(t)
	admin := createUser(t, "admin", 0, true)
	users := createUsers(t, 3, 400)

	// A wheel left active by a previous process: fees already collected,
	// seed gone with the old process memory.
	startedAt := time.Now().Add(-time.Minute)
	wheel := models.Wheel{
		OwnerID:         admin.ID,
		Status:          models.WheelStatusActive,
		Mode:            models.WheelModeElimination,
		EntryFee:        100,
		MinParticipants: 2,
		WinnerPool:      210,
		AdminPool:       60,
		AppPool:         30,
		SeedHash:        fairness.Commitment("lost-seed"),
		StartedAt:       &startedAt,
	}
	require.NoError(t, db.DB.Create(&wheel).Error)
	for _, user := range users {
		require.NoError(t, db.DB.Create(&models.Join{
			WheelID: wheel.ID,
			UserID:  user.ID,
			Paid:    true,
		}).Error)
	}

	require.NoError(t, service.RecoverOnStartup(context.Background()))

	recovered, err := models.GetWheelByID(nil, wheel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WheelStatusAborted, recovered.Status)

	for _, user := range users {
		refreshed, err := models.GetUserByID(nil, user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(500), refreshed.Balance)

		entries, err := models.GetUserTransactions(nil, user.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "refund:restart_recovery", entries[0].Reason)
		assert.Equal(t, int64(100), entries[0].Amount)
	}

	aborts := broadcaster.ofType(EventWheelAborted)
	require.Len(t, aborts, 1)
	assert.Equal(t, "restart_recovery", aborts[0].Payload["reason"])
}

func TestRecoverOnStartupAbortsPendingWheel(t *testing.T) {
	service, broadcaster := newTestService(t)
	admin := createUser(t, "admin", 0, true)
	player := createUser(t, "player", 400, false)

	// A pending wheel from a previous process: its seed is gone, so it
	// can never honour its commitment and must not keep collecting joins.
	wheel := models.Wheel{
		OwnerID:         admin.ID,
		Status:          models.WheelStatusPending,
		Mode:            models.WheelModeElimination,
		EntryFee:        100,
		MinParticipants: 2,
		WinnerPool:      70,
		AdminPool:       20,
		AppPool:         10,
		SeedHash:        fairness.Commitment("lost-seed"),
	}
	require.NoError(t, db.DB.Create(&wheel).Error)
	require.NoError(t, db.DB.Create(&models.Join{
		WheelID: wheel.ID,
		UserID:  player.ID,
		Paid:    true,
	}).Error)

	require.NoError(t, service.RecoverOnStartup(context.Background()))

	recovered, err := models.GetWheelByID(nil, wheel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WheelStatusAborted, recovered.Status)

	refreshed, err := models.GetUserByID(nil, player.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), refreshed.Balance)

	aborts := broadcaster.ofType(EventWheelAborted)
	require.Len(t, aborts, 1)
	assert.Equal(t, "restart_recovery", aborts[0].Payload["reason"])
}

func TestEliminationTickSkipsAlreadyEliminated(t *testing.T) {
	service, broadcaster := newTestService(t)
	admin := createUser(t, "admin", 0, true)
	users := createUsers(t, 3, 500)

	const seed = "replayed-tick-seed"
	wheel := models.Wheel{
		OwnerID:         admin.ID,
		Status:          models.WheelStatusActive,
		Mode:            models.WheelModeElimination,
		EntryFee:        100,
		MinParticipants: 2,
		SeedHash:        fairness.Commitment(seed),
	}
	require.NoError(t, db.DB.Create(&wheel).Error)
	for _, user := range users {
		require.NoError(t, db.DB.Create(&models.Join{
			WheelID: wheel.ID,
			UserID:  user.ID,
			Paid:    true,
		}).Error)
	}

	active, err := models.GetActiveJoins(nil, wheel.ID)
	require.NoError(t, err)
	require.Len(t, active, 3)

	// The round-1 victim was already marked by an earlier attempt; the
	// retried tick must prune it without broadcasting a second event.
	victimIdx, err := fairness.Pick(seed, 1, len(active))
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, db.DB.Model(&models.Join{}).
		Where("id = ?", active[victimIdx].ID).
		Updates(map[string]interface{}{
			"eliminated_at":     now,
			"elimination_order": 1,
		}).Error)

	survivors, err := service.eliminateOne(context.Background(), wheel.ID, seed, 3, active)
	require.NoError(t, err)
	assert.Len(t, survivors, 2)
	for _, join := range survivors {
		assert.NotEqual(t, active[victimIdx].ID, join.ID)
	}

	assert.Empty(t, broadcaster.ofType(EventUserEliminated))
}

func TestDepositCreditsBalanceAndLedger(t *testing.T) {
	setupTestDB(t)
	deposits := NewDepositService(MockCharger{})
	user := createUser(t, "depositor", 0, false)

	require.NoError(t, deposits.Deposit(context.Background(), user.ID, 250))

	refreshed, err := models.GetUserByID(nil, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(250), refreshed.Balance)

	entries, err := models.GetUserTransactions(nil, user.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.TransactionReasonDeposit, entries[0].Reason)
	assert.Equal(t, models.TransactionKindCredit, entries[0].Kind)
	assert.Equal(t, int64(250), entries[0].Amount)
}
