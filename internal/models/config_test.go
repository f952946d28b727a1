package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"SpinApi/cmd/db"
)

func setupTestDB(t *testing.T) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gdb.AutoMigrate(&User{}, &Wheel{}, &Join{}, &Transaction{}, &Config{}))

	db.DB = gdb
}

func TestFeeSplitApply(t *testing.T) {
	split := FeeSplit{Winner: 70, Admin: 20, App: 10}

	t.Run("even fee", func(t *testing.T) {
		winner, admin, app := split.Apply(100)
		assert.Equal(t, int64(70), winner)
		assert.Equal(t, int64(20), admin)
		assert.Equal(t, int64(10), app)
	})

	t.Run("remainder goes to the app pool", func(t *testing.T) {
		winner, admin, app := split.Apply(101)
		assert.Equal(t, int64(70), winner)
		assert.Equal(t, int64(20), admin)
		assert.Equal(t, int64(11), app)
		assert.Equal(t, int64(101), winner+admin+app)
	})

	t.Run("parts always sum to the fee", func(t *testing.T) {
		for fee := int64(1); fee <= 500; fee++ {
			winner, admin, app := split.Apply(fee)
			assert.Equal(t, fee, winner+admin+app, "fee %d leaked", fee)
		}
	})
}

func TestSeedDefaultFeeSplit(t *testing.T) {
	setupTestDB(t)

	require.NoError(t, SeedDefaultFeeSplit(nil))

	split, err := GetFeeSplit(nil)
	require.NoError(t, err)
	assert.Equal(t, FeeSplit{Winner: 70, Admin: 20, App: 10}, split)

	// Seeding again keeps existing values.
	require.NoError(t, db.DB.Model(&Config{}).
		Where("key = ?", ConfigFeeSplitWinner).
		Update("value", 60).Error)
	require.NoError(t, db.DB.Model(&Config{}).
		Where("key = ?", ConfigFeeSplitApp).
		Update("value", 20).Error)
	require.NoError(t, SeedDefaultFeeSplit(nil))

	split, err = GetFeeSplit(nil)
	require.NoError(t, err)
	assert.Equal(t, FeeSplit{Winner: 60, Admin: 20, App: 20}, split)
}

func TestGetFeeSplitRejectsBrokenSum(t *testing.T) {
	setupTestDB(t)

	require.NoError(t, SeedDefaultFeeSplit(nil))
	require.NoError(t, db.DB.Model(&Config{}).
		Where("key = ?", ConfigFeeSplitWinner).
		Update("value", 80).Error)

	_, err := GetFeeSplit(nil)
	assert.Error(t, err)
}
