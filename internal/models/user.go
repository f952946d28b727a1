package models

import (
	"SpinApi/cmd/db"
	"SpinApi/pkg/logger"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type User struct {
	ID        int64  `gorm:"primaryKey,autoIncrement"`
	Nickname  string `gorm:"unique"`
	Balance   int64
	IsAdmin   bool
	Password  string `json:"-"`
	CreatedAt time.Time
}

// LockForUpdate locks rows selected through the returned handle until the
// enclosing transaction commits. SQLite serializes writers itself and
// rejects FOR UPDATE, so the clause is only added on other dialects.
func LockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func CheckIfUserExistsByID(userID int64) (bool, error) {
	var exists bool
	err := db.DB.Model(&User{}).
		Select("count(*) > 0").
		Where("id = ?", userID).
		Scan(&exists).Error
	if err != nil {
		return true, logger.WrapError(err, "")
	}

	return exists, nil
}

func GetUserByID(tx *gorm.DB, userID int64) (*User, error) {
	if tx == nil {
		tx = db.DB
	}

	var user User
	if err := tx.First(&user, userID).Error; err != nil {
		return nil, logger.WrapError(err, "")
	}

	return &user, nil
}

func GetUserWithPassword(nickname string) (*User, error) {
	var user User

	err := db.DB.
		Where("nickname = ?", nickname).
		First(&user).Error
	if err != nil {
		return nil, logger.WrapError(err, "")
	}

	return &user, nil
}

func CheckIfUserExistsByNickname(nn string) (bool, error) {
	var exists bool

	err := db.DB.Model(&User{}).
		Select("count(*) > 0").
		Where("nickname = ?", nn).
		Scan(&exists).Error
	if err != nil {
		return true, logger.WrapError(err, "")
	}

	return exists, nil
}
