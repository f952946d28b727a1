package service

import (
	"SpinApi/cmd/db"
	"SpinApi/internal/middleware"
	"SpinApi/internal/models"
	"SpinApi/pkg/logger"
	"time"

	"github.com/gin-gonic/gin"
)

const AccessExpirationHours = 10

type Token struct {
	AccessToken string `json:"access_token"`
}

type Login struct {
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

func Auth(c *gin.Context) {
	var req Login
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Failed to bind request: %v", err)
		c.JSON(400, gin.H{"error": "Invalid data"})
		return
	}

	user, err := models.GetUserWithPassword(req.Nickname)
	if err != nil {
		logger.Error("Failed get password: %v", err)
		c.JSON(400, gin.H{"error": "Invalid data"})
		return
	}

	if !middleware.ComparePasswords(user.Password, req.Password) {
		logger.Error("Error login or password incorrect")
		c.JSON(400, gin.H{"error": "Invalid data"})
		return
	}

	issueToken(c, user)
}

func SignUp(c *gin.Context) {
	var req Login
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid data"})
		return
	}

	if req.Nickname == "" || req.Password == "" {
		c.JSON(400, gin.H{"error": "Invalid data"})
		return
	}

	exists, err := models.CheckIfUserExistsByNickname(req.Nickname)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}
	if exists {
		c.JSON(409, gin.H{"error": "Nickname already taken"})
		return
	}

	hashed, err := middleware.HashPassword(req.Password)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	user := models.User{
		Nickname: req.Nickname,
		Password: hashed,
	}
	if err := db.DB.Create(&user).Error; err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}

	issueToken(c, &user)
}

func issueToken(c *gin.Context, user *models.User) {
	expiration := time.Now().Unix() + int64(AccessExpirationHours*60*60)

	access, err := middleware.TokenNew(middleware.JWTKey(), user.ID, expiration, middleware.TokenAccess)
	if err != nil {
		logger.Error("%v", err)
		c.AbortWithStatus(500)
		return
	}

	c.JSON(200, Token{AccessToken: access})
}
