package middleware

import (
	"SpinApi/internal/models"
	"SpinApi/pkg/logger"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const (
	TokenAccess      = "TokenAccess"
	ContextUserIDKey = "user_id"
)

var jwtKey = "spin-api-dev-key"

func init() {
	if key, ok := os.LookupEnv("JWT_KEY"); ok {
		jwtKey = key
	}
}

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := GetTokenFromAuthorizationHeader(c)
		if err != nil {
			logger.Error("%v", err)
			c.AbortWithStatus(400)
			return
		}

		userID, tokenType, err := TokenCheck(token, jwtKey)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				logger.Error("%v", err)
				c.AbortWithStatus(401)
				return
			}
			logger.Error("%v", err)
			c.AbortWithStatus(400)
			return
		}

		if tokenType != TokenAccess {
			c.AbortWithStatus(401)
			return
		}

		// check if user in database
		exists, err := models.CheckIfUserExistsByID(userID)
		if err != nil {
			logger.Error("%v", err)
			c.AbortWithStatus(500)
			return
		}

		if exists {
			c.Set(ContextUserIDKey, userID)
			c.Next()
			return
		} else {
			c.JSON(401, gin.H{"error": "User not authorized"})
			c.Abort()
			return
		}
	}
}

func GetUserIDFromGinContext(c *gin.Context) (int64, error) {
	userIDAny, ok := c.Get(ContextUserIDKey)
	if !ok {
		return 0, logger.WrapError(errors.New("no user id in gin context"), "")
	}

	userID, ok := userIDAny.(int64)
	if !ok {
		return 0, logger.WrapError(errors.New("user id in gin context is not int64"), "")
	}

	return userID, nil
}

func GetTokenFromAuthorizationHeader(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", logger.WrapError(errors.New("no Authorization header"), "")
	}

	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		return "", logger.WrapError(errors.New("Authorization header is not a bearer token"), "")
	}

	return token, nil
}

type tokenClaims struct {
	UserID    int64  `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

func TokenNew(key string, userID int64, expiresAt int64, tokenType string) (string, error) {
	claims := tokenClaims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Unix(expiresAt, 0)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(key))
	if err != nil {
		return "", logger.WrapError(err, "")
	}

	return signed, nil
}

func TokenCheck(token string, key string) (int64, string, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(key), nil
	})
	if err != nil {
		return 0, "", err
	}
	if !parsed.Valid {
		return 0, "", errors.New("invalid token")
	}

	return claims.UserID, claims.TokenType, nil
}

// JWTKey returns the signing key the process was started with.
func JWTKey() string {
	return jwtKey
}
