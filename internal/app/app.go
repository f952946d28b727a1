package app

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"

	"SpinApi/internal/lock"
	"SpinApi/internal/middleware"
	"SpinApi/internal/service"
	"SpinApi/pkg/logger"
	"SpinApi/pkg/redis"
)

const apiPrefix = "api/"

func Start() {
	gin.DisableConsoleColor()

	router := gin.Default()
	router.Use(middleware.CORSMiddleware())

	redisAddr, ok := os.LookupEnv("REDIS_ADDR")
	if !ok {
		redisAddr = "redis:6379"
	}
	redisService := redis.NewRedisService(redisAddr, os.Getenv("REDIS_PASSWORD"))

	broadcaster := service.NewRedisBroadcaster(redisService)
	locker := lock.NewRedisLocker(redisService)

	wheelService := service.NewWheelService(locker, broadcaster)
	depositService := service.NewDepositService(service.MockCharger{})
	eventsWebsocketService := service.NewWheelEventsWebsocketService(redisService)

	// Wheels left over from a previous process are swept before any
	// request or timer can touch them.
	if err := wheelService.RecoverOnStartup(context.Background()); err != nil {
		logger.Fatal("Startup recovery failed: %v", err)
	}

	go wheelService.Supervise()

	authorized := router.Group("/", middleware.AuthMiddleware())

	// router
	{
		router.GET(apiPrefix+"users/auth", service.Auth)
		router.POST(apiPrefix+"users/auth/signup", service.SignUp)

		router.GET(apiPrefix+"ws/wheels/live", eventsWebsocketService.LiveEventsWebsocketHandler)
	}

	// authorized
	{
		// wheels
		authorized.POST(apiPrefix+"wheels", wheelService.CreateWheelHandler)
		authorized.GET(apiPrefix+"wheels", wheelService.ListWheelsHandler)
		authorized.POST(apiPrefix+"wheels/:id/join", wheelService.JoinWheelHandler)
		authorized.POST(apiPrefix+"wheels/:id/start", wheelService.StartWheelHandler)
		authorized.GET(apiPrefix+"wheels/:id/participants", wheelService.ListParticipantsHandler)
		authorized.GET(apiPrefix+"wheels/:id/verify", wheelService.VerifyWheelHandler)
		authorized.GET(apiPrefix+"wheels/events", eventsWebsocketService.GetRecentEvents)

		// payments
		authorized.POST(apiPrefix+"payments/create", depositService.CreateDepositHandler)

		// users
		authorized.GET(apiPrefix+"users/transactions", service.GetUserTransactionsHandler)
	}

	if err := router.Run(":8080"); err != nil {
		logger.Fatal("%v", err)
	}
}
