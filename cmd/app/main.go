package main

import (
	"SpinApi/cmd/db"
	"SpinApi/internal/app"
	"SpinApi/pkg/logger"
)

func main() {
	if err := db.Connect(); err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}

	app.Start()
}
