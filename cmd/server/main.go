package main

import (
	"os"

	"tunnelout/internal/logging"
	"tunnelout/internal/server"
)

func main() {
	if os.Getenv("ENV") != "production" {
		os.Setenv("ENV", "development")
	}

	if err := server.Run(); err != nil {
		logging.GetLogger().Error("Server failed: %v", err)
		os.Exit(1)
	}
}
