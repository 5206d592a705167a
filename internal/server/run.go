package server

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tunnelout/internal/config"
	"tunnelout/internal/db"
	"tunnelout/internal/logging"
)

// Run boots the full service: configuration, logging, storage, the lifecycle
// engine with its background tasks, and the HTTP surface. It blocks until the
// listener fails or the process receives a termination signal.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logging.Configure(&logging.Config{
		File:       cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
	})
	logger := logging.GetLogger()
	defer logger.Close()

	logger.Info("Starting tunnelout in %s mode", cfg.Environment)

	gdb, err := db.Initialize(cfg.DataDir, cfg.DBFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	database := db.NewDatabase(gdb)

	srv := NewServer(database, cfg)
	if err := srv.Init(); err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Info("Shutting down")
		srv.Shutdown()
		os.Exit(0)
	}()

	return srv.Start()
}
