package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"bitget-pnl-tracker-go/internal/bitget"
	"bitget-pnl-tracker-go/internal/config"
	"bitget-pnl-tracker-go/internal/database"
	"bitget-pnl-tracker-go/internal/logger"
	"bitget-pnl-tracker-go/internal/tracing"
	"bitget-pnl-tracker-go/internal/tracker"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger, "tracker")
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, os.Stdout)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	// Initialize the fill cache
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	restClient := bitget.NewRestClient(&cfg.Backend, log)
	engine := tracker.NewEngine(log, &cfg, restClient, db)

	api := tracker.NewAPIServer(engine, cfg.Server.StatusPort, log)
	api.Start()

	engine.Run(ctx)

	stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := api.Stop(stopCtx); err != nil {
		log.Error("Failed to stop API server", zap.Error(err))
	}
	if err := shutdownTracing(stopCtx); err != nil {
		log.Error("Failed to flush traces", zap.Error(err))
	}

	log.Info("Tracker has been shut down.")
}
