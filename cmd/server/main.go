package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aurix/reconciler/internal/audit"
	"github.com/aurix/reconciler/internal/config"
	"github.com/aurix/reconciler/internal/database"
	"github.com/aurix/reconciler/internal/pipeline"
	"github.com/aurix/reconciler/internal/scheduler"
	"github.com/aurix/reconciler/internal/server"
	"github.com/aurix/reconciler/pkg/logger"
)

func main() {
	// Load configuration first so the logger level is honored
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting reconciliation service")

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	auditRepo := audit.NewRepository(db.Conn(), log)
	runner := pipeline.NewRunner(cfg, log)

	// Scheduled reconciliation of a watched workbook, when configured
	sched := scheduler.New(log)
	if cfg.WorkbookPath != "" {
		job := scheduler.NewReconJob(scheduler.ReconJobConfig{
			Log:          log,
			Runner:       runner,
			AuditRepo:    auditRepo,
			WorkbookPath: cfg.WorkbookPath,
		})
		if err := sched.AddJob(cfg.ReconSchedule, job); err != nil {
			log.Fatal().Err(err).Msg("Failed to register scheduled reconciliation")
		}
	}
	sched.Start()
	defer sched.Stop()

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:      cfg.Port,
		Log:       log,
		Config:    cfg,
		Runner:    runner,
		AuditRepo: auditRepo,
		DevMode:   cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
