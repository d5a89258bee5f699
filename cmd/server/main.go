// LedgerKeep server entry point.
//
// Startup sequence:
//  1. Loads configuration from environment variables (.env file)
//  2. Initializes structured logging
//  3. Opens and migrates the ledger database
//  4. Wires the recurring scheduler (repository, processor, sweep runner)
//  5. Registers cron jobs (daily sweep, optional backup)
//  6. Starts the HTTP server
//  7. Waits for shutdown signal and performs graceful shutdown
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ledgerkeep/ledgerkeep/internal/config"
	"github.com/ledgerkeep/ledgerkeep/internal/database"
	"github.com/ledgerkeep/ledgerkeep/internal/jobs"
	"github.com/ledgerkeep/ledgerkeep/internal/recurring"
	"github.com/ledgerkeep/ledgerkeep/internal/reliability"
	"github.com/ledgerkeep/ledgerkeep/internal/scheduler"
	"github.com/ledgerkeep/ledgerkeep/internal/server"
	"github.com/ledgerkeep/ledgerkeep/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting LedgerKeep")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Ledger profile: synchronous FULL, financial records take priority
	// over write speed.
	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer ledgerDB.Close()

	if err := ledgerDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate ledger database")
	}

	ruleRepo := recurring.NewRepository(ledgerDB.Conn(), log)
	tracker := jobs.NewTracker()
	processor := recurring.NewProcessor(ruleRepo, log)
	sweeper := recurring.NewSweeper(ruleRepo, processor, tracker, log)

	// Cron schedules run in the configured timezone so "6 AM" matches the
	// operator's day boundary.
	sched := scheduler.New(cfg.Location(), log)

	sweepJob := scheduler.NewSweepJob(sweeper, log)
	if err := sched.AddJob(cfg.SweepSchedule, sweepJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register sweep job")
	}

	var backupJob *scheduler.BackupJob
	if cfg.Backup.Enabled() {
		s3Client, err := reliability.NewS3Client(context.Background(), cfg.Backup, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 client")
		}

		backupSvc := reliability.NewBackupService(ledgerDB, s3Client, cfg.DataDir, log)
		backupJob = scheduler.NewBackupJob(backupSvc, tracker, log)
		if err := sched.AddJob(cfg.Backup.Schedule, backupJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	} else {
		log.Info().Msg("Backups not configured, skipping backup job")
	}

	sched.Start()

	srv := server.New(server.Config{
		Log:       log,
		LedgerDB:  ledgerDB,
		Rules:     ruleRepo,
		Sweeper:   sweeper,
		Tracker:   tracker,
		BackupJob: backupJob,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Catch-up sweep: rules that came due while the process was down are
	// processed right away instead of waiting for the next scheduled tick.
	go func() {
		if err := sweepJob.Run(); err != nil {
			log.Error().Err(err).Msg("Startup sweep failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Stop the scheduler first so no new sweep starts mid-shutdown.
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
