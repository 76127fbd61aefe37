// Package main is the entry point for the typing test backend.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"typing-test-backend/internal/config"
	"typing-test-backend/internal/handler"
	"typing-test-backend/internal/pkg/db"
	"typing-test-backend/internal/repository"
	"typing-test-backend/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(dbPool.Pool)
	resultRepo := repository.NewResultRepository(dbPool.Pool)
	lbRepo := repository.NewLeaderboardRepository(dbPool.Pool)
	commandRepo := repository.NewBotCommandRepository(dbPool.Pool)
	statsRepo := repository.NewStatsRepository(dbPool.Pool)

	// Initialize services
	lbService := service.NewLeaderboardService(dbPool, lbRepo, cfg.Leaderboard.Size)
	pbTracker := service.NewPersonalBestTracker(userRepo)
	submitService := service.NewSubmissionService(
		userRepo,
		resultRepo,
		statsRepo,
		commandRepo,
		lbService,
		pbTracker,
	)
	rolloverService := service.NewRolloverService(
		lbRepo,
		userRepo,
		commandRepo,
		cfg.Leaderboard.RolloverTimeout,
	)

	// Start the daily rollover scheduler
	go rolloverService.Run(ctx)

	// Build the HTTP server
	api := handler.NewAPI(submitService, lbService, dbPool, cfg.Server.RequestTimeout)
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	log.Info().Msg("Server stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create users table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			uid TEXT PRIMARY KEY,
			name TEXT,
			banned BOOLEAN NOT NULL DEFAULT FALSE,
			verified BOOLEAN,
			email_verified BOOLEAN NOT NULL DEFAULT FALSE,
			discord_id TEXT,
			completed_tests BIGINT,
			daily_lb_wins JSONB,
			personal_bests JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: users table created")

	// Migration 2: Create results table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS results (
			id UUID PRIMARY KEY,
			uid TEXT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_results_uid ON results(uid);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: results table created")

	// Migration 3: Create leaderboards and history tables
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS leaderboards (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			mode2 INT NOT NULL,
			type TEXT NOT NULL,
			size INT NOT NULL,
			board JSONB NOT NULL DEFAULT '[]'::jsonb
		);
		CREATE TABLE IF NOT EXISTS leaderboard_history (
			id TEXT PRIMARY KEY,
			archived_on TIMESTAMPTZ NOT NULL,
			data JSONB NOT NULL
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: leaderboards tables created")

	// Migration 4: Create bot command outbox
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS bot_commands (
			id BIGSERIAL PRIMARY KEY,
			command TEXT NOT NULL,
			arguments JSONB NOT NULL DEFAULT '[]'::jsonb,
			executed BOOLEAN NOT NULL DEFAULT FALSE,
			requested_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_bot_commands_pending ON bot_commands(executed) WHERE NOT executed;
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: bot_commands table created")

	// Migration 5: Create site stats table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS site_stats (
			id TEXT PRIMARY KEY,
			completed_tests BIGINT NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 5: site_stats table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
