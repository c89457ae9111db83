package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/coupon-ledger/internal/auth"
	"github.com/fairyhunter13/coupon-ledger/internal/config"
	"github.com/fairyhunter13/coupon-ledger/internal/metrics"
	"github.com/fairyhunter13/coupon-ledger/internal/repository"
	"github.com/fairyhunter13/coupon-ledger/pkg/database"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	initLogger(cfg)

	isolation, err := repository.ParseIsolation(cfg.Ledger.Isolation)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid ledger configuration")
	}

	ctx := context.Background()

	if cfg.DB.Migrate {
		if err := database.RunMigrations(cfg.DB.MigrateURL()); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), cfg.DB.MaxRetries)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	coupons := repository.NewCouponRepository(pool)
	accounts := repository.NewAccountRepository(pool)
	redemptions := repository.NewRedemptionRepository(pool)
	backend := repository.NewLedgerBackend(pool, isolation, coupons, accounts, repository.NewReferralRepository(), redemptions)

	app := newApp(appDeps{
		backend:       backend,
		data:          repository.NewStore(coupons, accounts, redemptions),
		health:        pool,
		verifier:      auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, 0),
		registry:      registry,
		maxRetries:    cfg.Ledger.MaxRetries,
		referrerBonus: cfg.Ledger.ReferrerBonus,
		timeout:       cfg.Ledger.Timeout(),
		logRequests:   true,
	})

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// In-flight redemptions finish or hit their own deadline before the pool goes away.
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	pool.Close()
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
