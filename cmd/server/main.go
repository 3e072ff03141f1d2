// Command server runs the verification and notification backend: code
// issuance and verification endpoints, delivery confirmation, and the
// payment-reminder scheduler, all over a single HTTP listener.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/momtazchem/go-verify-backend/internal/channels"
	"github.com/momtazchem/go-verify-backend/internal/config"
	"github.com/momtazchem/go-verify-backend/internal/dispatch"
	httpapi "github.com/momtazchem/go-verify-backend/internal/http"
	"github.com/momtazchem/go-verify-backend/internal/observability"
	"github.com/momtazchem/go-verify-backend/internal/repo"
	"github.com/momtazchem/go-verify-backend/internal/scheduler"
	"github.com/momtazchem/go-verify-backend/internal/services"
	"github.com/momtazchem/go-verify-backend/internal/sysutil"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	logger := log.With().Str("service", "go-verify-backend").Logger()

	version := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), "dev")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(c); err != nil {
			logger.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migrate failed")
	}
	if err := scheduler.EnsureDefaultSchedules(ctx, db); err != nil {
		logger.Fatal().Err(err).Msg("seed reminder schedules failed")
	}

	// Channel adapters share nothing; each gets a client sized by its own
	// provider timeout.
	smsAdapter := channels.NewSMSAdapter(cfg.SMS, nil)
	waAdapter := channels.NewWhatsAppAdapter(cfg.WhatsApp, nil)
	emailAdapter := channels.NewEmailAdapter(cfg.Email, nil)

	coord := dispatch.New(0, logger)
	verifySvc := services.NewVerificationService(db, coord, smsAdapter, waAdapter, emailAdapter, cfg.Codes, logger)

	reminderSvc := scheduler.New(db, emailAdapter, cfg.Reminder, logger)
	if cfg.Reminder.Enabled {
		if err := reminderSvc.Start(); err != nil {
			logger.Fatal().Err(err).Msg("start reminder scheduler failed")
		}
		defer reminderSvc.Stop()
	}

	// Background sweep of expired codes; exits with the signal context.
	go verifySvc.RunSweeper(ctx)

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, verifySvc, reminderSvc, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server stopped")
}
