// Command server runs the relay: websocket presence + message routing,
// the REST surface, and the payment poll supervisor.
//
// Configuration comes from the environment (a local .env is honored in
// development). The process shuts down gracefully on SIGINT/SIGTERM:
// the HTTP listener drains, active payment polls are cancelled and
// awaited, and the tracer provider flushes.
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

	"github.com/damam/go-relay-backend/internal/backend"
	"github.com/damam/go-relay-backend/internal/chat"
	"github.com/damam/go-relay-backend/internal/config"
	httpapi "github.com/damam/go-relay-backend/internal/http"
	"github.com/damam/go-relay-backend/internal/observability"
	"github.com/damam/go-relay-backend/internal/payment"
	"github.com/damam/go-relay-backend/internal/presence"
	"github.com/damam/go-relay-backend/internal/repo"
	"github.com/damam/go-relay-backend/internal/sysutil"
)

// version is stamped by the build (-ldflags "-X main.version=...").
var version = "dev"

func main() {
	// Local development convenience; production supplies real env vars.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open audit database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate audit database failed")
	}

	registry := presence.NewRegistry()

	router := chat.NewService(
		registry,
		chat.NewWindowLimiter(cfg.Chat.WindowLimit, cfg.Chat.Window),
		chat.NewValidator(cfg.Chat.MaxBodyRunes),
		chat.NewHistoryBuffer(cfg.Chat.HistoryCap),
		&repo.MessageStore{DB: db},
	)

	upstream := backend.NewClient(cfg.Backend)

	providerHTTP := &http.Client{Timeout: cfg.Backend.Timeout}
	clients := map[payment.Provider]payment.StatusClient{
		payment.ProviderMoMo: &payment.MoMoClient{
			BaseURL:           cfg.Payment.MoMoBaseURL,
			SubscriptionKey:   cfg.Payment.MoMoSubscription,
			TargetEnvironment: cfg.Payment.MoMoEnvironment,
			HTTPClient:        providerHTTP,
		},
		payment.ProviderOrange: &payment.OrangeClient{
			BaseURL:    cfg.Payment.OrangeBaseURL,
			AuthToken:  cfg.Payment.OrangeAuthToken,
			HTTPClient: providerHTTP,
		},
	}

	supervisor := payment.NewSupervisor(
		ctx,
		registry,
		upstream,
		&repo.PaymentStore{DB: db},
		clients,
		cfg.Payment.Interval,
		cfg.Payment.MaxAttempts,
		cfg.Payment.NotifyOnTimeout,
		cfg.Payment.SaveRetries,
	)
	supervisor.SetTuning(payment.ProviderMoMo, payment.Tuning{
		Interval:    cfg.Payment.MoMoInterval,
		MaxAttempts: cfg.Payment.MoMoMaxAttempts,
	})
	supervisor.SetTuning(payment.ProviderOrange, payment.Tuning{
		Interval:    cfg.Payment.OrangeInterval,
		MaxAttempts: cfg.Payment.OrangeMaxAttempts,
	})

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, registry, router, upstream, supervisor, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("version", version).
			Str("port", cfg.Port).
			Str("base_path", cfg.APIBasePath).
			Msg("relay listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown incomplete")
	}

	// Poll goroutines observe ctx (already cancelled by stop on signal).
	supervisor.Wait()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := shutdownOTel(drainCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown incomplete")
	}
	log.Info().Msg("relay stopped")
}
