package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Zayn-Suleman/loan-preQualification/internal/config"
	"github.com/Zayn-Suleman/loan-preQualification/internal/encryption"
	"github.com/Zayn-Suleman/loan-preQualification/internal/infrastructure/kafka"
	"github.com/Zayn-Suleman/loan-preQualification/internal/infrastructure/postgres"
	"github.com/Zayn-Suleman/loan-preQualification/internal/infrastructure/redis"
	"github.com/Zayn-Suleman/loan-preQualification/internal/logger"
	"github.com/Zayn-Suleman/loan-preQualification/internal/outbox"
	"github.com/Zayn-Suleman/loan-preQualification/internal/service"
	"github.com/Zayn-Suleman/loan-preQualification/internal/transport/rest"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}
	if cfg.EncryptionKey == "" {
		fmt.Fprintln(os.Stderr, "missing ENCRYPTION_KEY")
		os.Exit(1)
	}

	if cfg.LogLevel != "" {
		_ = os.Setenv("LOG_LEVEL", cfg.LogLevel)
	}
	logger.Init()
	log := logger.Logger.With().
		Str("service", "prequal-api").
		Str("env", cfg.AppEnv).
		Logger()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Postgres ----
	dbPool, err := pgxpool.New(rootCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres pool create failed")
	}
	defer dbPool.Close()

	{
		pingCtx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
		defer cancel()
		if err := dbPool.Ping(pingCtx); err != nil {
			log.Fatal().Err(err).Msg("postgres ping failed")
		}
		log.Info().Msg("postgres connected")
	}

	repo := postgres.New(dbPool)

	crypto, err := encryption.New(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("encryption init failed")
	}

	// ---- Redis (optional read cache) ----
	var cache service.Cache
	if cfg.RedisEnabled {
		rc := redis.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		pingCtx, cancel := context.WithTimeout(rootCtx, 2*time.Second)
		if err := rc.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Msg("redis ping failed (continuing)")
		} else {
			log.Info().Msg("redis connected")
		}
		cancel()
		defer func() { _ = rc.Close() }()
		cache = rc
	}

	svc := service.NewApplicationService(repo, crypto, cache, log)
	h := rest.NewHandler(svc)

	httpHandler := rest.NewRouter(rest.RouterDeps{
		Handler:         h,
		RateLimitPerMin: cfg.RLLimit,
		HealthCheck: func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return dbPool.Ping(pingCtx)
		},
	})

	// ---- In-process outbox publisher (optional; the standalone binary
	// covers deployments that scale it separately) ----
	if cfg.OutboxEnabled {
		breaker := kafka.NewBreaker("outbox-producer", 5, 2, 30*time.Second)
		producer, err := kafka.NewProducer(strings.Split(cfg.BootstrapServers, ","), breaker, log)
		if err != nil {
			log.Fatal().Err(err).Msg("kafka producer create failed")
		}
		defer producer.Close()

		publisher := outbox.NewPublisher(repo, producer, cfg.PollInterval, cfg.BatchSize, cfg.MaxRetries, log)
		go func() { _ = publisher.Run(rootCtx) }()
		log.Info().Msg("outbox publisher started")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server crashed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info().Msg("shutdown complete")
}
