package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Zayn-Suleman/loan-preQualification/internal/config"
	"github.com/Zayn-Suleman/loan-preQualification/internal/infrastructure/kafka"
	"github.com/Zayn-Suleman/loan-preQualification/internal/infrastructure/postgres"
	"github.com/Zayn-Suleman/loan-preQualification/internal/logger"
	"github.com/Zayn-Suleman/loan-preQualification/internal/outbox"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}
	if !cfg.OutboxEnabled {
		fmt.Fprintln(os.Stderr, "OUTBOX_ENABLED=false, nothing to do")
		os.Exit(1)
	}

	if cfg.LogLevel != "" {
		_ = os.Setenv("LOG_LEVEL", cfg.LogLevel)
	}
	logger.Init()
	log := logger.Logger.With().
		Str("service", "outbox-publisher").
		Str("env", cfg.AppEnv).
		Logger()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	breaker := kafka.NewBreaker("outbox-producer", 5, 2, 30*time.Second)
	producer, err := kafka.NewProducer(strings.Split(cfg.BootstrapServers, ","), breaker, log)
	if err != nil {
		log.Fatal().Err(err).Msg("kafka producer create failed")
	}
	defer producer.Close()

	publisher := outbox.NewPublisher(repo, producer, cfg.PollInterval, cfg.BatchSize, cfg.MaxRetries, log)

	if err := publisher.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("publisher exited")
	}
	log.Info().Msg("shutdown complete")
}
