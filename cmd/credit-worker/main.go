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
	"github.com/Zayn-Suleman/loan-preQualification/internal/domain"
	"github.com/Zayn-Suleman/loan-preQualification/internal/encryption"
	"github.com/Zayn-Suleman/loan-preQualification/internal/infrastructure/kafka"
	"github.com/Zayn-Suleman/loan-preQualification/internal/infrastructure/postgres"
	"github.com/Zayn-Suleman/loan-preQualification/internal/logger"
	creditworker "github.com/Zayn-Suleman/loan-preQualification/internal/worker/credit"
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
		Str("service", "credit-worker").
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

	crypto, err := encryption.New(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("encryption init failed")
	}

	group := cfg.ConsumerGroupID
	if group == "" {
		group = "credit-workers"
	}
	topic := cfg.InputTopic
	if topic == "" {
		topic = domain.TopicApplicationsSubmitted
	}

	handler := creditworker.NewHandler(repo, crypto, group, log)

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:         strings.Split(cfg.BootstrapServers, ","),
		GroupID:         group,
		Topic:           topic,
		DLQTopic:        cfg.DLQTopic,
		SessionTimeout:  cfg.SessionTimeout,
		MaxPollInterval: cfg.MaxPollInterval,
	}, handler, log)
	if err != nil {
		log.Fatal().Err(err).Msg("kafka consumer create failed")
	}
	defer consumer.Close()

	if err := consumer.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("consumer exited")
	}
	log.Info().Msg("shutdown complete")
}
