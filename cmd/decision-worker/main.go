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
	"github.com/Zayn-Suleman/loan-preQualification/internal/infrastructure/kafka"
	"github.com/Zayn-Suleman/loan-preQualification/internal/infrastructure/postgres"
	"github.com/Zayn-Suleman/loan-preQualification/internal/logger"
	decisionworker "github.com/Zayn-Suleman/loan-preQualification/internal/worker/decision"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	if cfg.LogLevel != "" {
		_ = os.Setenv("LOG_LEVEL", cfg.LogLevel)
	}
	logger.Init()
	log := logger.Logger.With().
		Str("service", "decision-worker").
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

	group := cfg.ConsumerGroupID
	if group == "" {
		group = "decision-workers"
	}
	topic := cfg.InputTopic
	if topic == "" {
		topic = domain.TopicCreditReports
	}

	handler := decisionworker.NewHandler(repo, group, cfg.MaxUpdateRetries, log)

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
