package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is shared by all four binaries; each reads the subset it needs.
type Config struct {
	AppEnv string
	Port   int

	// Postgres (pgxpool DSN)
	DatabaseURL string

	// PAN encryption: base64 of exactly 32 bytes.
	EncryptionKey string

	// Kafka
	BootstrapServers string
	ConsumerGroupID  string
	InputTopic       string
	OutputTopic      string
	DLQTopic         string
	SessionTimeout   time.Duration
	MaxPollInterval  time.Duration

	// Outbox publisher
	OutboxEnabled bool
	PollInterval  time.Duration
	BatchSize     int
	MaxRetries    int

	// Decision worker optimistic-lock retries
	MaxUpdateRetries int

	// Redis (status read cache)
	RedisEnabled bool
	RedisAddr    string
	RedisPass    string
	RedisDB      int

	// Rate limit on submissions
	RLEnabled bool
	RLLimit   int
	RLWindow  time.Duration

	// Logging
	LogLevel string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var err error
	cfg := &Config{}
	cfg.AppEnv = getEnv("APP_ENV", "dev")
	cfg.Port = getInt("PORT", 8080)

	cfg.DatabaseURL = getEnv("DATABASE_URL", "")
	cfg.EncryptionKey = getEnv("ENCRYPTION_KEY", "")

	cfg.BootstrapServers = getEnv("KAFKA_BOOTSTRAP_SERVERS", "localhost:9092")
	cfg.ConsumerGroupID = getEnv("CONSUMER_GROUP_ID", "")
	cfg.InputTopic = getEnv("INPUT_TOPIC", "")
	cfg.OutputTopic = getEnv("OUTPUT_TOPIC", "")
	cfg.DLQTopic = getEnv("DLQ_TOPIC", "")
	cfg.SessionTimeout = time.Duration(getInt("SESSION_TIMEOUT_MS", 30000)) * time.Millisecond
	cfg.MaxPollInterval = time.Duration(getInt("MAX_POLL_INTERVAL_MS", 300000)) * time.Millisecond

	if cfg.OutboxEnabled, err = getBool("OUTBOX_ENABLED", true); err != nil {
		return nil, err
	}
	cfg.PollInterval = time.Duration(getInt("POLL_INTERVAL_MS", 100)) * time.Millisecond
	cfg.BatchSize = getInt("BATCH_SIZE", 10)
	cfg.MaxRetries = getInt("MAX_RETRIES", 5)

	cfg.MaxUpdateRetries = getInt("MAX_UPDATE_RETRIES", 3)

	if cfg.RedisEnabled, err = getBool("REDIS_ENABLED", false); err != nil {
		return nil, err
	}
	cfg.RedisAddr = getEnv("REDIS_ADDR", "127.0.0.1:6379")
	cfg.RedisPass = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getInt("REDIS_DB", 0)

	if cfg.RLEnabled, err = getBool("RL_ENABLED", true); err != nil {
		return nil, err
	}
	cfg.RLLimit = getInt("RL_REQUESTS_LIMIT", 100)
	cfg.RLWindow = time.Duration(getInt("RL_WINDOW_SECONDS", 60)) * time.Second

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	// Fail fast on anything the process cannot run without.
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("missing DATABASE_URL")
	}
	if cfg.EncryptionKey != "" {
		if err := ValidateEncryptionKey(cfg.EncryptionKey); err != nil {
			return nil, err
		}
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("BATCH_SIZE must be positive, got %d", cfg.BatchSize)
	}
	if cfg.MaxRetries <= 0 {
		return nil, fmt.Errorf("MAX_RETRIES must be positive, got %d", cfg.MaxRetries)
	}

	return cfg, nil
}

// ValidateEncryptionKey rejects anything that is not base64 of exactly 32 bytes.
func ValidateEncryptionKey(key string) error {
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return fmt.Errorf("ENCRYPTION_KEY is not valid base64: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must decode to 32 bytes, got %d", len(raw))
	}
	return nil
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getBool(k string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	switch strings.ToLower(v) {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		// prefer failing fast over silent misconfig
		return def, fmt.Errorf("invalid boolean env %s=%q", k, v)
	}
}
