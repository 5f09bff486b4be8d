package config

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/prequal")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "localhost:9092", cfg.BootstrapServers)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 3, cfg.MaxUpdateRetries)
	assert.True(t, cfg.OutboxEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/prequal")
	t.Setenv("PORT", "9090")
	t.Setenv("BATCH_SIZE", "50")
	t.Setenv("POLL_INTERVAL_MS", "250")
	t.Setenv("OUTBOX_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.False(t, cfg.OutboxEnabled)
}

func TestLoad_RejectsNonPositiveBatchSize(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/prequal")
	t.Setenv("BATCH_SIZE", "-1")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateEncryptionKey(t *testing.T) {
	good := base64.StdEncoding.EncodeToString(make([]byte, 32))
	assert.NoError(t, ValidateEncryptionKey(good))

	short := base64.StdEncoding.EncodeToString(make([]byte, 16))
	assert.Error(t, ValidateEncryptionKey(short))

	assert.Error(t, ValidateEncryptionKey("%%%"))
}

func TestLoad_RejectsBadEncryptionKey(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/prequal")
	t.Setenv("ENCRYPTION_KEY", "dG9vc2hvcnQ=")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsMalformedBool(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/prequal")
	t.Setenv("OUTBOX_ENABLED", "maybe")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OUTBOX_ENABLED")
}

func TestGetBool(t *testing.T) {
	t.Setenv("SOME_FLAG", "yes")
	got, err := getBool("SOME_FLAG", false)
	require.NoError(t, err)
	assert.True(t, got)

	t.Setenv("SOME_FLAG", "off")
	got, err = getBool("SOME_FLAG", true)
	require.NoError(t, err)
	assert.False(t, got)

	t.Setenv("SOME_FLAG", "maybe")
	_, err = getBool("SOME_FLAG", true)
	assert.Error(t, err)
}
