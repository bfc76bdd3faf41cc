package config_test

import (
	"testing"

	"github.com/ignatij/taskflow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"DATABASE_URL", "HTTP_PORT", "JWT_SECRET", "LOG_LEVEL", "NOTIFY_WORKERS", "NOTIFY_QUEUE_SIZE",
		"DB_USERNAME", "DB_PASSWORD", "DB_HOST", "DB_PORT", "DB_NAME",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearEnv(t)
		cfg, err := config.Load()
		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.HTTPPort)
		assert.Equal(t, "INFO", cfg.LogLevel)
		assert.Equal(t, 4, cfg.NotifyWorkers)
		assert.Equal(t, 256, cfg.NotifyQueueSize)
		assert.Empty(t, cfg.DatabaseURL)
	})

	t.Run("database url from parts", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DB_USERNAME", "app")
		t.Setenv("DB_PASSWORD", "secret")
		t.Setenv("DB_HOST", "db")
		t.Setenv("DB_PORT", "5432")
		t.Setenv("DB_NAME", "taskflow")
		cfg, err := config.Load()
		require.NoError(t, err)
		assert.Equal(t, "postgres://app:secret@db:5432/taskflow?sslmode=disable", cfg.DatabaseURL)

		t.Setenv("DATABASE_URL", "postgres://explicit")
		cfg, err = config.Load()
		require.NoError(t, err)
		assert.Equal(t, "postgres://explicit", cfg.DatabaseURL)
	})

	t.Run("overrides and bad numbers", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("NOTIFY_WORKERS", "8")
		t.Setenv("JWT_SECRET", "s3cret")
		cfg, err := config.Load()
		require.NoError(t, err)
		assert.Equal(t, 8, cfg.NotifyWorkers)
		assert.Equal(t, "s3cret", cfg.JWTSecret)

		t.Setenv("NOTIFY_QUEUE_SIZE", "lots")
		_, err = config.Load()
		assert.ErrorContains(t, err, "NOTIFY_QUEUE_SIZE")
	})
}
