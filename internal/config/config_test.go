package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 5, cfg.TransferMaxAttempts)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TRANSFER_MAX_ATTEMPTS", "8")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092 ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8, cfg.TransferMaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_MongoRequiresURI(t *testing.T) {
	t.Setenv("STORE_BACKEND", BackendMongo)
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_URI")

	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "bookkeeping", cfg.MongoDatabase)
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("STORE_BACKEND", BackendPostgres)
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_DSN")

	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/bookkeeping?sslmode=disable")
	_, err = Load()
	require.NoError(t, err)
}

func TestLoad_Rejections(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "sqlite")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("bad retry budget", func(t *testing.T) {
		t.Setenv("TRANSFER_MAX_ATTEMPTS", "zero")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("negative retry budget", func(t *testing.T) {
		t.Setenv("TRANSFER_MAX_ATTEMPTS", "-1")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("bad shutdown timeout", func(t *testing.T) {
		t.Setenv("SHUTDOWN_TIMEOUT", "soon")
		_, err := Load()
		assert.Error(t, err)
	})
}
