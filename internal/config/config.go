// Package config loads service configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backend names accepted by STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

// Config is the full service configuration.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration

	StoreBackend  string
	MongoURI      string
	MongoDatabase string
	PostgresDSN   string

	KafkaBrokers []string

	TransferMaxAttempts int
	LogLevel            string
}

// Load reads .env (if present) and the environment.
func Load() (Config, error) {
	// Missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		ShutdownTimeout:     10 * time.Second,
		StoreBackend:        getEnv("STORE_BACKEND", BackendMemory),
		MongoURI:            os.Getenv("MONGO_URI"),
		MongoDatabase:       getEnv("MONGO_DATABASE", "bookkeeping"),
		PostgresDSN:         os.Getenv("POSTGRES_DSN"),
		TransferMaxAttempts: 5,
		LogLevel:            getEnv("LOG_LEVEL", "info"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if v := os.Getenv("TRANSFER_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("TRANSFER_MAX_ATTEMPTS must be a positive integer, got %q", v)
		}
		cfg.TransferMaxAttempts = n
	}

	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("SHUTDOWN_TIMEOUT must be a duration, got %q", v)
		}
		cfg.ShutdownTimeout = d
	}

	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendMongo:
		if cfg.MongoURI == "" {
			return Config{}, fmt.Errorf("MONGO_URI is required when STORE_BACKEND=%s", BackendMongo)
		}
	case BackendPostgres:
		if cfg.PostgresDSN == "" {
			return Config{}, fmt.Errorf("POSTGRES_DSN is required when STORE_BACKEND=%s", BackendPostgres)
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
