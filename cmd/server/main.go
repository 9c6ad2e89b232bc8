package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kassabook/ledger-service/internal/api"
	"github.com/kassabook/ledger-service/internal/config"
	"github.com/kassabook/ledger-service/internal/events"
	"github.com/kassabook/ledger-service/internal/events/kafka"
	"github.com/kassabook/ledger-service/internal/interfaces"
	"github.com/kassabook/ledger-service/internal/ledger"
	"github.com/kassabook/ledger-service/internal/registry"
	"github.com/kassabook/ledger-service/internal/storage/memory"
	mongostore "github.com/kassabook/ledger-service/internal/storage/mongo"
	"github.com/kassabook/ledger-service/internal/storage/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer cleanup()

	var publisher interfaces.EventPublisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = kafka.NewPublisher(cfg.KafkaBrokers)
		log.Info("kafka publisher enabled", zap.Strings("brokers", cfg.KafkaBrokers))
	}
	defer publisher.Close()

	ledgerSvc := ledger.NewService(store, publisher, log,
		ledger.WithMaxAttempts(cfg.TransferMaxAttempts))
	registrySvc := registry.NewService(store, log)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewServer(ledgerSvc, registrySvc, log).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.HTTPAddr), zap.String("backend", cfg.StoreBackend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(level string) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if err := zapCfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return zapCfg.Build()
}

func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (interfaces.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		store, err := mongostore.Open(ctx, mongostore.Config{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			store.Close(ctx)
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(context.Background()); err != nil {
				log.Warn("mongo disconnect failed", zap.Error(err))
			}
		}, nil

	case config.BackendPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	default:
		log.Warn("using in-memory store, data will not survive restarts")
		return memory.NewStore(), func() {}, nil
	}
}
