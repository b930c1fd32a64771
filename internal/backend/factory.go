// Package backend wires the configured persistence layer and the optional
// event publisher into the pieces the server needs.
package backend

import (
	"fmt"
	"log/slog"

	"bolso/internal/amqp"
	"bolso/internal/config"
	"bolso/internal/ledger"
	"bolso/internal/storage"
)

// Result carries an initialized backend. Events is nil when no AMQP URL is
// configured; callers treat publishing as best effort either way.
type Result struct {
	Store   ledger.Store
	Events  ledger.EventPublisher
	Cleanup func()
}

// Create builds the store selected by DATA_BACKEND plus an optional AMQP
// publisher. A broken AMQP connection degrades to no publisher instead of
// failing startup.
func Create(cfg *config.Config, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	result, err := createStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without event publishing", "error", err)
		} else {
			logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
			result.Events = amqpClient
			storeCleanup := result.Cleanup
			result.Cleanup = func() {
				if err := amqpClient.Close(); err != nil {
					logger.Warn("Failed to close AMQP client", "error", err)
				}
				if storeCleanup != nil {
					storeCleanup()
				}
			}
		}
	}

	return result, nil
}

func createStore(cfg *config.Config, logger *slog.Logger) (*Result, error) {
	switch cfg.DataBackend {
	case "sqlite":
		store, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize SQLite store: %w", err)
		}
		logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return &Result{
			Store: store,
			Cleanup: func() {
				if err := store.Close(); err != nil {
					logger.Warn("Failed to close SQLite store", "error", err)
				}
			},
		}, nil

	case "postgres":
		store, err := storage.NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("initialize Postgres store: %w", err)
		}
		logger.Info("Initialized Postgres backend")
		return &Result{
			Store: store,
			Cleanup: func() {
				if err := store.Close(); err != nil {
					logger.Warn("Failed to close Postgres store", "error", err)
				}
			},
		}, nil

	case "memory":
		logger.Info("Initialized in-memory backend")
		return &Result{Store: storage.NewMemoryStore()}, nil

	default:
		return nil, fmt.Errorf("unsupported data backend: %s", cfg.DataBackend)
	}
}
