// Package backend selects and wires a transaction store implementation
// from configuration. The HTTP server and workers only see the
// services.TransactionStore port.
package backend

import (
	"fmt"
	"log/slog"

	"paytrack/internal/amqp"
	"paytrack/internal/config"
	"paytrack/internal/services"
	"paytrack/internal/storage"
	"paytrack/internal/storage/memory"
)

// Type represents the kind of persistence backing the store
type Type string

const (
	SQLiteBackend Type = "sqlite"
	MemoryBackend Type = "memory"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is known
func (t Type) IsValid() bool {
	switch t {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// CleanupFunc releases backend resources on shutdown
type CleanupFunc func() error

// Result contains the wired store, the optional event client, and a
// cleanup function. Events is nil when AMQP is not configured.
type Result struct {
	Store   services.TransactionStore
	Events  *amqp.Client
	Cleanup CleanupFunc
}

// Build creates the store named by cfg.DataBackend. AMQP setup is
// best-effort: a broker that cannot be reached logs a warning and the
// application runs without event publishing.
func Build(cfg *config.Config, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	backendType := Type(cfg.DataBackend)
	if !backendType.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", cfg.DataBackend)
	}

	var events *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
			events = client
		}
	}

	switch backendType {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			if events != nil {
				events.Close()
			}
			return nil, fmt.Errorf("initialize sqlite repository: %w", err)
		}
		logger.Info("Initialized SQLite backend",
			"db_path", cfg.SQLiteDBPath,
			"amqp_enabled", events != nil)
		return &Result{
			Store:  repo,
			Events: events,
			Cleanup: func() error {
				if events != nil {
					events.Close()
				}
				return repo.Close()
			},
		}, nil

	case MemoryBackend:
		logger.Info("Initialized memory backend", "amqp_enabled", events != nil)
		return &Result{
			Store:  memory.New(),
			Events: events,
			Cleanup: func() error {
				if events != nil {
					events.Close()
				}
				return nil
			},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", backendType)
	}
}
