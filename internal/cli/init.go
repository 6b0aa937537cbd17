// Package cli provides common CLI initialization utilities shared by the
// finance binaries.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finance/internal/amqp"
	"finance/internal/backend"
	"finance/internal/cache"
	"finance/internal/config"
	applog "finance/internal/log"
	"finance/internal/services"

	"github.com/joho/godotenv"
)

// SetupLogger initializes structured logging for component at the level
// named by LOG_LEVEL, and installs it as the default logger.
func SetupLogger(component string) *slog.Logger {
	level, err := applog.ParseLevel(os.Getenv("LOG_LEVEL"))
	logger := applog.New(applog.Config{
		Level:     level,
		Component: component,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info log level", "error", err)
	}
	return logger.Logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend creates the configured store backend or exits the process.
func InitBackend(ctx context.Context, logger *slog.Logger, cfg *config.Config) *backend.BackendResult {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return res
}

// InitAMQP connects to the broker when AMQP is configured. A failed
// connection is logged and nil is returned so callers run without events.
func InitAMQP(logger *slog.Logger, cfg *config.Config) *amqp.Client {
	if !cfg.AMQPEnabled() {
		logger.Info("AMQP not configured, change events disabled")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without change events", "error", err)
		return nil
	}
	logger.Info("Initialized AMQP client",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)
	return client
}

// Services bundles the application services built on one backend.
type Services struct {
	Transactions *services.TransactionService
	Catalog      *services.CatalogService
	Summary      *services.SummaryService
	Cache        *cache.TransactionCache
}

// Close releases the cache.
func (s *Services) Close() {
	if s.Cache != nil {
		s.Cache.Close()
	}
}

// InitServices wires the services. client may be nil.
func InitServices(logger *slog.Logger, cfg *config.Config, b backend.Backend, client *amqp.Client) *Services {
	var txCache *cache.TransactionCache
	if cfg.CacheMaxItems > 0 {
		c, err := cache.NewTransactionCache(int64(cfg.CacheMaxItems), cfg.CacheTTL)
		if err != nil {
			logger.Warn("Failed to initialize transaction cache, continuing uncached", "error", err)
		} else {
			txCache = c
		}
	}

	// a typed nil *amqp.Client would defeat the nil check in the service
	var publisher services.Publisher
	if client != nil {
		publisher = client
	}

	tx := services.NewTransactionService(b, txCache, publisher)
	return &Services{
		Transactions: tx,
		Catalog:      services.NewCatalogService(b, b, b, tx),
		Summary:      services.NewSummaryService(tx, b, b),
		Cache:        txCache,
	}
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals or when
// parent is done, and a channel that signals when shutdown is complete.
func GracefulShutdown(parent context.Context, logger *slog.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-parent.Done():
			logger.Info("Shutdown requested", "cause", context.Cause(parent))
		}

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
