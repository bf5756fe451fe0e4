/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the settlement ledger server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load config (file + env + defaults)
  2. Initialize logger and the selected store backend
  3. Build the settlement engine and domain services
  4. Rebuild the sales-order owner index
  5. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to a YAML config file (optional; env vars and defaults
           apply without it)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store
  4. Exit

EXAMPLES:
  # Defaults: jsonfile backend under ./data, port 8080
  ./server

  # Explicit config file
  ./server -config=./billing.yaml

  # Environment overrides
  BILLING_STORE_BACKEND=sqlite BILLING_SERVER_PORT=3000 ./server

SEE ALSO:
  - api/server.go:   Router configuration
  - config/config.go: Configuration schema
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/openledger/billing-engine/api"
	"github.com/openledger/billing-engine/config"
	"github.com/openledger/billing-engine/ledger"
	"github.com/openledger/billing-engine/payables"
	"github.com/openledger/billing-engine/receivables"
	"github.com/openledger/billing-engine/store/jsonfile"
	"github.com/openledger/billing-engine/store/memory"
	"github.com/openledger/billing-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	store, closeStore, err := openStore(cfg.Store)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err))
	}
	defer closeStore()

	locks := ledger.NewPairLocker()
	syncer := ledger.NewSynchronizer(store, locks, logger)
	engine := ledger.NewEngine(store, locks, syncer, logger)

	// Legacy invoices without order back-references resolve through
	// the index, so it must be warm before the first sync.
	if err := syncer.RebuildIndex(context.Background()); err != nil {
		logger.Fatal("failed to rebuild sales-order index", zap.Error(err))
	}

	handler := api.NewHandler(
		receivables.NewService(engine, syncer, logger),
		payables.NewService(engine, logger),
		logger,
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Server.Addr()),
			zap.String("store", cfg.Store.Backend))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// openStore builds the configured backend and returns it with its
// cleanup function.
func openStore(cfg config.StoreConfig) (ledger.Store, func(), error) {
	switch cfg.Backend {
	case "jsonfile":
		s, err := jsonfile.New(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case "sqlite":
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "memory":
		return memory.NewTx(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
