/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave management server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse flags with env fallback
  2. Initialize the store (SQLite or PostgreSQL)
  3. Wire domain services: registry, ledger, reconciler, lifecycle, facade
  4. Configure HTTP router
  5. Start server with graceful shutdown

CONFIGURATION:
  Flags take precedence over environment variables:
  -port / PORT                 HTTP server port (default: 8080)
  -driver / DB_DRIVER          "sqlite" or "postgres" (default: sqlite)
  -db / DB_PATH                SQLite database path (default: leave.db)
                               Use ":memory:" for an in-memory database
  -database-url / DATABASE_URL PostgreSQL connection string
  -seed                        Seed the default leave type catalog on
                               first start (no-op if types exist)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/leave.db"

  # Run against PostgreSQL
  DATABASE_URL=postgres://localhost/leave ./server -driver=postgres

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite, store/postgres: Database implementations
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/httplog/v3"
	"github.com/joho/godotenv"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/postgres"
	"github.com/warp/leave-engine/store/sqlite"
)

func main() {
	// A missing .env is fine; real deployments set the environment.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	driver := flag.String("driver", envStr("DB_DRIVER", "sqlite"), "database driver: sqlite or postgres")
	dbPath := flag.String("db", envStr("DB_PATH", "leave.db"), "SQLite database path")
	databaseURL := flag.String("database-url", envStr("DATABASE_URL", ""), "PostgreSQL connection string")
	seed := flag.Bool("seed", false, "seed default leave types into an empty store")
	flag.Parse()

	logFormat := httplog.SchemaECS.Concise(false)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "leave-engine"),
	)

	store, closeStore, err := openStore(*driver, *dbPath, *databaseURL)
	if err != nil {
		logger.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Domain wiring
	registry := leave.NewRegistry(store)
	ledger := leave.NewLedger(store, store, store)
	reconciler := leave.NewReconciler(store)
	dispatcher := &leave.LogDispatcher{Logger: logger}
	lifecycle := leave.NewService(store, ledger, reconciler, dispatcher)
	facade := leave.NewFacade(store, ledger)

	if *seed {
		if err := seedPresets(context.Background(), registry, logger); err != nil {
			logger.Error("failed to seed leave types", "error", err)
			os.Exit(1)
		}
	}

	handler := api.NewHandler(store, registry, lifecycle, facade)
	router := api.NewRouter(handler, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", *port, "driver", *driver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func openStore(driver, dbPath, databaseURL string) (leave.Store, func(), error) {
	switch driver {
	case "sqlite":
		s, err := sqlite.New(dbPath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "postgres":
		if databaseURL == "" {
			return nil, nil, fmt.Errorf("postgres driver requires DATABASE_URL")
		}
		s, err := postgres.Connect(context.Background(), databaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown driver %q (want sqlite or postgres)", driver)
	}
}

// seedPresets creates the default leave type catalog. Skipped when the
// store already holds types, so restarting with -seed is safe.
func seedPresets(ctx context.Context, registry *leave.Registry, logger *slog.Logger) error {
	existing, err := registry.ListActive(ctx, leave.ScopeFilter{})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Info("store already has leave types, skipping seed", "count", len(existing))
		return nil
	}
	for _, cfg := range leave.DefaultPresets() {
		t, err := registry.CreateType(ctx, cfg)
		if err != nil {
			return fmt.Errorf("seed %s: %w", cfg.Name, err)
		}
		logger.Info("seeded leave type", "id", t.ID, "name", t.Name)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
