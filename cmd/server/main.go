/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the shift accounting server.

STARTUP SEQUENCE:
  1. Load .env (if present) and environment configuration
  2. Parse command-line flags (override env)
  3. Open the SQLite store
  4. Rebuild aggregates from the ledger (recovery after crash/restart)
  5. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, wait up to 30s for
  active requests, close the database.
*/
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/autosum/shift-engine/accounting"
	"github.com/autosum/shift-engine/api"
	"github.com/autosum/shift-engine/config"
	"github.com/autosum/shift-engine/store/sqlite"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// .env is optional; real deployments may set the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Info("loaded .env")
	}

	cfg := config.Load()
	port := flag.String("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()
	cfg.Port = *port
	cfg.DBPath = *dbPath

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Error("failed to open database", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer store.Close()

	svc := accounting.NewService(store)

	// Reconcile aggregates with the ledger before serving anything.
	groups, err := svc.Rebuild(context.Background())
	if err != nil {
		log.Error("startup rebuild failed", "error", err)
		os.Exit(1)
	}
	log.Info("aggregates rebuilt from ledger", "groups", groups)

	handler := api.NewHandler(svc, cfg.IsAdmin, log)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", "addr", server.Addr, "db", cfg.DBPath, "admins", len(cfg.AdminIDs))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
