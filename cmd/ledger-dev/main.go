// Command ledger-dev serves an in-memory ledger over the REST routes the
// budget client speaks, for local development. It is seeded with an
// administrator (admin@example.com) and a user (demo@example.com), both with
// the password "password". State is lost on exit.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budget/internal/cli"
	"budget/internal/ledger/ledgertest"
	"budget/internal/ledger/memory"
	"budget/internal/middleware/ratelimit"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	limiter := ratelimit.NewLimiter(ratelimit.DefaultConfig(), logger)
	defer limiter.Stop()

	api := ledgertest.NewHandler(memory.NewSeeded(), logger)
	mux := http.NewServeMux()
	mux.Handle("POST /api/login", limiter.Middleware(api))
	mux.Handle("POST /api/register", limiter.Middleware(api))
	mux.Handle("/", api)

	srv := &http.Server{
		Addr:           ":" + cfg.DevLedgerPort,
		Handler:        mux,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting development ledger", "port", cfg.DevLedgerPort)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.DevLedgerPort)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Development ledger stopped")
}
