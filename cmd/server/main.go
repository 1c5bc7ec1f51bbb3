// Package main is the entry point for the authcore HTTP server.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (internal/config: env vars + optional .env file)
// 2. Create dependencies (logger)
// 3. Start the application (internal/server)
//
// All actual logic lives in imported packages.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/authcore/internal/config"
	"github.com/sakif/authcore/internal/repository/sqlstore"
	"github.com/sakif/authcore/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// Log levels (from least to most severe): Debug → Info → Warn → Error.
	// LOG_LEVEL picks the minimum; the default is info.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// === 3. DATABASE DIRECTORY ===
	// A SQLite file DSN needs its directory to exist (like `mkdir -p`).
	if cfg.DBDriver == sqlstore.DriverSQLite && cfg.DBDSN != ":memory:" {
		dbDir := filepath.Dir(cfg.DBDSN)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	if cfg.GitHub.ClientID == "" && cfg.Google.ClientID == "" {
		logger.Warn("no OAuth provider configured; only password login is available")
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
