package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/reportsheets/internal/backend"
	"github.com/JonMunkholm/reportsheets/internal/config"
	"github.com/JonMunkholm/reportsheets/internal/core"
	"github.com/JonMunkholm/reportsheets/internal/logging"
	"github.com/JonMunkholm/reportsheets/internal/store"
	"github.com/JonMunkholm/reportsheets/internal/validators"
	"github.com/JonMunkholm/reportsheets/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	client := backend.New(cfg.Backend.URL, cfg.Backend.Token, cfg.Backend.Timeout, logger)

	// Templates and validators come from the backend unless a database is
	// configured. Records always go through the backend.
	var (
		templates core.TemplateSource = client
		source    validators.Source   = client
		ready     web.ReadinessChecker
	)
	if cfg.Database.Enabled() {
		if cfg.Database.AutoMigrate {
			if err := store.Migrate(cfg.Database.URL, logger); err != nil {
				logger.Error("failed to migrate database", "error", err)
				os.Exit(1)
			}
		}

		pool, err := store.Connect(ctx, cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		st := store.New(pool, logger)
		templates, source = st, st
		ready = store.NewReadinessChecker(pool)
	}

	registry := validators.NewRegistry(source, logger,
		validators.WithPageSize(cfg.Backend.ValidatorPageSize),
		validators.WithMaxPages(cfg.Backend.ValidatorMaxPages),
	)

	service := core.NewService(templates, client, registry, core.Options{
		MaxRows:           cfg.Codec.MaxRows,
		Author:            cfg.Codec.Author,
		Timeout:           cfg.Codec.Timeout,
		MaxConcurrent:     cfg.Codec.MaxConcurrent,
		MaxWaitTime:       cfg.Codec.MaxWaitTime,
		TemplateCacheSize: cfg.Cache.TemplateSize,
		TemplateCacheTTL:  cfg.Cache.TemplateTTL,
		ErrorLogSize:      cfg.Cache.ErrorLogSize,
		ErrorLogTTL:       cfg.Cache.ErrorLogTTL,
	}, logger)

	// Warm the registry; a failure here is retried on first use.
	go registry.Load(ctx)

	server := web.NewServer(service, cfg, ready, logger)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.Limiter().Status(); status.Active > 0 {
			logger.Info("waiting for workbook jobs to complete", "active", status.Active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				logger.Warn("workbook jobs did not complete in time", "error", err)
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
