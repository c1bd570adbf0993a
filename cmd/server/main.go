// Package main is the entry point for the HDL AI Proteus server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/noejunior792/hdl-ai-proteus/internal/config"
	"github.com/noejunior792/hdl-ai-proteus/internal/security"
	"github.com/noejunior792/hdl-ai-proteus/internal/ui"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: search ./, ./configs, /etc/hdl-ai-proteus)")
	flag.Parse()

	// =========================================================================
	// 1. Load configuration (Singleton)
	// =========================================================================
	var (
		cfg *config.Configuration
		err error
	)
	if *configPath != "" {
		cfg, err = config.GetConfigWithPath(*configPath)
	} else {
		cfg, err = config.GetConfig()
	}
	if err != nil {
		msg := "failed to load configuration"
		if config.IsValidationError(err) {
			msg = "invalid configuration"
		}
		ui.PrintFatal(msg, err)
		os.Exit(1)
	}

	// =========================================================================
	// 2. Setup structured logger with key redaction
	// =========================================================================
	logger := setupLogger(cfg.Logging, os.Stdout)
	ui.PrintBanner(version)

	logger.Info("configuration loaded",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("default_provider", cfg.Providers.DefaultKind),
		slog.String("cache", cfg.Cache.Backend),
		slog.String("storage", cfg.Export.Storage.Type),
		slog.Bool("events", cfg.Events.Enabled),
	)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// =========================================================================
	// 3. Wire providers, pipeline and HTTP surface
	// =========================================================================
	app, err := newApplication(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", slog.String("error", err.Error()))
		ui.PrintFatal("failed to initialize", err)
		os.Exit(1)
	}
	defer app.Close()

	ui.PrintToolchains(app.compiler.Availability())

	// =========================================================================
	// 4. Start HTTP server with graceful shutdown
	// =========================================================================
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.router,
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("address", addr))
		ui.PrintStartupInfo(cfg.Server.Host, cfg.Server.Port, cfg.Providers.DefaultKind, app.pooledKeys)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// =========================================================================
	// 5. Graceful shutdown on SIGTERM/SIGINT
	// =========================================================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", slog.String("error", err.Error()))
		app.Close()
		os.Exit(1)
	}
	ui.PrintShutdown()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
		app.Close()
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
	ui.PrintGoodbye()
}

// setupLogger creates the structured logger described by cfg, wrapped so
// API keys never reach the output, and installs it as the default.
func setupLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var inner slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		inner = slog.NewTextHandler(w, opts)
	} else {
		inner = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(security.NewRedactedHandler(inner))
	slog.SetDefault(logger)
	return logger
}
