// Command devserver runs the in-memory development backend so the
// transaction dialogs can be exercised without the production server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"konterku/engine/internal/config"
	"konterku/engine/internal/devbackend"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()
	if err := validateDevConfig(cfg); err != nil {
		logger.Fatal("invalid dev server configuration", zap.Error(err))
	}

	backend := devbackend.New(cfg.DevAuthSecret, cfg.DevTokenTTL, cfg.DevSeedAdminPass, logger)

	server := &http.Server{
		Addr:              cfg.DevServerAddress(),
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("dev backend listening", zap.String("addr", cfg.DevServerAddress()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func validateDevConfig(cfg config.Config) error {
	if len(cfg.DevAuthSecret) < 16 {
		return fmt.Errorf("DEV_AUTH_SECRET must be set and at least 16 characters")
	}
	return nil
}
