// Package main provides the HTTP front end: an upload form that returns the converted CSV.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"logcsv/internal/config"
	"logcsv/internal/logger"
	"logcsv/internal/server"
)

const defaultConfigPath = "configs/converter.yaml"

func main() {
	configPath := flag.String("config", "", "Path to YAML config (default "+defaultConfigPath+" if present)")
	addr := flag.String("addr", "", "Listen address (default from config)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	if *logLevel != "" {
		log.SetLevel(*logLevel)
	}

	srv, err := server.New(cfg, log)
	if err != nil {
		log.Error("❌ Failed to create server", "error", err)
		os.Exit(1)
	}

	log.Info("🚀 Starting converter server", "addr", cfg.Server.Addr, "config", cfg.String())

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.ListenAndServe(cfg.Server.Addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("Received signal, shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Error("❌ Server stopped", "error", err)
			os.Exit(1)
		}

		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("✨ Server exited gracefully")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadConfig(path)
	}

	if _, err := os.Stat(defaultConfigPath); err == nil {
		return config.LoadConfig(defaultConfigPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat %s: %w", defaultConfigPath, err)
	}

	return config.Default(), nil
}
