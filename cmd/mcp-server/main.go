// Package main provides the stdio MCP entry point for the biomatch server.
// It requires no external services: samples live in memory and reviews in SQLite.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/biomatch-server/internal/config"
	"github.com/biomatch-server/internal/mcp"
)

func main() {
	cfg := config.LoadLiteConfig()
	logger := config.NewLogger(cfg.Logging())

	server, err := mcp.NewServer(cfg, mcp.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	logger.WithField("data_dir", cfg.DataDir).Info("Data directory ready")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Run(ctx); err != nil {
		logger.WithError(err).Error("MCP server failed")
		server.Close()
		os.Exit(1)
	}
}
