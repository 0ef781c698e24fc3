// Package main provides the docchat server entry point: the HTTP chat API with
// MCP at /mcp, or the MCP server alone over stdio.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bull/docchat/internal/api"
	"github.com/bull/docchat/internal/app"
	"github.com/bull/docchat/internal/config"
	mcpserver "github.com/bull/docchat/internal/mcp"
)

var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a docchat.yaml config file")
	flag.Parse()

	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Stdout carries the MCP protocol in stdio mode, so logs always go to stderr.
	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer a.Close()

	server := mcpserver.NewServer(&mcpserver.Config{
		Documents: a.Store,
		Chunks:    a.Chunks,
		Embedder:  a.Embedder,
		Answerer:  a.Coordinator,
		Processor: a.Pipeline,
		Version:   version,
	})

	if cfg.Server.Mode == config.ModeStdio {
		logger.Info("Starting docchat MCP server (stdio mode)", "version", version)
		if err := server.Run(ctx); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	e := api.New(api.Config{
		Documents:      a.Store,
		Conversations:  a.Store,
		Pipeline:       a.Pipeline,
		Uploads:        a.Files,
		Chat:           a.Coordinator,
		Health:         a.Health,
		Metrics:        a.Metrics,
		MCP:            mcpserver.NewHTTPHandler(server, cfg.Server.MCPStateless),
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Logger:         logger.With("component", "api"),
	})

	go func() {
		logger.Info("Starting HTTP server", "addr", cfg.Server.Addr, "version", version)
		if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
