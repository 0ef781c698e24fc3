// Package main provides the docchat CLI for managing documents and asking
// questions from the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/docchat/internal/app"
	"github.com/bull/docchat/internal/config"
)

var (
	configPath string
	ownerID    string
)

var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "Chat with your documents",
	Long: `CLI for the docchat document store: upload and process documents,
import markdown from GitHub, and ask questions answered from your documents.

Configuration is read from docchat.yaml (or --config) and the environment:
  OPENAI_API_KEY   OpenAI API key for embeddings and chat (required)
  QDRANT_HOST      Qdrant hostname (default: localhost)
  QDRANT_PORT      Qdrant gRPC port (default: 6334)
  REDIS_ADDR       Redis address for shared processing leases (optional)
  GITHUB_TOKEN     GitHub token for higher rate limits (optional)`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a docchat.yaml config file")
	rootCmd.PersistentFlags().StringVar(&ownerID, "owner", "local", "owner whose documents and conversations are used")

	rootCmd.AddCommand(addCmd, processCmd, importCmd, documentsCmd, deleteCmd, askCmd, chunkCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// openApp loads configuration and wires the application. Logs go to stderr so
// command output stays clean.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, cfg.Log.NewLogger(os.Stderr))
	if err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	return a, nil
}
