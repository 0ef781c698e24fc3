package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, 0.5, cfg.Retrieval.Threshold)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, "localhost", cfg.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, BackendQdrant, cfg.Storage.Backend)
	assert.Equal(t, ModeHTTP, cfg.Server.Mode)
	assert.Equal(t, 10*time.Minute, cfg.Ingest.LeaseTTL)
	assert.Equal(t, int64(20<<20), cfg.Server.MaxUploadBytes)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  backend: memory
qdrant:
  host: qdrant.internal
chunking:
  size: 800
  overlap: 100
ingest:
  lease_ttl: 2m
`), 0o600))

	t.Setenv("QDRANT_HOST", "qdrant.env")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CHUNKING_SIZE", "600")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, "qdrant.env", cfg.Qdrant.Host, "environment wins over the file")
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, 600, cfg.Chunking.Size)
	assert.Equal(t, 100, cfg.Chunking.Overlap)
	assert.Equal(t, 2*time.Minute, cfg.Ingest.LeaseTTL)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHUNKING_SIZE", "0")
	t.Setenv("RETRIEVAL_THRESHOLD", "1.5")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunking.size")
	assert.Contains(t, err.Error(), "retrieval.threshold")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:    ServerConfig{Mode: ModeHTTP},
			Log:       LogConfig{Level: "info"},
			Database:  DatabaseConfig{Path: "x.db"},
			Storage:   StorageConfig{Backend: BackendMemory},
			OpenAI:    OpenAIConfig{EmbeddingDimension: 16},
			Chunking:  ChunkingConfig{Size: 100, Overlap: 10},
			Retrieval: RetrievalConfig{Threshold: 0.5, TopK: 5},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative overlap", func(c *Config) { c.Chunking.Overlap = -1 }},
		{"threshold below zero", func(c *Config) { c.Retrieval.Threshold = -0.1 }},
		{"zero top k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "pinecone" }},
		{"unknown mode", func(c *Config) { c.Server.Mode = "grpc" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"no database", func(c *Config) { c.Database.Path = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}
