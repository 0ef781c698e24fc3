// Package config loads docchat settings from defaults, an optional
// docchat.yaml and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends for chunks.
const (
	BackendQdrant = "qdrant"
	BackendMemory = "memory"
)

// Server modes.
const (
	ModeHTTP  = "http"
	ModeStdio = "stdio"
)

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	GitHub    GitHubConfig    `mapstructure:"github"`
}

// ServerConfig holds the HTTP listener and upload settings.
type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	Mode           string `mapstructure:"mode"` // http or stdio
	MCPStateless   bool   `mapstructure:"mcp_stateless"`
	UploadDir      string `mapstructure:"upload_dir"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// DatabaseConfig locates the SQLite metadata database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// StorageConfig selects the chunk store.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
	Collection string `mapstructure:"collection"`
}

// OpenAIConfig holds the embedding and chat model settings.
type OpenAIConfig struct {
	APIKey             string  `mapstructure:"api_key"`
	BaseURL            string  `mapstructure:"base_url"`
	EmbeddingModel     string  `mapstructure:"embedding_model"`
	EmbeddingDimension int     `mapstructure:"embedding_dimension"`
	ChatModel          string  `mapstructure:"chat_model"`
	MaxTokens          int     `mapstructure:"max_tokens"`
	Temperature        float64 `mapstructure:"temperature"`
}

// RedisConfig enables the shared processing lease. An empty Addr keeps leases
// in process.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ChunkingConfig holds the chunk size and overlap in characters.
type ChunkingConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

// RetrievalConfig holds the similarity threshold and source count.
type RetrievalConfig struct {
	Threshold float64 `mapstructure:"threshold"`
	TopK      int     `mapstructure:"top_k"`
}

// IngestConfig tunes document processing.
type IngestConfig struct {
	BatchSize      int           `mapstructure:"batch_size"`
	Concurrency    int           `mapstructure:"concurrency"`
	DocConcurrency int           `mapstructure:"doc_concurrency"`
	LeaseTTL       time.Duration `mapstructure:"lease_ttl"`
}

// GitHubConfig holds the optional API token for imports.
type GitHubConfig struct {
	Token string `mapstructure:"token"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", ModeHTTP)
	v.SetDefault("server.mcp_stateless", false)
	v.SetDefault("server.upload_dir", "./data/uploads")
	v.SetDefault("server.max_upload_bytes", 20<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("database.path", "./data/docchat.db")

	v.SetDefault("storage.backend", BackendQdrant)

	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.api_key", "")
	v.SetDefault("qdrant.use_tls", false)
	v.SetDefault("qdrant.collection", "chunks")

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("openai.embedding_dimension", 1536)
	v.SetDefault("openai.chat_model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 16000)
	v.SetDefault("openai.temperature", 0.2)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("chunking.size", 1000)
	v.SetDefault("chunking.overlap", 200)

	v.SetDefault("retrieval.threshold", 0.5)
	v.SetDefault("retrieval.top_k", 5)

	v.SetDefault("ingest.batch_size", 32)
	v.SetDefault("ingest.concurrency", 4)
	v.SetDefault("ingest.doc_concurrency", 4)
	v.SetDefault("ingest.lease_ttl", 10*time.Minute)

	v.SetDefault("github.token", "")
}

// Load reads configuration. With an empty path, docchat.yaml is looked up in
// the working directory and ./config; a missing file is not an error.
// Environment variables override file values: qdrant.host is QDRANT_HOST.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("docchat")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	var errs []error
	if c.Chunking.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunking.size must be > 0, got %d", c.Chunking.Size))
	}
	if c.Chunking.Overlap < 0 {
		errs = append(errs, fmt.Errorf("chunking.overlap must be >= 0, got %d", c.Chunking.Overlap))
	}
	if c.Retrieval.Threshold < 0 || c.Retrieval.Threshold > 1 {
		errs = append(errs, fmt.Errorf("retrieval.threshold must be within [0,1], got %g", c.Retrieval.Threshold))
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.top_k must be > 0, got %d", c.Retrieval.TopK))
	}
	if c.OpenAI.EmbeddingDimension <= 0 {
		errs = append(errs, fmt.Errorf("openai.embedding_dimension must be > 0, got %d", c.OpenAI.EmbeddingDimension))
	}
	switch c.Storage.Backend {
	case BackendQdrant, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be %q or %q, got %q", BackendQdrant, BackendMemory, c.Storage.Backend))
	}
	switch c.Server.Mode {
	case ModeHTTP, ModeStdio:
	default:
		errs = append(errs, fmt.Errorf("server.mode must be %q or %q, got %q", ModeHTTP, ModeStdio, c.Server.Mode))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// NewLogger builds the slog logger described by c, writing to w.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
