package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dshills/coldstart/internal/chunker"
	"github.com/dshills/coldstart/internal/embedder"
	"github.com/dshills/coldstart/internal/logging"
)

// EnvConfigFile names the YAML file to load when --config is not given
const EnvConfigFile = "COLDSTART_CONFIG"

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all application configuration
type Config struct {
	// Application
	AppName   string `yaml:"app_name"`
	Debug     bool   `yaml:"debug"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// API
	APIHost      string   `yaml:"api_host"`
	APIPort      int      `yaml:"api_port"`
	CORSOrigins  []string `yaml:"cors_origins"`
	// AllowedRoots are the directories HTTP clients may name as paths;
	// empty allows inline content only
	AllowedRoots []string `yaml:"allowed_roots"`

	// Store
	StorePath      string `yaml:"store_path"`
	CollectionName string `yaml:"collection_name"`

	// Embeddings
	EmbeddingProvider  string `yaml:"embedding_provider"`
	EmbeddingModel     string `yaml:"embedding_model"`
	EmbeddingEndpoint  string `yaml:"embedding_endpoint"`
	EmbeddingDimension int    `yaml:"embedding_dimension"`
	EmbeddingCacheSize int    `yaml:"embedding_cache_size"`
	EmbeddingBatchSize int    `yaml:"embedding_batch_size"`
	OpenAIAPIKey       string `yaml:"openai_api_key"`
	JinaAPIKey         string `yaml:"jina_api_key"`

	// Chunking and indexing
	MaxTokens      int      `yaml:"max_tokens"`
	ChunkOverlap   int      `yaml:"chunk_overlap"`
	IndexWorkers   int      `yaml:"index_workers"`
	IgnorePatterns []string `yaml:"ignore_patterns"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		AppName:            "coldstart",
		LogLevel:           "info",
		LogFormat:          "text",
		APIHost:            "127.0.0.1",
		APIPort:            8000,
		CORSOrigins:        []string{"*"},
		StorePath:          "./data/coldstart.db",
		CollectionName:     "code_chunks",
		EmbeddingCacheSize: 10000,
		EmbeddingBatchSize: embedder.DefaultBatchSize,
		MaxTokens:          chunker.DefaultMaxTokens,
		ChunkOverlap:       chunker.DefaultOverlap,
	}
}

// Load builds the configuration from, in increasing precedence: defaults,
// the YAML file (configFile, else $COLDSTART_CONFIG), .env in the working
// directory and the process environment. The result is validated.
func Load(configFile string) (*Config, error) {
	return load(configFile, ".env")
}

func load(configFile string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if configFile == "" {
		configFile = os.Getenv(EnvConfigFile)
	}
	if configFile != "" {
		if err := cfg.loadFile(configFile); err != nil {
			return nil, err
		}
	}

	// .env never overrides variables already set
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidConfig, key, v))
				return
			}
			*dst = b
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = splitList(v)
		}
	}

	str("APP_NAME", &c.AppName)
	flag("DEBUG", &c.Debug)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	str("API_HOST", &c.APIHost)
	num("API_PORT", &c.APIPort)
	list("CORS_ORIGINS", &c.CORSOrigins)
	list("ALLOWED_ROOTS", &c.AllowedRoots)

	str("STORE_PATH", &c.StorePath)
	str("COLLECTION_NAME", &c.CollectionName)

	str("EMBEDDING_PROVIDER", &c.EmbeddingProvider)
	str("EMBEDDING_MODEL", &c.EmbeddingModel)
	str("EMBEDDING_ENDPOINT", &c.EmbeddingEndpoint)
	num("EMBEDDING_DIMENSION", &c.EmbeddingDimension)
	num("EMBEDDING_CACHE_SIZE", &c.EmbeddingCacheSize)
	num("EMBEDDING_BATCH_SIZE", &c.EmbeddingBatchSize)
	str("OPENAI_API_KEY", &c.OpenAIAPIKey)
	str("JINA_API_KEY", &c.JinaAPIKey)

	num("MAX_TOKENS", &c.MaxTokens)
	num("CHUNK_OVERLAP", &c.ChunkOverlap)
	num("INDEX_WORKERS", &c.IndexWorkers)
	list("IGNORE_PATTERNS", &c.IgnorePatterns)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the configuration for unusable values
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.APIPort < 1 || c.APIPort > 65535 {
		return fmt.Errorf("%w: api port out of range: %d", ErrInvalidConfig, c.APIPort)
	}
	if strings.TrimSpace(c.StorePath) == "" {
		return fmt.Errorf("%w: store path is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.CollectionName) == "" {
		return fmt.Errorf("%w: collection name is required", ErrInvalidConfig)
	}
	switch embedder.DetectProvider(c.EmbedderConfig(nil)) {
	case embedder.ProviderLocal, embedder.ProviderOpenAI, embedder.ProviderJina, embedder.ProviderOllama:
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidConfig, c.EmbeddingProvider)
	}
	if c.EmbeddingDimension < 0 || c.EmbeddingCacheSize < 0 || c.EmbeddingBatchSize < 0 || c.IndexWorkers < 0 {
		return fmt.Errorf("%w: sizes must not be negative", ErrInvalidConfig)
	}
	if err := c.ChunkerConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Addr is the HTTP listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.APIHost, strconv.Itoa(c.APIPort))
}

// ChunkerConfig returns the chunk budgets
func (c *Config) ChunkerConfig() chunker.Config {
	return chunker.Config{MaxTokens: c.MaxTokens, Overlap: c.ChunkOverlap}
}

// EmbedderConfig returns the settings for embedder.New
func (c *Config) EmbedderConfig(logger *slog.Logger) embedder.Config {
	return embedder.Config{
		Provider:     c.EmbeddingProvider,
		Model:        c.EmbeddingModel,
		Endpoint:     c.EmbeddingEndpoint,
		Dimension:    c.EmbeddingDimension,
		OpenAIAPIKey: c.OpenAIAPIKey,
		JinaAPIKey:   c.JinaAPIKey,
		Timeout:      30 * time.Second,
		Logger:       logger,
	}
}

// EncodeOptions returns the options used for every embedding call
func (c *Config) EncodeOptions() embedder.EncodeOptions {
	return embedder.EncodeOptions{BatchSize: c.EmbeddingBatchSize, Normalize: true, ShowProgress: c.Debug}
}
