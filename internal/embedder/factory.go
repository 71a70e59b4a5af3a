package embedder

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config holds embedder configuration
type Config struct {
	Provider     string // local, openai, jina, ollama; empty auto-detects
	Model        string // overrides the provider default
	Endpoint     string // overrides the provider URL
	Dimension    int    // overrides the provider dimension
	OpenAIAPIKey string
	JinaAPIKey   string
	Timeout      time.Duration
	Logger       *slog.Logger
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultHTTPTimeout
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// New creates a model from configuration
func New(cfg Config) (Model, error) {
	switch provider := DetectProvider(cfg); provider {
	case ProviderLocal:
		return NewLocalModel(cfg), nil
	case ProviderOpenAI:
		return NewOpenAIModel(cfg)
	case ProviderJina:
		return NewJinaModel(cfg)
	case ProviderOllama:
		return NewOllamaModel(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

// DetectProvider returns the provider New would use.
// Priority:
//  1. cfg.Provider when set
//  2. jina when a Jina key is present
//  3. openai when an OpenAI key is present
//  4. local
func DetectProvider(cfg Config) string {
	if cfg.Provider != "" {
		return strings.ToLower(strings.TrimSpace(cfg.Provider))
	}
	if cfg.JinaAPIKey != "" {
		return ProviderJina
	}
	if cfg.OpenAIAPIKey != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}
