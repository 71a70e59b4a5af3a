package chunker

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/dshills/coldstart/pkg/types"
)

const (
	// DefaultMaxTokens is the nominal token budget per chunk
	DefaultMaxTokens = 200
	// DefaultOverlap is the token overlap between adjacent windows
	DefaultOverlap = 20
)

// ErrInvalidConfig is returned when chunk limits are unusable
var ErrInvalidConfig = errors.New("invalid chunker config")

// Config holds the token budgets used for chunking.
type Config struct {
	MaxTokens int
	Overlap   int
}

// DefaultConfig returns the default token budgets.
func DefaultConfig() Config {
	return Config{MaxTokens: DefaultMaxTokens, Overlap: DefaultOverlap}
}

// Validate checks the budgets. Overlap must stay below MaxTokens.
func (c Config) Validate() error {
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: max tokens must be positive, got %d", ErrInvalidConfig, c.MaxTokens)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap must be non-negative, got %d", ErrInvalidConfig, c.Overlap)
	}
	if c.Overlap >= c.MaxTokens {
		return fmt.Errorf("%w: overlap %d must be less than max tokens %d", ErrInvalidConfig, c.Overlap, c.MaxTokens)
	}
	return nil
}

// Option configures a Chunker
type Option func(*Chunker)

// WithLogger sets the logger used for skipped files.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chunker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPolicies replaces the declaration policies. Languages without a
// policy fall back to window chunking.
func WithPolicies(policies ...DeclarationPolicy) Option {
	return func(c *Chunker) {
		c.policies = policyTable(policies)
	}
}

// Chunker splits files into structural or window chunks. It holds no
// mutable state and is safe for concurrent use.
type Chunker struct {
	cfg      Config
	logger   *slog.Logger
	policies map[types.Language]DeclarationPolicy
}

// New creates a Chunker. A zero MaxTokens takes the default.
func New(cfg Config, opts ...Option) (*Chunker, error) {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Chunker{
		cfg:      cfg,
		logger:   slog.Default(),
		policies: policyTable(DefaultPolicies()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the budgets in effect.
func (c *Chunker) Config() Config { return c.cfg }

// WithLimits returns a copy of c using different budgets.
func (c *Chunker) WithLimits(maxTokens, overlap int) (*Chunker, error) {
	cfg := Config{MaxTokens: maxTokens, Overlap: overlap}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clone := *c
	clone.cfg = cfg
	return &clone, nil
}

// ChunkFile reads path and returns its chunks in file order. Missing or
// unreadable files are logged and yield no chunks.
func (c *Chunker) ChunkFile(path string) []*types.Chunk {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn("file not found", "path", path)
		return nil
	}
	if err != nil {
		c.logger.Error("failed to stat file", "path", path, "error", err)
		return nil
	}
	if info.IsDir() {
		c.logger.Warn("path is a directory", "path", path)
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		c.logger.Error("failed to read file", "path", path, "error", err)
		return nil
	}

	return c.ChunkContent(path, decodeText(data))
}

// ChunkContent chunks already-loaded text as if it were read from path.
// The path only drives language detection and IDs.
func (c *Chunker) ChunkContent(path, content string) []*types.Chunk {
	lang := ClassifyPath(path)

	var chunks []*types.Chunk
	if policy, ok := c.policyFor(lang); ok {
		chunks = structuralChunks(content, lang, policy, c.cfg.MaxTokens)
	}
	if len(chunks) == 0 {
		chunks = windowChunks(content, lang, c.cfg.MaxTokens, c.cfg.Overlap)
	}

	for _, ch := range chunks {
		ch.FilePath = path
		ch.ID = ChunkID(path, ch.StartLine, ch.Content)
	}

	return chunks
}

func (c *Chunker) policyFor(lang types.Language) (DeclarationPolicy, bool) {
	if !lang.IsStructural() {
		return nil, false
	}
	p, ok := c.policies[lang]
	return p, ok
}
