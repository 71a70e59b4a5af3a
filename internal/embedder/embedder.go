package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"

	"github.com/viterin/vek/vek32"
)

// Common errors
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrProviderFailed      = errors.New("embedding provider failed")
	ErrUnsupportedProvider = errors.New("unsupported embedding provider")
	ErrBatchTooLarge       = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled   = errors.New("no embedding provider configured")
)

// EncodeOptions are passed through to the model on every encode call.
type EncodeOptions struct {
	BatchSize    int  // texts per model request, provider maximum applies
	ShowProgress bool // log each finished batch at info level
	Normalize    bool // scale vectors to unit length
}

// Model turns a batch of texts into one vector per text, in order.
type Model interface {
	Encode(ctx context.Context, texts []string, opts EncodeOptions) ([][]float32, error)

	// Dimension returns the vector length produced by the model
	Dimension() int

	// Name identifies the provider and model, e.g. "openai/text-embedding-3-small"
	Name() string

	// Close releases any resources held by the model
	Close() error
}

// ComputeHash computes SHA-256 hash of text for caching
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// NormalizeVector scales v to unit length in place. Zero vectors are left alone.
func NormalizeVector(v []float32) {
	if len(v) == 0 {
		return
	}
	norm := math.Sqrt(float64(vek32.Dot(v, v)))
	if norm == 0 {
		return
	}
	vek32.MulNumber_Inplace(v, float32(1/norm))
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
