package types

import (
	"crypto/sha256"
	"encoding/json"
	"strings"
)

// ChunkType records which chunker produced a chunk
type ChunkType string

const (
	ChunkStructural ChunkType = "structural"
	ChunkWindow     ChunkType = "window"
)

// Metadata keys written by the chunkers.
const (
	MetaChunkType   = "chunk_type"
	MetaDeclaration = "declaration"
)

// Chunk is a bounded unit of a source file's text, tagged with its language
// and an inclusive 1-based line range. Everything except Embedding is fixed
// once the chunker returns it.
type Chunk struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	FilePath  string         `json:"file_path"`
	Language  Language       `json:"language"`
	StartLine int            `json:"start_line"`
	EndLine   int            `json:"end_line"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding,omitempty"`
}

// Type returns the chunk_type metadata value, or "" when unset.
func (c *Chunk) Type() ChunkType {
	switch v := c.Metadata[MetaChunkType].(type) {
	case ChunkType:
		return v
	case string:
		return ChunkType(v)
	default:
		return ""
	}
}

// TokenCount is the whitespace-delimited word count used as the token budget measure.
func (c *Chunk) TokenCount() int {
	return len(strings.Fields(c.Content))
}

// ContentHash returns the SHA-256 of the chunk content.
func (c *Chunk) ContentHash() [32]byte {
	return sha256.Sum256([]byte(c.Content))
}

// ValidateContent checks if the chunk content is valid
func (c *Chunk) ValidateContent() error {
	if strings.TrimSpace(c.Content) == "" {
		return ErrEmptyContent
	}

	if c.StartLine <= 0 || c.EndLine <= 0 {
		return ErrInvalidLineRange
	}

	if c.StartLine > c.EndLine {
		return ErrInvalidLineRange
	}

	return nil
}

// Validate performs comprehensive validation of the chunk
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return ErrInvalidChunkID
	}

	if err := c.ValidateContent(); err != nil {
		return err
	}

	if !c.Language.Valid() {
		return ErrInvalidLanguage
	}

	switch c.Type() {
	case ChunkStructural, ChunkWindow:
	default:
		return ErrInvalidChunkType
	}

	return nil
}

// UnmarshalJSON fills a nil metadata map so decoded chunks behave like
// freshly built ones.
func (c *Chunk) UnmarshalJSON(data []byte) error {
	type plain Chunk
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	*c = Chunk(p)
	return nil
}
