package storage

import (
	"context"
	"time"

	"github.com/dshills/coldstart/pkg/types"
)

// Store persists chunk collections and answers vector and keyword queries
type Store interface {
	// Collection operations
	EnsureCollection(ctx context.Context, name, rootPath string) (*Collection, error)
	GetCollection(ctx context.Context, name string) (*Collection, error)
	ListCollections(ctx context.Context) ([]*Collection, error)
	TouchCollection(ctx context.Context, collectionID int64, indexedAt time.Time) error

	// Chunk operations
	ReplaceFileChunks(ctx context.Context, collectionID int64, filePath string, chunks []*Chunk) error
	DeleteFile(ctx context.Context, collectionID int64, filePath string) (int, error)
	GetChunk(ctx context.Context, collectionID int64, chunkID string) (*Chunk, error)
	ListFileChunks(ctx context.Context, collectionID int64, filePath string) ([]*Chunk, error)
	ListFiles(ctx context.Context, collectionID int64) ([]string, error)

	// Search operations
	SearchVector(ctx context.Context, collectionID int64, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error)
	SearchText(ctx context.Context, collectionID int64, query string, limit int, filters *SearchFilters) ([]TextResult, error)

	// Status operations
	Status(ctx context.Context, collectionID int64) (*CollectionStatus, error)

	Close() error
}

// Collection is a named set of indexed chunks
type Collection struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	RootPath      string    `json:"root_path"`
	TotalFiles    int       `json:"total_files"`
	TotalChunks   int       `json:"total_chunks"`
	LastIndexedAt time.Time `json:"last_indexed_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Chunk is the stored form of a types.Chunk
type Chunk struct {
	RowID        int64
	CollectionID int64
	ChunkID      string
	FilePath     string
	Language     string
	ChunkType    string
	StartLine    int
	EndLine      int
	Content      string
	ContentHash  [32]byte
	Metadata     map[string]any
	Vector       []float32 // nil when the chunk has no embedding
	Model        string
	CreatedAt    time.Time
}

// SearchFilters contains filters for narrowing search results
type SearchFilters struct {
	Languages    []string // Filter by language tag
	ChunkTypes   []string // structural, window
	FilePattern  string   // Glob pattern for file paths
	MinRelevance float64  // Minimum relevance score
}

// VectorResult represents a result from vector similarity search
type VectorResult struct {
	ChunkID         string
	SimilarityScore float64
}

// TextResult represents a result from full-text search
type TextResult struct {
	ChunkID   string
	BM25Score float64
}

// CollectionStatus contains statistics about a collection
type CollectionStatus struct {
	Collection      *Collection    `json:"collection"`
	FilesCount      int            `json:"files"`
	ChunksCount     int            `json:"chunks"`
	EmbeddingsCount int            `json:"embeddings"`
	ByLanguage      map[string]int `json:"by_language"`
	IndexSizeMB     float64        `json:"index_size_mb"`
	Health          HealthStatus   `json:"health"`
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible  bool `json:"database_accessible"`
	EmbeddingsAvailable bool `json:"embeddings_available"`
	FTSIndexesBuilt     bool `json:"fts_indexes_built"`
}

// FromTypesChunk converts a chunk into its stored form
func FromTypesChunk(c *types.Chunk, collectionID int64, model string) *Chunk {
	sc := &Chunk{
		CollectionID: collectionID,
		ChunkID:      c.ID,
		FilePath:     c.FilePath,
		Language:     string(c.Language),
		ChunkType:    string(c.Type()),
		StartLine:    c.StartLine,
		EndLine:      c.EndLine,
		Content:      c.Content,
		ContentHash:  c.ContentHash(),
		Metadata:     c.Metadata,
	}
	if len(c.Embedding) > 0 {
		sc.Vector = c.Embedding
		sc.Model = model
	}
	return sc
}

// ToTypesChunk converts a stored chunk back to a types.Chunk
func (c *Chunk) ToTypesChunk() *types.Chunk {
	meta := make(map[string]any, len(c.Metadata)+1)
	for k, v := range c.Metadata {
		meta[k] = v
	}
	meta[types.MetaChunkType] = c.ChunkType

	return &types.Chunk{
		ID:        c.ChunkID,
		Content:   c.Content,
		FilePath:  c.FilePath,
		Language:  types.Language(c.Language),
		StartLine: c.StartLine,
		EndLine:   c.EndLine,
		Metadata:  meta,
		Embedding: c.Vector,
	}
}
