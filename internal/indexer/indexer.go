package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/coldstart/internal/chunker"
	"github.com/dshills/coldstart/internal/embedder"
	"github.com/dshills/coldstart/internal/storage"
	"github.com/dshills/coldstart/pkg/types"
)

var (
	// ErrIndexInProgress is returned when another index run holds the lock
	ErrIndexInProgress = errors.New("indexing already in progress")
	// ErrNoPaths is returned for a request without paths
	ErrNoPaths = errors.New("no paths to index")
)

// Indexer coordinates the indexing pipeline: discover -> chunk -> embed -> store
type Indexer struct {
	chunker *chunker.Chunker
	cache   *embedder.Cache
	store   storage.Store
	logger  *slog.Logger

	workers    int
	encodeOpts embedder.EncodeOptions
	onIndexed  []func(collection string)

	lock IndexLock
}

// Option configures an Indexer
type Option func(*Indexer)

// WithWorkers sets the number of files processed concurrently
func WithWorkers(n int) Option {
	return func(idx *Indexer) {
		if n > 0 {
			idx.workers = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Indexer) {
		if logger != nil {
			idx.logger = logger
		}
	}
}

// WithEncodeOptions sets the options passed to the embedding cache
func WithEncodeOptions(opts embedder.EncodeOptions) Option {
	return func(idx *Indexer) { idx.encodeOpts = opts }
}

// OnIndexed registers a callback run after a collection changes
func OnIndexed(fn func(collection string)) Option {
	return func(idx *Indexer) { idx.onIndexed = append(idx.onIndexed, fn) }
}

// New creates an Indexer
func New(ch *chunker.Chunker, cache *embedder.Cache, store storage.Store, opts ...Option) *Indexer {
	idx := &Indexer{
		chunker:    ch,
		cache:      cache,
		store:      store,
		logger:     slog.Default(),
		workers:    runtime.NumCPU(),
		encodeOpts: embedder.EncodeOptions{Normalize: true},
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Request describes one index run
type Request struct {
	Collection string
	Paths      []string
	Discover   DiscoverOptions
	// Force re-embeds files whose chunks are unchanged
	Force bool
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	Collection          string        `json:"collection"`
	FilesIndexed        int           `json:"files_indexed"`
	FilesSkipped        int           `json:"files_skipped"`
	FilesEmpty          int           `json:"files_empty"`
	FilesFailed         int           `json:"files_failed"`
	ChunksCreated       int           `json:"chunks_created"`
	EmbeddingsGenerated int           `json:"embeddings_generated"`
	Duration            time.Duration `json:"duration_ns"`
	ErrorMessages       []string      `json:"errors,omitempty"`
}

// counters accumulates per-file outcomes across workers
type counters struct {
	indexed, skipped, empty, failed atomic.Int32
	chunks, embeddings              atomic.Int32

	mu     sync.Mutex
	errors []string
}

func (c *counters) fail(path string, err error) {
	c.failed.Add(1)
	c.mu.Lock()
	c.errors = append(c.errors, fmt.Sprintf("%s: %v", path, err))
	c.mu.Unlock()
}

func (c *counters) fill(stats *Statistics) {
	stats.FilesIndexed = int(c.indexed.Load())
	stats.FilesSkipped = int(c.skipped.Load())
	stats.FilesEmpty = int(c.empty.Load())
	stats.FilesFailed = int(c.failed.Load())
	stats.ChunksCreated = int(c.chunks.Load())
	stats.EmbeddingsGenerated = int(c.embeddings.Load())
	stats.ErrorMessages = c.errors
}

// Index discovers the request's files, chunks and embeds them, and stores
// them in the named collection. A failing file is recorded in the returned
// Statistics and does not stop the run.
func (idx *Indexer) Index(ctx context.Context, req Request) (*Statistics, error) {
	if len(req.Paths) == 0 {
		return nil, ErrNoPaths
	}
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexInProgress
	}
	defer idx.lock.Release()

	start := time.Now()

	if req.Discover.Logger == nil {
		req.Discover.Logger = idx.logger
	}
	files, err := Discover(req.Paths, req.Discover)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	collection, err := idx.store.EnsureCollection(ctx, req.Collection, rootPathOf(req.Paths))
	if err != nil {
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}

	idx.logger.Info("indexing started", "collection", collection.Name, "files", len(files), "workers", idx.workers)

	var c counters
	if err := idx.indexFiles(ctx, collection.ID, files, req.Force, &c); err != nil {
		return nil, err
	}

	if err := idx.store.TouchCollection(ctx, collection.ID, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to update collection: %w", err)
	}
	idx.notify(collection.Name)

	stats := &Statistics{Collection: collection.Name, Duration: time.Since(start)}
	c.fill(stats)

	idx.logger.Info("indexing finished",
		"collection", collection.Name,
		"indexed", stats.FilesIndexed,
		"skipped", stats.FilesSkipped,
		"failed", stats.FilesFailed,
		"chunks", stats.ChunksCreated,
		"duration", stats.Duration)

	return stats, nil
}

// indexFiles fans files out to the worker pool. Only cancellation is fatal.
func (idx *Indexer) indexFiles(ctx context.Context, collectionID int64, files []string, force bool, c *counters) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	for _, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := idx.indexFile(gctx, collectionID, path, force, c); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				idx.logger.Warn("failed to index file", "path", path, "error", err)
				c.fail(path, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// indexFile brings one file's stored chunks in line with its content. A file
// that yields no chunks (missing, empty) is removed from the collection.
func (idx *Indexer) indexFile(ctx context.Context, collectionID int64, path string, force bool, c *counters) error {
	chunks := idx.chunker.ChunkFile(path)
	if len(chunks) == 0 {
		idx.logger.Info("no chunks produced", "path", path)
		if _, err := idx.store.DeleteFile(ctx, collectionID, path); err != nil {
			return fmt.Errorf("failed to remove stale chunks: %w", err)
		}
		c.empty.Add(1)
		return nil
	}

	if !force {
		existing, err := idx.store.ListFileChunks(ctx, collectionID, path)
		if err != nil {
			return fmt.Errorf("failed to load stored chunks: %w", err)
		}
		if unchanged(existing, chunks, idx.cache.Model()) {
			c.skipped.Add(1)
			return nil
		}
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vectors, err := idx.cache.Encode(ctx, texts, idx.encodeOpts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	model := idx.cache.Model().Name()
	stored := make([]*storage.Chunk, len(chunks))
	for i, ch := range chunks {
		ch.Embedding = vectors[i]
		stored[i] = storage.FromTypesChunk(ch, collectionID, model)
	}

	if err := idx.store.ReplaceFileChunks(ctx, collectionID, path, stored); err != nil {
		return err
	}

	c.indexed.Add(1)
	c.chunks.Add(int32(len(chunks)))
	c.embeddings.Add(int32(len(vectors)))
	return nil
}

// unchanged reports whether stored holds exactly the chunk IDs of fresh,
// all embedded by model. IDs hash path, start line and content.
func unchanged(stored []*storage.Chunk, fresh []*types.Chunk, model embedder.Model) bool {
	if len(stored) != len(fresh) {
		return false
	}
	name, dim := model.Name(), model.Dimension()
	ids := make(map[string]struct{}, len(stored))
	for _, sc := range stored {
		if len(sc.Vector) != dim || sc.Model != name {
			return false
		}
		ids[sc.ChunkID] = struct{}{}
	}
	for _, ch := range fresh {
		if _, ok := ids[ch.ID]; !ok {
			return false
		}
	}
	return true
}

// Busy reports whether an index run or watch flush is in progress
func (idx *Indexer) Busy() bool {
	return idx.lock.Held()
}

func (idx *Indexer) notify(collection string) {
	for _, fn := range idx.onIndexed {
		fn(collection)
	}
}

// rootPathOf records the directory of a single-path request
func rootPathOf(paths []string) string {
	if len(paths) != 1 {
		return ""
	}
	abs, err := filepath.Abs(paths[0])
	if err != nil {
		return paths[0]
	}
	return abs
}

// ChunkFiles chunks files concurrently and returns every chunk in file
// order. Files producing nothing are logged at info.
func ChunkFiles(ctx context.Context, ch *chunker.Chunker, files []string, workers int, logger *slog.Logger) ([]*types.Chunk, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	perFile := make([][]*types.Chunk, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			chunks := ch.ChunkFile(path)
			if len(chunks) == 0 {
				logger.Info("no chunks produced", "path", path)
			}
			perFile[i] = chunks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, chunks := range perFile {
		total += len(chunks)
	}
	all := make([]*types.Chunk, 0, total)
	for _, chunks := range perFile {
		all = append(all, chunks...)
	}
	return all, nil
}
