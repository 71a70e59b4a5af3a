package embedder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of vectors kept when no size is given
const DefaultCacheSize = 10000

// flight is one pending computation other callers can wait on.
type flight struct {
	done chan struct{}
	vec  []float32
	err  error
}

// CacheStats is a point-in-time view of cache usage.
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Cache memoizes a Model by exact text. The lock only guards the entry and
// in-flight tables; model calls run outside it. Concurrent callers asking
// for the same uncached text share one computation.
//
// Keys ignore EncodeOptions, so a cache should be used with one Normalize
// setting.
type Cache struct {
	model Model

	mu      sync.Mutex
	entries *lru.Cache[string, []float32]
	flights map[string]*flight

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache wraps model with a bounded LRU of size entries.
func NewCache(model Model, size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, []float32](size)
	if err != nil {
		// only fails for non-positive sizes
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &Cache{
		model:   model,
		entries: entries,
		flights: make(map[string]*flight),
	}
}

// Model returns the wrapped model.
func (c *Cache) Model() Model { return c.model }

// EncodeOne returns the vector for a single text.
func (c *Cache) EncodeOne(ctx context.Context, text string, opts EncodeOptions) ([]float32, error) {
	vecs, err := c.Encode(ctx, []string{text}, opts)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Encode returns one vector per text in input order. Cached texts are not
// sent to the model, and a text repeated within texts is sent once. Model
// errors are returned as is; nothing from a failed batch is cached. A caller
// waiting on another caller's computation recomputes under its own ctx when
// that other caller's context ends first.
func (c *Cache) Encode(ctx context.Context, texts []string, opts EncodeOptions) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = ComputeHash(text)
	}

	resolved := make(map[string][]float32, len(texts))
	waiting := make(map[string]*flight)
	waitTexts := make(map[string]string)
	var ownKeys, ownTexts []string

	c.mu.Lock()
	for i, key := range keys {
		if _, ok := resolved[key]; ok {
			continue
		}
		if _, ok := waiting[key]; ok {
			continue
		}
		if vec, ok := c.entries.Get(key); ok {
			resolved[key] = vec
			c.hits.Add(1)
			continue
		}
		if f, ok := c.flights[key]; ok {
			waiting[key] = f
			waitTexts[key] = texts[i]
			c.hits.Add(1)
			continue
		}
		c.flights[key] = &flight{done: make(chan struct{})}
		ownKeys = append(ownKeys, key)
		ownTexts = append(ownTexts, texts[i])
		c.misses.Add(1)
	}
	c.mu.Unlock()

	if len(ownKeys) > 0 {
		vecs, err := c.compute(ctx, ownKeys, ownTexts, opts)
		if err != nil {
			return nil, err
		}
		for i, key := range ownKeys {
			resolved[key] = vecs[i]
		}
	}

	for key, f := range waiting {
		select {
		case <-f.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if f.err == nil {
			resolved[key] = f.vec
			continue
		}
		// the owner's context ended, not ours: compute under ctx instead
		if !isContextErr(f.err) || ctx.Err() != nil {
			return nil, f.err
		}
		vecs, err := c.Encode(ctx, []string{waitTexts[key]}, opts)
		if err != nil {
			return nil, err
		}
		resolved[key] = vecs[0]
	}

	out := make([][]float32, len(texts))
	for i, key := range keys {
		out[i] = cloneVector(resolved[key])
	}
	return out, nil
}

// compute calls the model for keys this caller owns and settles their flights.
func (c *Cache) compute(ctx context.Context, keys, texts []string, opts EncodeOptions) (vecs [][]float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: model panicked: %v", ErrProviderFailed, r)
		}
		c.settle(keys, vecs, err)
	}()

	vecs, err = c.model.Encode(ctx, texts, opts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrProviderFailed, len(vecs), len(texts))
	}
	return vecs, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (c *Cache) settle(keys []string, vecs [][]float32, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, key := range keys {
		f := c.flights[key]
		delete(c.flights, key)
		if err != nil {
			f.err = err
		} else {
			f.vec = vecs[i]
			c.entries.Add(key, vecs[i])
		}
		close(f.done)
	}
}

// Len returns the number of cached vectors.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Stats returns entry count and hit/miss counters.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Entries: c.entries.Len(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

// Purge drops every cached vector. In-flight computations still complete.
func (c *Cache) Purge() {
	c.entries.Purge()
}
