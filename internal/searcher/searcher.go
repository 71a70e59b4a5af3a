package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dshills/coldstart/internal/embedder"
	"github.com/dshills/coldstart/internal/storage"
	"github.com/dshills/coldstart/pkg/types"
)

// SearchMode defines how search is performed
type SearchMode string

const (
	SearchModeHybrid  SearchMode = "hybrid"  // Vector + BM25 with RRF
	SearchModeVector  SearchMode = "vector"  // Vector similarity only
	SearchModeKeyword SearchMode = "keyword" // BM25 text search only
)

const (
	DefaultLimit       = 10
	MaxLimit           = 100
	DefaultRRFConstant = 60
	DefaultCacheSize   = 1000
	DefaultCacheTTL    = 5 * time.Minute
)

var (
	ErrEmptyQuery      = errors.New("query cannot be empty")
	ErrUnsupportedMode = errors.New("unsupported search mode")
)

// ParseMode maps a user-supplied name to a mode, empty meaning hybrid
func ParseMode(s string) (SearchMode, error) {
	switch SearchMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SearchModeHybrid:
		return SearchModeHybrid, nil
	case SearchModeVector:
		return SearchModeVector, nil
	case SearchModeKeyword:
		return SearchModeKeyword, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
}

// Request contains parameters for a search operation
type Request struct {
	Collection string
	Query      string
	Limit      int
	Mode       SearchMode
	Filters    *storage.SearchFilters
	UseCache   bool
}

// Response contains search results and metadata
type Response struct {
	Results       []types.SearchResult `json:"results"`
	TotalResults  int                  `json:"total_results"`
	Mode          SearchMode           `json:"mode"`
	Duration      time.Duration        `json:"duration_ns"`
	CacheHit      bool                 `json:"cache_hit"`
	VectorResults int                  `json:"vector_results"`
	TextResults   int                  `json:"text_results"`
}

// Searcher runs queries against stored collections
type Searcher struct {
	store      storage.Store
	embeddings *embedder.Cache
	encodeOpts embedder.EncodeOptions
	rrfK       float64

	results *expirable.LRU[[32]byte, *Response]
}

// Option configures a Searcher
type Option func(*Searcher)

// WithCache sizes the result cache; a zero ttl uses the default
func WithCache(size int, ttl time.Duration) Option {
	return func(s *Searcher) {
		if size <= 0 {
			size = DefaultCacheSize
		}
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		s.results = expirable.NewLRU[[32]byte, *Response](size, nil, ttl)
	}
}

// WithRRFConstant overrides k in the fusion formula
func WithRRFConstant(k float64) Option {
	return func(s *Searcher) {
		if k > 0 {
			s.rrfK = k
		}
	}
}

// WithEncodeOptions sets the options used to embed queries. They should
// match the ones used at index time.
func WithEncodeOptions(opts embedder.EncodeOptions) Option {
	return func(s *Searcher) { s.encodeOpts = opts }
}

// New creates a Searcher. Query vectors come from the same embedding cache
// the indexer uses.
func New(store storage.Store, embeddings *embedder.Cache, opts ...Option) *Searcher {
	s := &Searcher{
		store:      store,
		embeddings: embeddings,
		encodeOpts: embedder.EncodeOptions{Normalize: true},
		rrfK:       DefaultRRFConstant,
	}
	WithCache(DefaultCacheSize, DefaultCacheTTL)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search performs a search based on the request parameters
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if err := normalizeRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	key := queryKey(req)
	if req.UseCache {
		if cached, ok := s.results.Get(key); ok {
			resp := copyResponse(cached)
			resp.CacheHit = true
			resp.Duration = time.Since(start)
			return resp, nil
		}
	}

	collection, err := s.store.GetCollection(ctx, req.Collection)
	if err != nil {
		return nil, err
	}

	var resp *Response
	switch req.Mode {
	case SearchModeHybrid:
		resp, err = s.hybridSearch(ctx, collection.ID, req)
	case SearchModeVector:
		resp, err = s.vectorSearch(ctx, collection.ID, req)
	case SearchModeKeyword:
		resp, err = s.keywordSearch(ctx, collection.ID, req)
	}
	if err != nil {
		return nil, err
	}

	resp.Mode = req.Mode
	resp.Duration = time.Since(start)

	if req.UseCache && len(resp.Results) > 0 {
		s.results.Add(key, copyResponse(resp))
	}
	return resp, nil
}

// Invalidate drops cached results. Keys are hashed, so every collection is
// purged.
func (s *Searcher) Invalidate(string) {
	s.results.Purge()
}

// CachedQueries reports how many responses are cached
func (s *Searcher) CachedQueries() int {
	return s.results.Len()
}

func normalizeRequest(req *Request) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return ErrEmptyQuery
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return err
	}
	req.Mode = mode
	return nil
}

func (s *Searcher) queryVector(ctx context.Context, query string) ([]float32, error) {
	vec, err := s.embeddings.EncodeOne(ctx, query, s.encodeOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	return vec, nil
}

// hybridSearch runs both searches concurrently and fuses their rankings.
// One side may fail; both failing is an error.
func (s *Searcher) hybridSearch(ctx context.Context, collectionID int64, req Request) (*Response, error) {
	var (
		wg         sync.WaitGroup
		vectorRes  []storage.VectorResult
		textRes    []storage.TextResult
		vectorErr  error
		textErr    error
		candidates = req.Limit * 2
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		vec, err := s.queryVector(ctx, req.Query)
		if err != nil {
			vectorErr = err
			return
		}
		vectorRes, vectorErr = s.store.SearchVector(ctx, collectionID, vec, candidates, req.Filters)
	}()
	go func() {
		defer wg.Done()
		textRes, textErr = s.store.SearchText(ctx, collectionID, req.Query, candidates, req.Filters)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if vectorErr != nil && textErr != nil {
		return nil, fmt.Errorf("both searches failed: vector=%w, text=%v", vectorErr, textErr)
	}

	fused := fuseRRF(vectorRes, textRes, s.rrfK)
	results, err := s.fetchResults(ctx, collectionID, fused, req.Limit)
	if err != nil {
		return nil, err
	}

	return &Response{
		Results:       results,
		TotalResults:  len(results),
		VectorResults: len(vectorRes),
		TextResults:   len(textRes),
	}, nil
}

// vectorSearch performs only vector similarity search
func (s *Searcher) vectorSearch(ctx context.Context, collectionID int64, req Request) (*Response, error) {
	vec, err := s.queryVector(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	vectorRes, err := s.store.SearchVector(ctx, collectionID, vec, req.Limit, req.Filters)
	if err != nil {
		return nil, err
	}

	ranked := make([]rankedResult, len(vectorRes))
	for i, vr := range vectorRes {
		ranked[i] = rankedResult{chunkID: vr.ChunkID, score: vr.SimilarityScore, rank: i + 1}
	}

	results, err := s.fetchResults(ctx, collectionID, ranked, req.Limit)
	if err != nil {
		return nil, err
	}

	return &Response{
		Results:       results,
		TotalResults:  len(results),
		VectorResults: len(vectorRes),
	}, nil
}

// keywordSearch performs only BM25 text search
func (s *Searcher) keywordSearch(ctx context.Context, collectionID int64, req Request) (*Response, error) {
	textRes, err := s.store.SearchText(ctx, collectionID, req.Query, req.Limit, req.Filters)
	if err != nil {
		return nil, err
	}

	ranked := make([]rankedResult, len(textRes))
	for i, tr := range textRes {
		ranked[i] = rankedResult{chunkID: tr.ChunkID, score: tr.BM25Score, rank: i + 1}
	}

	results, err := s.fetchResults(ctx, collectionID, ranked, req.Limit)
	if err != nil {
		return nil, err
	}

	return &Response{
		Results:      results,
		TotalResults: len(results),
		TextResults:  len(textRes),
	}, nil
}

type rankedResult struct {
	chunkID string
	score   float64
	rank    int
}

// fuseRRF combines rankings with Reciprocal Rank Fusion:
// score(d) = sum over lists of 1/(k + rank(d))
func fuseRRF(vectorRes []storage.VectorResult, textRes []storage.TextResult, k float64) []rankedResult {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	scores := make(map[string]float64, len(vectorRes)+len(textRes))
	for rank, vr := range vectorRes {
		scores[vr.ChunkID] += 1.0 / (k + float64(rank+1))
	}
	for rank, tr := range textRes {
		scores[tr.ChunkID] += 1.0 / (k + float64(rank+1))
	}

	results := make([]rankedResult, 0, len(scores))
	for id, score := range scores {
		results = append(results, rankedResult{chunkID: id, score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].chunkID < results[j].chunkID
	})
	for i := range results {
		results[i].rank = i + 1
	}
	return results
}

// fetchResults loads the chunks behind the top ranked IDs. Chunks removed
// since ranking are skipped and ranks are reassigned densely.
func (s *Searcher) fetchResults(ctx context.Context, collectionID int64, ranked []rankedResult, limit int) ([]types.SearchResult, error) {
	if limit > len(ranked) {
		limit = len(ranked)
	}

	results := make([]types.SearchResult, 0, limit)
	for _, rr := range ranked[:limit] {
		stored, err := s.store.GetChunk(ctx, collectionID, rr.chunkID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		chunk := stored.ToTypesChunk()
		chunk.Embedding = nil
		results = append(results, types.SearchResult{
			Rank:  len(results) + 1,
			Score: rr.score,
			Chunk: chunk,
		})
	}
	return results, nil
}

func copyResponse(src *Response) *Response {
	dst := *src
	dst.Results = make([]types.SearchResult, len(src.Results))
	for i, r := range src.Results {
		dst.Results[i] = r
		if r.Chunk != nil {
			c := *r.Chunk
			c.Metadata = make(map[string]any, len(r.Chunk.Metadata))
			for k, v := range r.Chunk.Metadata {
				c.Metadata[k] = v
			}
			dst.Results[i].Chunk = &c
		}
	}
	return &dst
}

// queryKey hashes everything that affects a response
func queryKey(req Request) [32]byte {
	var b strings.Builder
	b.WriteString(req.Collection)
	b.WriteString("|")
	b.WriteString(req.Query)
	b.WriteString("|")
	b.WriteString(string(req.Mode))
	b.WriteString("|")
	b.WriteString(strconv.Itoa(req.Limit))
	if f := req.Filters; f != nil {
		b.WriteString("|filters:")
		b.WriteString(strings.Join(f.Languages, ","))
		b.WriteString("|")
		b.WriteString(strings.Join(f.ChunkTypes, ","))
		b.WriteString("|")
		b.WriteString(f.FilePattern)
		b.WriteString("|")
		b.WriteString(strconv.FormatFloat(f.MinRelevance, 'f', 4, 64))
	}
	return sha256.Sum256([]byte(b.String()))
}
