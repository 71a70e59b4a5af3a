package searcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/coldstart/internal/embedder"
	"github.com/dshills/coldstart/internal/storage"
	"github.com/dshills/coldstart/pkg/types"
)

// brokenModel fails every call
type brokenModel struct{}

func (brokenModel) Encode(context.Context, []string, embedder.EncodeOptions) ([][]float32, error) {
	return nil, errors.New("embedding service down")
}
func (brokenModel) Dimension() int { return embedder.LocalDimension }
func (brokenModel) Name() string   { return "broken" }
func (brokenModel) Close() error   { return nil }

var corpus = []struct {
	id, path, lang, content string
}{
	{"000000000001", "config/reader.py", "python", "parse config file reader settings"},
	{"000000000002", "net/server.go", "go", "http server listen port handler"},
	{"000000000003", "db/pool.go", "go", "database connection pool handler"},
	{"000000000004", "docs/http.md", "markdown", "notes about the http protocol"},
}

func setupSearcher(t *testing.T, opts ...Option) (*Searcher, *storage.SQLiteStore) {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewSQLiteStore(ctx, storage.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cache := embedder.NewCache(embedder.NewLocalModel(embedder.Config{}), 100)
	coll, err := store.EnsureCollection(ctx, "code", "")
	require.NoError(t, err)

	for _, c := range corpus {
		vec, err := cache.EncodeOne(ctx, c.content, embedder.EncodeOptions{Normalize: true})
		require.NoError(t, err)
		chunkType := "structural"
		if c.lang == "markdown" {
			chunkType = "window"
		}
		require.NoError(t, store.ReplaceFileChunks(ctx, coll.ID, c.path, []*storage.Chunk{{
			ChunkID:   c.id,
			Language:  c.lang,
			ChunkType: chunkType,
			StartLine: 1,
			EndLine:   1,
			Content:   c.content,
			Vector:    vec,
			Model:     cache.Model().Name(),
		}}))
	}

	return New(store, cache, opts...), store
}

func ids(resp *Response) []string {
	out := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		out[i] = r.Chunk.ID
	}
	return out
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    SearchMode
		wantErr bool
	}{
		{"", SearchModeHybrid, false},
		{"hybrid", SearchModeHybrid, false},
		{"Vector", SearchModeVector, false},
		{" keyword ", SearchModeKeyword, false},
		{"fuzzy", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeRequest(t *testing.T) {
	req := Request{Query: "  q  "}
	require.NoError(t, normalizeRequest(&req))
	assert.Equal(t, "q", req.Query)
	assert.Equal(t, DefaultLimit, req.Limit)
	assert.Equal(t, SearchModeHybrid, req.Mode)

	req = Request{Query: "q", Limit: 5000}
	require.NoError(t, normalizeRequest(&req))
	assert.Equal(t, MaxLimit, req.Limit)

	req = Request{Query: "   "}
	assert.ErrorIs(t, normalizeRequest(&req), ErrEmptyQuery)

	req = Request{Query: "q", Mode: "fuzzy"}
	assert.ErrorIs(t, normalizeRequest(&req), ErrUnsupportedMode)
}

func TestSearch_Vector(t *testing.T) {
	s, _ := setupSearcher(t)

	resp, err := s.Search(context.Background(), Request{Collection: "code", Query: "http server", Mode: SearchModeVector, Limit: 2})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "000000000002", resp.Results[0].Chunk.ID)
	assert.Equal(t, SearchModeVector, resp.Mode)
	assert.Equal(t, 2, resp.VectorResults)

	for i, r := range resp.Results {
		assert.Equal(t, i+1, r.Rank)
		assert.Nil(t, r.Chunk.Embedding, "vectors are not returned")
		require.NoError(t, r.Validate())
	}
}

func TestSearch_Keyword(t *testing.T) {
	s, _ := setupSearcher(t)

	resp, err := s.Search(context.Background(), Request{Collection: "code", Query: "handler", Mode: SearchModeKeyword})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"000000000002", "000000000003"}, ids(resp))
	assert.Equal(t, 2, resp.TextResults)
	assert.Zero(t, resp.VectorResults)
}

func TestSearch_Hybrid(t *testing.T) {
	s, _ := setupSearcher(t)

	resp, err := s.Search(context.Background(), Request{Collection: "code", Query: "http server", Limit: 3})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, SearchModeHybrid, resp.Mode)
	// best in both lists
	assert.Equal(t, "000000000002", resp.Results[0].Chunk.ID)
	assert.LessOrEqual(t, len(resp.Results), 3)
	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].Score, resp.Results[i].Score)
	}
}

func TestSearch_Filters(t *testing.T) {
	s, _ := setupSearcher(t)

	resp, err := s.Search(context.Background(), Request{
		Collection: "code",
		Query:      "http",
		Mode:       SearchModeKeyword,
		Filters:    &storage.SearchFilters{Languages: []string{"markdown"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"000000000004"}, ids(resp))
	assert.Equal(t, types.ChunkWindow, resp.Results[0].Chunk.Type())
}

func TestSearch_UnknownCollection(t *testing.T) {
	s, _ := setupSearcher(t)
	_, err := s.Search(context.Background(), Request{Collection: "nope", Query: "x"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSearch_HybridSurvivesEmbeddingFailure(t *testing.T) {
	_, store := setupSearcher(t)
	s := New(store, embedder.NewCache(brokenModel{}, 10))

	resp, err := s.Search(context.Background(), Request{Collection: "code", Query: "pool"})
	require.NoError(t, err)
	assert.Equal(t, []string{"000000000003"}, ids(resp))
	assert.Zero(t, resp.VectorResults)

	_, err = s.Search(context.Background(), Request{Collection: "code", Query: "pool", Mode: SearchModeVector})
	assert.ErrorContains(t, err, "embedding service down")
}

func TestSearch_HybridBothFail(t *testing.T) {
	_, store := setupSearcher(t)
	s := New(store, embedder.NewCache(brokenModel{}, 10))

	// punctuation only: keyword search has nothing to match
	_, err := s.Search(context.Background(), Request{Collection: "code", Query: "(*)"})
	assert.ErrorContains(t, err, "both searches failed")
}

func TestSearch_Cache(t *testing.T) {
	s, store := setupSearcher(t)
	ctx := context.Background()
	req := Request{Collection: "code", Query: "database", Mode: SearchModeKeyword, UseCache: true}

	first, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, 1, s.CachedQueries())

	// mutate the returned copy; the cached one must not change
	first.Results[0].Chunk.Content = "tampered"

	second, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, "database connection pool handler", second.Results[0].Chunk.Content)

	// stale until invalidated
	coll, err := store.GetCollection(ctx, "code")
	require.NoError(t, err)
	_, err = store.DeleteFile(ctx, coll.ID, "db/pool.go")
	require.NoError(t, err)

	third, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.True(t, third.CacheHit)

	s.Invalidate("code")
	assert.Zero(t, s.CachedQueries())

	fourth, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, fourth.CacheHit)
	assert.Empty(t, fourth.Results)
}

func TestSearch_CacheExpires(t *testing.T) {
	s, _ := setupSearcher(t, WithCache(10, 20*time.Millisecond))
	ctx := context.Background()
	req := Request{Collection: "code", Query: "database", Mode: SearchModeKeyword, UseCache: true}

	_, err := s.Search(ctx, req)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		resp, err := s.Search(ctx, req)
		return err == nil && !resp.CacheHit
	}, time.Second, 10*time.Millisecond)
}

func TestFuseRRF(t *testing.T) {
	vector := []storage.VectorResult{{ChunkID: "a"}, {ChunkID: "b"}, {ChunkID: "c"}}
	text := []storage.TextResult{{ChunkID: "b"}, {ChunkID: "d"}}

	fused := fuseRRF(vector, text, 60)
	require.Len(t, fused, 4)

	assert.Equal(t, "b", fused[0].chunkID)
	assert.InDelta(t, 1.0/62+1.0/61, fused[0].score, 1e-12)
	assert.Equal(t, "a", fused[1].chunkID)
	assert.InDelta(t, 1.0/61, fused[1].score, 1e-12)
	// c and d tie at 1/63 and 1/62: d ranks higher
	assert.Equal(t, "d", fused[2].chunkID)
	assert.Equal(t, "c", fused[3].chunkID)

	for i, r := range fused {
		assert.Equal(t, i+1, r.rank)
	}

	assert.Empty(t, fuseRRF(nil, nil, 0))
}

func TestQueryKey(t *testing.T) {
	base := Request{Collection: "c", Query: "q", Mode: SearchModeHybrid, Limit: 10}
	assert.Equal(t, queryKey(base), queryKey(base))

	variants := []Request{
		{Collection: "d", Query: "q", Mode: SearchModeHybrid, Limit: 10},
		{Collection: "c", Query: "r", Mode: SearchModeHybrid, Limit: 10},
		{Collection: "c", Query: "q", Mode: SearchModeVector, Limit: 10},
		{Collection: "c", Query: "q", Mode: SearchModeHybrid, Limit: 11},
		{Collection: "c", Query: "q", Mode: SearchModeHybrid, Limit: 10, Filters: &storage.SearchFilters{Languages: []string{"go"}}},
	}
	for _, v := range variants {
		assert.NotEqual(t, queryKey(base), queryKey(v))
	}
}
