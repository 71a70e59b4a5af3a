package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/coldstart/internal/app"
	"github.com/dshills/coldstart/internal/config"
	"github.com/dshills/coldstart/internal/logging"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.StorePath = filepath.Join(t.TempDir(), "coldstart.db")
	cfg.CollectionName = "default"

	a, err := app.New(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	return NewServer(a)
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultJSON(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out), text.Text)
	return out
}

func requireMCPError(t *testing.T, err error, code int) *MCPError {
	t.Helper()
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code)
	return mcpErr
}

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "db.py"),
		[]byte("def open_connection(dsn):\n    return connect(dsn)\n\ndef close_connection(conn):\n    conn.close()\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "guide.md"),
		[]byte("# Guide\n\nOpen a database connection before running queries.\n"), 0o644))
	return root
}

func TestNewServer(t *testing.T) {
	s := newTestServer(t)
	assert.NotNil(t, s.mcp)

	names := []string{chunkFileTool().Name, indexPathTool().Name, searchChunksTool().Name, getStatusTool().Name}
	assert.Equal(t, []string{"chunk_file", "index_path", "search_chunks", "get_status"}, names)
	assert.Contains(t, searchChunksTool().InputSchema.Required, "query")
}

func TestChunkFile(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleChunkFile(ctx, call(map[string]any{
		"path":    "app.py",
		"content": "def foo():\n    return 1\n\nclass Bar:\n    def baz(self):\n        return 2\n",
	}))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.EqualValues(t, 2, out["total"])

	t.Run("custom limits", func(t *testing.T) {
		res, err := s.handleChunkFile(ctx, call(map[string]any{
			"path":       "notes.txt",
			"content":    "a\nb\nc\nd\ne\nf\ng\nh\ni\nj\nk\nl",
			"max_tokens": float64(100),
			"overlap":    float64(10),
		}))
		require.NoError(t, err)
		out := resultJSON(t, res)
		chunks := out["chunks"].([]any)
		last := chunks[len(chunks)-1].(map[string]any)
		assert.EqualValues(t, 12, last["end_line"])
	})

	t.Run("invalid limits", func(t *testing.T) {
		_, err := s.handleChunkFile(ctx, call(map[string]any{"path": "a.py", "content": "x", "max_tokens": float64(5), "overlap": float64(5)}))
		requireMCPError(t, err, ErrorCodeInvalidParams)
	})

	t.Run("path required", func(t *testing.T) {
		_, err := s.handleChunkFile(ctx, call(map[string]any{}))
		requireMCPError(t, err, ErrorCodeInvalidParams)
	})

	t.Run("arguments must be an object", func(t *testing.T) {
		var req mcp.CallToolRequest
		req.Params.Arguments = "nope"
		_, err := s.handleChunkFile(ctx, req)
		requireMCPError(t, err, ErrorCodeInvalidParams)
	})
}

func TestIndexSearchStatus(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	root := writeProject(t)

	res, err := s.handleGetStatus(ctx, call(nil))
	require.NoError(t, err)
	assert.Equal(t, false, resultJSON(t, res)["indexed"])

	res, err = s.handleIndexPath(ctx, call(map[string]any{"path": root, "collection": "proj"}))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, "proj", out["collection"])
	assert.EqualValues(t, 2, out["files_indexed"])

	res, err = s.handleSearchChunks(ctx, call(map[string]any{
		"query":      "open database connection",
		"collection": "proj",
		"limit":      float64(3),
	}))
	require.NoError(t, err)
	out = resultJSON(t, res)
	assert.Equal(t, "hybrid", out["search_mode"])
	results := out["results"].([]any)
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 3)
	first := results[0].(map[string]any)
	assert.EqualValues(t, 1, first["rank"])
	assert.NotEmpty(t, first["content"])

	res, err = s.handleSearchChunks(ctx, call(map[string]any{
		"query":       "connection",
		"collection":  "proj",
		"search_mode": "keyword",
		"filters":     map[string]any{"languages": []any{"markdown"}},
	}))
	require.NoError(t, err)
	results = resultJSON(t, res)["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "markdown", results[0].(map[string]any)["language"])

	res, err = s.handleGetStatus(ctx, call(map[string]any{"collection": "proj"}))
	require.NoError(t, err)
	out = resultJSON(t, res)
	assert.Equal(t, true, out["indexed"])
	stats := out["statistics"].(map[string]any)
	assert.EqualValues(t, 2, stats["files_count"])
	assert.Equal(t, "local/hashing-bow-384", out["embedding_model"])
}

func TestIndexPath_Errors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing path", map[string]any{}},
		{"relative path", map[string]any{"path": "src"}},
		{"nonexistent path", map[string]any{"path": filepath.Join(t.TempDir(), "nope")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.handleIndexPath(ctx, call(tt.args))
			requireMCPError(t, err, ErrorCodeInvalidParams)
		})
	}
}

func TestSearchChunks_Errors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleSearchChunks(ctx, call(map[string]any{}))
	requireMCPError(t, err, ErrorCodeEmptyQuery)

	_, err = s.handleSearchChunks(ctx, call(map[string]any{"query": "x", "limit": float64(0)}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	_, err = s.handleSearchChunks(ctx, call(map[string]any{"query": "x", "search_mode": "fuzzy"}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	_, err = s.handleSearchChunks(ctx, call(map[string]any{"query": "x", "collection": "never"}))
	e := requireMCPError(t, err, ErrorCodeCollectionNotFound)
	assert.Equal(t, "never", e.Data.(map[string]any)["collection"])
}

func TestParseFilters(t *testing.T) {
	assert.Nil(t, parseFilters(map[string]any{}))
	assert.Nil(t, parseFilters(map[string]any{"filters": map[string]any{}}))

	f := parseFilters(map[string]any{"filters": map[string]any{
		"languages":     []any{"go", 3, "python"},
		"chunk_types":   []any{"window"},
		"file_pattern":  "*/internal/*",
		"min_relevance": 0.5,
	}})
	require.NotNil(t, f)
	assert.Equal(t, []string{"go", "python"}, f.Languages)
	assert.Equal(t, []string{"window"}, f.ChunkTypes)
	assert.Equal(t, "*/internal/*", f.FilePattern)
	assert.InDelta(t, 0.5, f.MinRelevance, 1e-9)
}

func TestMCPError(t *testing.T) {
	err := newMCPError(ErrorCodeIndexingInProgress, "busy", nil)
	assert.Equal(t, "MCP error -32002: busy", err.Error())
}
