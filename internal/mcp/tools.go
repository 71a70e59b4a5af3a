package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/coldstart/internal/indexer"
	"github.com/dshills/coldstart/internal/searcher"
	"github.com/dshills/coldstart/internal/storage"
	"github.com/dshills/coldstart/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeCollectionNotFound = -32001 // Collection has not been indexed
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
)

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    any
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func newMCPError(code int, message string, data any) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

func invalidParam(param, reason string) error {
	return newMCPError(ErrorCodeInvalidParams, "invalid "+param, map[string]any{
		"param":  param,
		"reason": reason,
	})
}

func (s *Server) handleChunkFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path := getStringDefault(args, "path", "")
	if path == "" {
		return nil, invalidParam("path", "missing or empty")
	}

	ch := s.app.Chunker
	cfg := ch.Config()
	maxTokens := getIntDefault(args, "max_tokens", cfg.MaxTokens)
	overlap := getIntDefault(args, "overlap", cfg.Overlap)
	if maxTokens != cfg.MaxTokens || overlap != cfg.Overlap {
		var err error
		if ch, err = ch.WithLimits(maxTokens, overlap); err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid chunk limits", map[string]any{
				"max_tokens": maxTokens,
				"overlap":    overlap,
				"reason":     err.Error(),
			})
		}
	}

	var chunks []*types.Chunk
	if content := getStringDefault(args, "content", ""); content != "" {
		chunks = ch.ChunkContent(path, content)
	} else {
		chunks = ch.ChunkFile(path)
	}
	if chunks == nil {
		chunks = []*types.Chunk{}
	}

	return mcp.NewToolResultText(formatJSON(map[string]any{
		"path":   path,
		"total":  len(chunks),
		"chunks": chunks,
	})), nil
}

func (s *Server) handleIndexPath(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path := getStringDefault(args, "path", "")
	if err := validatePath(path); err != nil {
		return nil, invalidParam("path", err.Error())
	}

	req := indexer.Request{
		Collection: s.collection(args),
		Paths:      []string{path},
		Discover:   s.app.DiscoverOptions(getBoolDefault(args, "recursive", true), getStringSlice(args, "extensions")),
		Force:      getBoolDefault(args, "force", false),
	}

	stats, err := s.app.Indexer.Index(ctx, req)
	if errors.Is(err, indexer.ErrIndexInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]any{
			"error": err.Error(),
		})
	}

	response := map[string]any{
		"indexed":              true,
		"collection":           stats.Collection,
		"files_indexed":        stats.FilesIndexed,
		"files_skipped":        stats.FilesSkipped,
		"files_empty":          stats.FilesEmpty,
		"files_failed":         stats.FilesFailed,
		"chunks_created":       stats.ChunksCreated,
		"embeddings_generated": stats.EmbeddingsGenerated,
		"duration_ms":          stats.Duration.Milliseconds(),
	}
	if n := len(stats.ErrorMessages); n > 0 {
		if n > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = n
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

func (s *Server) handleSearchChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query := getStringDefault(args, "query", "")
	if query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]any{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", searcher.DefaultLimit)
	if limit < 1 || limit > searcher.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]any{
			"param": "limit",
			"value": limit,
		})
	}

	mode, err := searcher.ParseMode(getStringDefault(args, "search_mode", ""))
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid search_mode", map[string]any{
			"param":   "search_mode",
			"value":   args["search_mode"],
			"allowed": []string{"hybrid", "vector", "keyword"},
		})
	}

	req := searcher.Request{
		Collection: s.collection(args),
		Query:      query,
		Limit:      limit,
		Mode:       mode,
		Filters:    parseFilters(args),
		UseCache:   true,
	}

	resp, err := s.app.Searcher.Search(ctx, req)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, newMCPError(ErrorCodeCollectionNotFound, "collection not indexed", map[string]any{
			"collection": req.Collection,
			"hint":       "use index_path to index files into this collection",
		})
	case errors.Is(err, searcher.ErrEmptyQuery):
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", nil)
	case err != nil:
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]any{
			"error": err.Error(),
		})
	}

	results := make([]map[string]any, len(resp.Results))
	for i, r := range resp.Results {
		results[i] = map[string]any{
			"rank":       r.Rank,
			"score":      r.Score,
			"chunk_id":   r.Chunk.ID,
			"file_path":  r.Chunk.FilePath,
			"language":   r.Chunk.Language,
			"chunk_type": r.Chunk.Type(),
			"start_line": r.Chunk.StartLine,
			"end_line":   r.Chunk.EndLine,
			"content":    r.Chunk.Content,
		}
	}

	return mcp.NewToolResultText(formatJSON(map[string]any{
		"collection":    req.Collection,
		"query":         query,
		"search_mode":   resp.Mode,
		"total_results": resp.TotalResults,
		"cache_hit":     resp.CacheHit,
		"duration_ms":   resp.Duration.Milliseconds(),
		"results":       results,
	})), nil
}

func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	name := s.collection(args)

	coll, err := s.app.Store.GetCollection(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return mcp.NewToolResultText(formatJSON(map[string]any{
			"indexed":    false,
			"collection": name,
			"message":    "Collection not indexed. Use index_path to index files into it.",
		})), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get collection", map[string]any{
			"error": err.Error(),
		})
	}

	status, err := s.app.Store.Status(ctx, coll.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]any{
			"error": err.Error(),
		})
	}

	lastIndexed := ""
	if !coll.LastIndexedAt.IsZero() {
		lastIndexed = coll.LastIndexedAt.Format("2006-01-02T15:04:05Z07:00")
	}

	return mcp.NewToolResultText(formatJSON(map[string]any{
		"indexed": true,
		"collection": map[string]any{
			"name":            coll.Name,
			"root_path":       coll.RootPath,
			"last_indexed_at": lastIndexed,
		},
		"statistics": map[string]any{
			"files_count":      status.FilesCount,
			"chunks_count":     status.ChunksCount,
			"embeddings_count": status.EmbeddingsCount,
			"by_language":      status.ByLanguage,
			"index_size_mb":    fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"health": map[string]any{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"fts_indexes_built":    status.Health.FTSIndexesBuilt,
		},
		"embedding_model": s.app.Model.Name(),
		"indexing":        s.app.Indexer.Busy(),
	})), nil
}

// collection returns the collection argument or the configured default
func (s *Server) collection(args map[string]any) string {
	return getStringDefault(args, "collection", s.app.Config.CollectionName)
}

func parseFilters(args map[string]any) *storage.SearchFilters {
	raw, ok := args["filters"].(map[string]any)
	if !ok {
		return nil
	}
	f := &storage.SearchFilters{
		Languages:   getStringSlice(raw, "languages"),
		ChunkTypes:  getStringSlice(raw, "chunk_types"),
		FilePattern: getStringDefault(raw, "file_pattern", ""),
	}
	if v, ok := raw["min_relevance"].(float64); ok {
		f.MinRelevance = v
	}
	if len(f.Languages) == 0 && len(f.ChunkTypes) == 0 && f.FilePattern == "" && f.MinRelevance == 0 {
		return nil
	}
	return f
}

// validatePath checks that path is absolute and readable
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	return nil
}

// formatJSON formats a value as indented JSON
func formatJSON(data any) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

func getBoolDefault(args map[string]any, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

func getIntDefault(args map[string]any, key string, defaultValue int) int {
	switch val := args[key].(type) {
	case float64:
		return int(val)
	case int:
		return val
	}
	return defaultValue
}

func getStringDefault(args map[string]any, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// getStringSlice accepts a JSON array of strings; other elements are ignored
func getStringSlice(args map[string]any, key string) []string {
	switch val := args[key].(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, v := range val {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
