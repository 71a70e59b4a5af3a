package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/coldstart/internal/chunker"
)

// chunkFileTool returns the tool definition for chunk_file
func chunkFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "chunk_file",
		Description: "Split a source file into bounded-size chunks by top-level declaration or line window",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path of the file to chunk; also used for language detection when content is given",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Inline file content. When omitted the file at path is read",
				},
				"max_tokens": map[string]any{
					"type":        "integer",
					"description": "Token budget per chunk",
					"default":     chunker.DefaultMaxTokens,
					"minimum":     1,
				},
				"overlap": map[string]any{
					"type":        "integer",
					"description": "Token overlap between line windows; must be below max_tokens",
					"default":     chunker.DefaultOverlap,
					"minimum":     0,
				},
			},
			Required: []string{"path"},
		},
	}
}

// indexPathTool returns the tool definition for index_path
func indexPathTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_path",
		Description: "Chunk, embed and store a file or directory tree in a collection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Absolute path to a file or directory",
				},
				"collection": map[string]any{
					"type":        "string",
					"description": "Collection name; the configured default when omitted",
				},
				"recursive": map[string]any{
					"type":        "boolean",
					"description": "Descend into subdirectories",
					"default":     true,
				},
				"extensions": map[string]any{
					"type":        "array",
					"description": "Only index files with these extensions, e.g. [\".py\", \".go\"]; every known source extension when omitted",
					"items":       map[string]any{"type": "string"},
				},
				"force": map[string]any{
					"type":        "boolean",
					"description": "Re-embed files whose chunks did not change",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchChunksTool returns the tool definition for search_chunks
func searchChunksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_chunks",
		Description: "Search an indexed collection with natural language or keyword queries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query",
				},
				"collection": map[string]any{
					"type":        "string",
					"description": "Collection name; the configured default when omitted",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"search_mode": map[string]any{
					"type":        "string",
					"description": "hybrid (vector + keyword), vector (semantic only) or keyword (BM25 only)",
					"enum":        []string{"hybrid", "vector", "keyword"},
					"default":     "hybrid",
				},
				"filters": map[string]any{
					"type":        "object",
					"description": "Optional filters to narrow search",
					"properties": map[string]any{
						"languages": map[string]any{
							"type":        "array",
							"description": "Language tags, e.g. python, go, markdown",
							"items":       map[string]any{"type": "string"},
						},
						"chunk_types": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "string",
								"enum": []string{"structural", "window"},
							},
						},
						"file_pattern": map[string]any{
							"type":        "string",
							"description": "Glob pattern for file paths (e.g. '*/internal/*')",
						},
						"min_relevance": map[string]any{
							"type":        "number",
							"description": "Minimum similarity or normalized BM25 score (0.0-1.0)",
							"minimum":     0.0,
							"maximum":     1.0,
						},
					},
				},
			},
			Required: []string{"query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report indexing statistics and health for a collection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"collection": map[string]any{
					"type":        "string",
					"description": "Collection name; the configured default when omitted",
				},
			},
		},
	}
}
