// Package types provides shared type definitions for coldstart.
//
// # Core Types
//
// Chunk is a bounded piece of a source file together with its provenance:
//
//	chunk := &types.Chunk{
//	    ID:        "3f9c0a1b2d4e",
//	    Content:   "def foo():\n    return 1",
//	    FilePath:  "pkg/foo.py",
//	    Language:  types.LangPython,
//	    StartLine: 1,
//	    EndLine:   2,
//	    Metadata:  map[string]any{types.MetaChunkType: types.ChunkStructural},
//	}
//
// Line numbers are 1-based and inclusive. The Metadata map always carries
// chunk_type, either "structural" (aligned to a top-level declaration) or
// "window" (a fixed-size overlapping line range). Embedding stays empty until
// an embedding stage fills it.
//
// Language is a closed set of tags. IsStructural reports which of them the
// structural chunker understands:
//
//	types.LangGo.IsStructural()       // true
//	types.LangMarkdown.IsStructural() // false
//
// # Validation
//
//	if err := chunk.Validate(); err != nil {
//	    return fmt.Errorf("bad chunk: %w", err)
//	}
//
// # Search Results
//
// SearchResult pairs a chunk with its rank and score. Scores are cosine
// similarity, BM25 or reciprocal-rank-fusion values depending on the search
// mode; higher is better within one response.
package types
