// Package chunker divides source files into bounded-size chunks for embedding and search.
//
// Chunks follow top-level declarations where the language allows it and fall
// back to overlapping line windows everywhere else.
//
// # Basic Usage
//
//	c, err := chunker.New(chunker.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//
//	for _, chunk := range c.ChunkFile("/path/to/file.py") {
//	    fmt.Printf("%s lines %d-%d (%s)\n",
//	        chunk.ID, chunk.StartLine, chunk.EndLine, chunk.Type())
//	}
//
// ChunkFile never returns an error. A missing file is logged at warn level, a
// read failure at error level, and both produce no chunks so a batch over many
// files keeps going.
//
// # Language Detection
//
// Classify maps a file extension (case-insensitive) to a types.Language.
// Unknown extensions map to types.LangText.
//
// # Structural Chunking
//
// Python, Go, JavaScript, TypeScript and Java have a DeclarationPolicy that
// recognizes lines opening a top-level declaration at column 0. Each chunk runs
// from one declaration to the next (or EOF) with edge whitespace trimmed.
// Chunks longer than 1.5x MaxTokens whitespace-delimited words are dropped.
// When no chunk survives, the file is window chunked instead.
//
// Policies are plain values and can be replaced:
//
//	p, _ := chunker.NewPatternPolicy(types.LangGo, `^func\s`)
//	c, _ := chunker.New(cfg, chunker.WithPolicies(p))
//
// # Window Chunking
//
// The window size is MaxTokens/10 lines and the overlap Overlap/10 lines, both
// at least 1. Windows advance by size minus overlap, never less than one line.
// Whitespace-only windows are skipped.
//
// # Identifiers
//
// Chunk IDs are the first 12 hex characters of
// sha256(path:start_line:sha256(content)). The same input always produces the
// same IDs.
package chunker
