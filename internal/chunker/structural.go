package chunker

import (
	"strings"

	"github.com/dshills/coldstart/pkg/types"
)

// structuralHeadroom is how far past max_tokens a declaration may run
// before it is dropped.
const structuralHeadroom = 1.5

// structuralChunks splits content at the declaration lines recognized by
// policy. Each span runs to the next declaration or EOF and is trimmed.
// Text before the first declaration is not emitted. Oversized spans are
// dropped, so a nil result means the caller should fall back to windows.
func structuralChunks(content string, lang types.Language, policy DeclarationPolicy, maxTokens int) []*types.Chunk {
	type start struct {
		offset int
		line   int
	}

	var starts []start
	offset := 0
	for i, line := range strings.SplitAfter(content, "\n") {
		bare := strings.TrimRight(line, "\r\n")
		if policy.IsDeclaration(bare) {
			starts = append(starts, start{offset: offset, line: i + 1})
		}
		offset += len(line)
	}

	limit := float64(maxTokens) * structuralHeadroom

	var chunks []*types.Chunk
	for k, s := range starts {
		end := len(content)
		if k+1 < len(starts) {
			end = starts[k+1].offset
		}

		text := strings.TrimSpace(content[s.offset:end])
		if text == "" {
			continue
		}

		c := &types.Chunk{
			Content:   text,
			Language:  lang,
			StartLine: s.line,
			EndLine:   s.line + strings.Count(text, "\n"),
			Metadata: map[string]any{
				types.MetaChunkType:   string(types.ChunkStructural),
				types.MetaDeclaration: firstLine(text),
			},
		}
		if float64(c.TokenCount()) > limit {
			continue
		}
		chunks = append(chunks, c)
	}

	return chunks
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
