package chunker

import (
	"strings"

	"github.com/dshills/coldstart/pkg/types"
)

// linesPerToken approximates how many tokens fit on one line.
const linesPerToken = 10

// windowGeometry converts token budgets into line counts. The stride is
// clamped to 1 so an overlap at or above the window still advances.
func windowGeometry(maxTokens, overlap int) (window, stride int) {
	window = max(1, maxTokens/linesPerToken)
	overlapLines := max(1, overlap/linesPerToken)
	stride = max(1, window-overlapLines)
	return window, stride
}

// splitLines splits on \n. A single trailing terminator does not open an
// extra empty line.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// windowChunks covers content with overlapping fixed-size line windows.
// Whitespace-only windows are skipped.
func windowChunks(content string, lang types.Language, maxTokens, overlap int) []*types.Chunk {
	lines := splitLines(content)
	total := len(lines)
	window, stride := windowGeometry(maxTokens, overlap)

	var chunks []*types.Chunk
	for i := 0; i < total; i += stride {
		end := min(i+window, total)
		text := strings.Join(lines[i:end], "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}

		chunks = append(chunks, &types.Chunk{
			Content:   text,
			Language:  lang,
			StartLine: i + 1,
			EndLine:   end,
			Metadata: map[string]any{
				types.MetaChunkType: string(types.ChunkWindow),
			},
		})
	}

	return chunks
}
