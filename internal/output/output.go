package output

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dshills/coldstart/pkg/types"
)

// Format selects how chunks are serialized
type Format string

const (
	FormatJSONL  Format = "jsonl"  // one object per line
	FormatJSON   Format = "json"   // compact array
	FormatPretty Format = "pretty" // indented array
)

// ErrUnknownFormat is returned for a format name outside jsonl, json, pretty
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat maps a flag value to a Format, empty meaning jsonl
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSONL, nil
	case FormatJSONL, FormatJSON, FormatPretty:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Write serializes chunks to w. Non-ASCII text and HTML characters are
// written as-is.
func Write(w io.Writer, chunks []*types.Chunk, format Format) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	if chunks == nil {
		chunks = []*types.Chunk{}
	}

	switch format {
	case FormatJSONL, "":
		for _, c := range chunks {
			if err := enc.Encode(c); err != nil {
				return fmt.Errorf("failed to encode chunk %s: %w", c.ID, err)
			}
		}
	case FormatJSON:
		if err := enc.Encode(chunks); err != nil {
			return fmt.Errorf("failed to encode chunks: %w", err)
		}
	case FormatPretty:
		enc.SetIndent("", "  ")
		if err := enc.Encode(chunks); err != nil {
			return fmt.Errorf("failed to encode chunks: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	return bw.Flush()
}

// Summary counts what a chunking run produced
type Summary struct {
	Files      int                    `json:"files"`
	Chunks     int                    `json:"chunks"`
	ByLanguage map[types.Language]int `json:"by_language"`
}

// Summarize builds a Summary for files processed and the chunks they yielded
func Summarize(files int, chunks []*types.Chunk) Summary {
	s := Summary{Files: files, Chunks: len(chunks), ByLanguage: map[types.Language]int{}}
	for _, c := range chunks {
		s.ByLanguage[c.Language]++
	}
	return s
}

// String renders the one-line report printed by `chunk --summary`
func (s Summary) String() string {
	langs := make([]string, 0, len(s.ByLanguage))
	for lang := range s.ByLanguage {
		langs = append(langs, string(lang))
	}
	sort.Strings(langs)

	parts := make([]string, len(langs))
	for i, lang := range langs {
		parts[i] = fmt.Sprintf("%s: %d", lang, s.ByLanguage[types.Language(lang)])
	}

	return fmt.Sprintf("Processed %d file(s); produced %d chunk(s). By language: {%s}",
		s.Files, s.Chunks, strings.Join(parts, ", "))
}
