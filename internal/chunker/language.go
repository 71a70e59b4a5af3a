package chunker

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/coldstart/pkg/types"
)

// extensionTable maps lowercase extensions to language tags.
var extensionTable = map[string]types.Language{
	".py":   types.LangPython,
	".js":   types.LangJavaScript,
	".ts":   types.LangTypeScript,
	".go":   types.LangGo,
	".rs":   types.LangRust,
	".java": types.LangJava,
	".cpp":  types.LangCPP,
	".c":    types.LangC,
	".md":   types.LangMarkdown,
	".yaml": types.LangYAML,
	".yml":  types.LangYAML,
	".json": types.LangJSON,
}

// Classify returns the language for a file extension. Matching ignores case
// and a missing leading dot; unknown extensions are LangText.
func Classify(ext string) types.Language {
	ext = normalizeExt(ext)
	if lang, ok := extensionTable[ext]; ok {
		return lang
	}
	return types.LangText
}

// ClassifyPath classifies a path by its final extension.
func ClassifyPath(path string) types.Language {
	return Classify(filepath.Ext(path))
}

// KnownExtensions returns every extension in the table, sorted.
func KnownExtensions() []string {
	exts := make([]string, 0, len(extensionTable))
	for ext := range extensionTable {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
