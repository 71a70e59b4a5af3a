package chunker

import (
	"strings"
	"testing"

	"github.com/dshills/coldstart/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		ext  string
		want types.Language
	}{
		{".py", types.LangPython},
		{".PY", types.LangPython},
		{".Py", types.LangPython},
		{"py", types.LangPython},
		{".js", types.LangJavaScript},
		{".ts", types.LangTypeScript},
		{".go", types.LangGo},
		{".rs", types.LangRust},
		{".java", types.LangJava},
		{".cpp", types.LangCPP},
		{".c", types.LangC},
		{".md", types.LangMarkdown},
		{".yaml", types.LangYAML},
		{".YML", types.LangYAML},
		{".json", types.LangJSON},
		{".xyz", types.LangText},
		{"", types.LangText},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			got := Classify(tt.ext)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Classify(tt.ext), "classification must be stable")
		})
	}
}

func TestClassifyPath(t *testing.T) {
	assert.Equal(t, types.LangGo, ClassifyPath("internal/chunker/chunker.go"))
	assert.Equal(t, types.LangText, ClassifyPath("Makefile"))
	assert.Equal(t, types.LangJSON, ClassifyPath("archive.tar.JSON"))
}

func TestKnownExtensions(t *testing.T) {
	exts := KnownExtensions()
	assert.Len(t, exts, 12)
	assert.Contains(t, exts, ".yml")
	assert.IsNonDecreasing(t, exts)
	for _, ext := range exts {
		assert.NotEqual(t, types.LangText, Classify(ext))
	}
}

func TestDefaultPoliciesCoverStructuralLanguages(t *testing.T) {
	table := policyTable(DefaultPolicies())

	for _, lang := range types.Languages {
		_, ok := table[lang]
		assert.Equal(t, lang.IsStructural(), ok, "policy registration for %s", lang)
	}
}

func TestPolicies(t *testing.T) {
	tests := []struct {
		name   string
		policy DeclarationPolicy
		line   string
		want   bool
	}{
		{"python def", PythonPolicy, "def foo():", true},
		{"python class", PythonPolicy, "class Bar(Base):", true},
		{"python async", PythonPolicy, "async def run():", true},
		{"python indented method", PythonPolicy, "    def baz(self):", false},
		{"python decorator", PythonPolicy, "@property", false},
		{"python identifier prefix", PythonPolicy, "define = 1", false},

		{"go func", GoPolicy, "func main() {", true},
		{"go method", GoPolicy, "func (s *Server) Start() error {", true},
		{"go type", GoPolicy, "type Server struct {", true},
		{"go var", GoPolicy, "var x = 1", false},
		{"go indented", GoPolicy, "\tfunc() {}()", false},

		{"js function", JavaScriptPolicy, "function render(x) {", true},
		{"js export async", JavaScriptPolicy, "export async function load() {", true},
		{"js export default class", JavaScriptPolicy, "export default class App {", true},
		{"js generator", JavaScriptPolicy, "function* ids() {", true},
		{"js const arrow", JavaScriptPolicy, "const f = () => 1", false},
		{"js functional name", JavaScriptPolicy, "functional()", false},

		{"ts interface", TypeScriptPolicy, "export interface Props {", true},
		{"ts type alias", TypeScriptPolicy, "type ID = string", true},
		{"ts enum", TypeScriptPolicy, "enum Color {", true},
		{"ts abstract class", TypeScriptPolicy, "export abstract class Shape {", true},
		{"ts import", TypeScriptPolicy, "import { x } from './x'", false},

		{"java public class", JavaPolicy, "public class Main {", true},
		{"java final class", JavaPolicy, "public final class Util {", true},
		{"java interface", JavaPolicy, "interface Shape {", true},
		{"java record", JavaPolicy, "public record Point(int x, int y) {", true},
		{"java annotation", JavaPolicy, "public @interface Marker {", true},
		{"java member", JavaPolicy, "    public void run() {", false},
		{"java import", JavaPolicy, "import java.util.List;", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.IsDeclaration(tt.line))
		})
	}
}

func TestNewPatternPolicy_Invalid(t *testing.T) {
	_, err := NewPatternPolicy(types.LangGo, `^(func`)
	assert.Error(t, err)
}

func TestStructuralChunks_CRLF(t *testing.T) {
	content := "def a():\r\n    pass\r\n\r\ndef b():\r\n    pass\r\n"
	chunks := structuralChunks(content, types.LangPython, PythonPolicy, 200)

	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 2, chunks[0].EndLine)
	assert.Equal(t, 4, chunks[1].StartLine)
	assert.Equal(t, 5, chunks[1].EndLine)
}

func TestStructuralChunks_NoDeclarations(t *testing.T) {
	chunks := structuralChunks("import os\nprint(os.name)\n", types.LangPython, PythonPolicy, 200)
	assert.Empty(t, chunks)
}

func TestStructuralChunks_LastDeclarationWithoutNewline(t *testing.T) {
	chunks := structuralChunks("def a():\n    pass\n\ndef b(): return 2", types.LangPython, PythonPolicy, 200)

	require.Len(t, chunks, 2)
	assert.Equal(t, "def b(): return 2", chunks[1].Content)
	assert.Equal(t, 4, chunks[1].StartLine)
	assert.Equal(t, 4, chunks[1].EndLine)
}

func TestStructuralChunks_TokenLimitBoundary(t *testing.T) {
	// "def f():" plus 13 words = 15 words, exactly 1.5 * 10
	exact := "def f():\n" + strings.TrimSpace(strings.Repeat("w ", 13))
	chunks := structuralChunks(exact, types.LangPython, PythonPolicy, 10)
	require.Len(t, chunks, 1)
	assert.Equal(t, 15, chunks[0].TokenCount())

	over := exact + " w"
	assert.Empty(t, structuralChunks(over, types.LangPython, PythonPolicy, 10))
}

func TestWindowGeometry(t *testing.T) {
	tests := []struct {
		name       string
		maxTokens  int
		overlap    int
		wantWindow int
		wantStride int
	}{
		{"defaults", 200, 20, 20, 18},
		{"scenario", 100, 10, 10, 9},
		{"tiny budget", 5, 0, 1, 1},
		{"overlap floor", 100, 0, 10, 9},
		{"overlap near window", 100, 99, 10, 1},
		{"overlap above window", 50, 200, 5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			window, stride := windowGeometry(tt.maxTokens, tt.overlap)
			assert.Equal(t, tt.wantWindow, window)
			assert.Equal(t, tt.wantStride, stride)
		})
	}
}

func TestWindowChunks_Coverage(t *testing.T) {
	for _, total := range []int{1, 9, 10, 11, 12, 19, 20, 37, 100} {
		lines := make([]string, total)
		for i := range lines {
			lines[i] = "content"
		}
		chunks := windowChunks(strings.Join(lines, "\n"), types.LangText, 100, 10)

		require.NotEmpty(t, chunks, "total=%d", total)
		assert.Equal(t, total, chunks[len(chunks)-1].EndLine, "total=%d", total)
		for i := 1; i < len(chunks); i++ {
			assert.GreaterOrEqual(t, chunks[i].StartLine, chunks[i-1].StartLine)
			assert.LessOrEqual(t, chunks[i].StartLine, chunks[i-1].EndLine+1, "gap between windows")
		}
	}
}

func TestWindowChunks_DegenerateStrideTerminates(t *testing.T) {
	chunks := windowChunks("a\nb\nc", types.LangText, 5, 50)

	require.Len(t, chunks, 3)
	for i, ch := range chunks {
		assert.Equal(t, i+1, ch.StartLine)
		assert.Equal(t, i+1, ch.EndLine)
	}
}

func TestWindowChunks_SkipsBlankWindows(t *testing.T) {
	content := "x\n" + strings.Repeat("\n", 30) + "y"
	chunks := windowChunks(content, types.LangText, 100, 10)

	for _, ch := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(ch.Content))
	}
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 32, chunks[len(chunks)-1].EndLine)
}

func TestWindowChunks_Empty(t *testing.T) {
	assert.Empty(t, windowChunks("", types.LangText, 200, 20))
}

func TestChunkID(t *testing.T) {
	id := ChunkID("a.py", 1, "def a(): pass")
	assert.Len(t, id, 12)
	assert.Equal(t, id, ChunkID("a.py", 1, "def a(): pass"))
	assert.NotEqual(t, id, ChunkID("a.py", 2, "def a(): pass"))
	assert.NotEqual(t, id, ChunkID("b.py", 1, "def a(): pass"))
	assert.NotEqual(t, id, ChunkID("a.py", 1, "def b(): pass"))
}
