package indexer

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func discoverTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"), "def a():\n    pass\n")
	writeFile(t, filepath.Join(root, "b.md"), "# notes\n")
	writeFile(t, filepath.Join(root, "README"), "plain\n")
	writeFile(t, filepath.Join(root, "x.pyc"), "bytecode")
	writeFile(t, filepath.Join(root, "sub", "c.go"), "package sub\n")
	writeFile(t, filepath.Join(root, "sub", "deep", "d.GO"), "package deep\n")
	writeFile(t, filepath.Join(root, ".hidden", "e.py"), "x = 1\n")
	writeFile(t, filepath.Join(root, "node_modules", "f.js"), "function f() {}\n")
	writeFile(t, filepath.Join(root, "__pycache__", "g.py"), "x = 1\n")
	return root
}

func rel(t *testing.T, root string, files []string) []string {
	t.Helper()
	out := make([]string, len(files))
	for i, f := range files {
		r, err := filepath.Rel(root, f)
		require.NoError(t, err)
		out[i] = filepath.ToSlash(r)
	}
	return out
}

func TestDiscover(t *testing.T) {
	root := discoverTree(t)

	tests := []struct {
		name string
		opts DiscoverOptions
		want []string
	}{
		{
			name: "top level only",
			opts: DiscoverOptions{},
			want: []string{"README", "a.py", "b.md"},
		},
		{
			name: "recursive",
			opts: DiscoverOptions{Recursive: true},
			want: []string{"README", "a.py", "b.md", "sub/c.go", "sub/deep/d.GO"},
		},
		{
			name: "extension filter is case insensitive",
			opts: DiscoverOptions{Recursive: true, Extensions: []string{"go", ".PY"}},
			want: []string{"a.py", "sub/c.go", "sub/deep/d.GO"},
		},
		{
			name: "custom ignore patterns replace defaults",
			opts: DiscoverOptions{Recursive: true, Extensions: []string{".py", ".js"}, IgnorePatterns: []string{"sub"}},
			want: []string{"__pycache__/g.py", "a.py", "node_modules/f.js"},
		},
		{
			name: "relative path patterns",
			opts: DiscoverOptions{Recursive: true, IgnorePatterns: []string{"sub/deep", "*.md", "README", "*.pyc"}},
			want: []string{"a.py", "__pycache__/g.py", "node_modules/f.js", "sub/c.go"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := Discover([]string{root}, tt.opts)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, rel(t, root, files))
		})
	}
}

func TestDiscover_DefaultIgnores(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "app.py"), "x = 1\n")
	for _, p := range []string{
		"dist/bundle.js",
		"build/lib/app.py",
		"src/build/gen.py",
		"pkg.egg-info/setup.py",
		"src/mod.pyo",
		"src/mod.pyc",
		"Thumbs.db",
		"venv/lib/site.py",
		"vendor/dep.go",
	} {
		writeFile(t, filepath.Join(root, filepath.FromSlash(p)), "ignored\n")
	}

	files, err := Discover([]string{root}, DiscoverOptions{Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/app.py"}, rel(t, root, files))

	for _, name := range []string{"dist", "build", ".pytest_cache", ".mypy_cache", "*.pyo", "*.egg-info", "Thumbs.db"} {
		assert.Contains(t, DefaultIgnorePatterns, name)
	}
}

func TestDiscover_WalkOrderIsLexical(t *testing.T) {
	root := discoverTree(t)
	files, err := Discover([]string{root}, DiscoverOptions{Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"README", "a.py", "b.md", "sub/c.go", "sub/deep/d.GO"}, rel(t, root, files))
}

func TestDiscover_FilesAndDuplicates(t *testing.T) {
	root := discoverTree(t)
	a := filepath.Join(root, "a.py")

	files, err := Discover([]string{a, root, a}, DiscoverOptions{Extensions: []string{".py", ".md"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py", "b.md"}, rel(t, root, files))

	// explicit files still pass through the extension filter
	files, err = Discover([]string{filepath.Join(root, "b.md")}, DiscoverOptions{Extensions: []string{".py"}})
	require.NoError(t, err)
	assert.Empty(t, files)

	// and ignore patterns do not apply to them
	files, err = Discover([]string{filepath.Join(root, "x.pyc")}, DiscoverOptions{})
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestDiscover_MissingPath(t *testing.T) {
	root := discoverTree(t)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	files, err := Discover([]string{filepath.Join(root, "nope.py"), filepath.Join(root, "a.py")}, DiscoverOptions{Logger: logger})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py"}, rel(t, root, files))
	assert.Contains(t, logs.String(), "path not found")
	assert.Contains(t, logs.String(), "nope.py")
}

func TestShouldIndex(t *testing.T) {
	root := "/repo"
	opts := DiscoverOptions{Extensions: []string{".py", ".go"}}

	tests := []struct {
		path string
		want bool
	}{
		{"/repo/a.py", true},
		{"/repo/pkg/b.go", true},
		{"/repo/a.md", false},
		{"/repo/.git/config.py", false},
		{"/repo/node_modules/x/y.py", false},
		{"/repo/__pycache__/mod.py", false},
		{"/repo/.env.py", true},
		{"/elsewhere/a.py", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldIndex(root, filepath.FromSlash(tt.path), opts))
		})
	}
}
