package indexer

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultIgnorePatterns are skipped during directory walks unless replaced
var DefaultIgnorePatterns = []string{
	".git",
	"__pycache__",
	"node_modules",
	".venv",
	"venv",
	"dist",
	"build",
	".pytest_cache",
	".mypy_cache",
	"*.pyc",
	"*.pyo",
	"*.egg-info",
	".DS_Store",
	"Thumbs.db",
	"vendor",
}

// DiscoverOptions controls how paths are expanded into files
type DiscoverOptions struct {
	Recursive      bool
	Extensions     []string // empty means every extension
	IgnorePatterns []string // nil means DefaultIgnorePatterns
	Logger         *slog.Logger
}

func (o DiscoverOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o DiscoverOptions) ignorePatterns() []string {
	if o.IgnorePatterns == nil {
		return DefaultIgnorePatterns
	}
	return o.IgnorePatterns
}

// extensionSet normalizes extensions to lowercase with a leading dot
func (o DiscoverOptions) extensionSet() map[string]struct{} {
	if len(o.Extensions) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(o.Extensions))
	for _, ext := range o.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}

// Discover expands paths into a deduplicated list of files. Files given
// directly pass through the extension filter only. Directories are walked,
// one level deep unless Recursive, skipping hidden directories and anything
// matching an ignore pattern. Missing paths are logged and skipped.
func Discover(paths []string, opts DiscoverOptions) ([]string, error) {
	logger := opts.logger()
	exts := opts.extensionSet()
	ignore := opts.ignorePatterns()

	seen := make(map[string]struct{})
	var files []string
	add := func(path string) {
		if !matchesExtension(path, exts) {
			return
		}
		key := canonicalKey(path)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		files = append(files, path)
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("path not found", "path", root)
			continue
		}
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			add(root)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				logger.Warn("skipping unreadable path", "path", path, "error", err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if path == root {
				return nil
			}

			name := d.Name()
			if d.IsDir() {
				if !opts.Recursive || isHidden(name) || shouldIgnore(root, path, name, ignore) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || shouldIgnore(root, path, name, ignore) {
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return files, nil
}

// ShouldIndex reports whether a single path passes the extension filter and
// ignore patterns relative to root. Used for filesystem events.
func ShouldIndex(root, path string, opts DiscoverOptions) bool {
	if !matchesExtension(path, opts.extensionSet()) {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	ignore := opts.ignorePatterns()
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for i, part := range parts {
		if i < len(parts)-1 && isHidden(part) {
			return false
		}
		if matchAny(part, ignore) {
			return false
		}
	}
	return !matchAny(filepath.ToSlash(rel), ignore)
}

func matchesExtension(path string, exts map[string]struct{}) bool {
	if exts == nil {
		return true
	}
	_, ok := exts[strings.ToLower(filepath.Ext(path))]
	return ok
}

func isHidden(name string) bool {
	return len(name) > 1 && strings.HasPrefix(name, ".") && name != ".."
}

// shouldIgnore matches the base name, or the root-relative path for
// patterns containing a separator
func shouldIgnore(root, path, name string, patterns []string) bool {
	if matchAny(name, patterns) {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return matchAny(filepath.ToSlash(rel), patterns)
}

func matchAny(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func canonicalKey(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
