package api

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// canonical resolves p to an absolute path with symlinks evaluated. A path
// that does not exist yet keeps its cleaned absolute form.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// resolveRoots canonicalizes the configured roots, dropping blanks
func resolveRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		if strings.TrimSpace(r) == "" {
			continue
		}
		c, err := canonical(r)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator)) && !filepath.IsAbs(rel)
}

// checkPath rejects reads of host files outside the allowed roots. With no
// roots configured every path is rejected and only inline content works.
func (s *Server) checkPath(p string) error {
	forbidden := &Error{
		Status:  fiber.StatusForbidden,
		Message: "Path is outside the allowed roots",
		Details: map[string]any{"path": p},
	}
	c, err := canonical(p)
	if err != nil {
		return forbidden
	}
	for _, root := range s.roots {
		if within(root, c) {
			return nil
		}
	}
	return forbidden
}
