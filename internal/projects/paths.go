package projects

import (
	"path/filepath"
	"strings"
)

// PathMapper converts between root-relative and absolute file paths. Survey
// archives move between network shares, so all persisted output uses
// root-relative paths and this mapper restores absolute ones on demand.
type PathMapper struct {
	root string
}

// NewPathMapper returns a mapper anchored at the given root directory.
func NewPathMapper(root string) PathMapper {
	return PathMapper{root: filepath.Clean(root)}
}

// Root returns the anchor directory.
func (m PathMapper) Root() string { return m.root }

// Rel converts an absolute path under the root to a root-relative path.
// Paths outside the root are returned unchanged.
func (m PathMapper) Rel(abs string) string {
	if abs == "" {
		return ""
	}
	rel, err := filepath.Rel(m.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return abs
	}
	return rel
}

// Abs converts a root-relative path back to an absolute path. Paths that are
// already absolute are returned unchanged.
func (m PathMapper) Abs(rel string) string {
	if rel == "" {
		return ""
	}
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(m.root, rel)
}
