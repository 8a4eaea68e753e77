// Package security validates client-supplied names before they touch the
// evidence directory.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned for names that would resolve outside the
// evidence directory.
var ErrUnsafePath = errors.New("unsafe path")

// maxNameLen bounds sanitised upload names.
const maxNameLen = 128

// WithinDirectory reports an error unless path resolves inside dir once
// both are made absolute and symlinks are followed. Paths that do not
// exist yet are resolved through their closest existing parent.
func WithinDirectory(path, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}
	realDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory symlinks: %w", err)
	}

	realPath := resolveExisting(absPath)
	rel, err := filepath.Rel(realDir, realPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsafePath, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s escapes %s", ErrUnsafePath, path, dir)
	}
	return nil
}

// resolveExisting follows symlinks in the longest existing prefix of p.
func resolveExisting(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	for dir := filepath.Dir(p); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rel, _ := filepath.Rel(dir, p)
			return filepath.Join(resolved, rel)
		}
		if dir == filepath.Dir(dir) {
			return p
		}
	}
}

// EvidencePath joins a single evidence file name onto dir. Names with
// separators, parent references or a leading dot are rejected.
func EvidencePath(dir, name string) (string, error) {
	switch {
	case name == "", name == ".", name == "..":
		return "", fmt.Errorf("%w: empty name", ErrUnsafePath)
	case strings.ContainsAny(name, `/\`):
		return "", fmt.Errorf("%w: %q contains a separator", ErrUnsafePath, name)
	case strings.HasPrefix(name, "."):
		return "", fmt.Errorf("%w: %q is hidden", ErrUnsafePath, name)
	}
	p := filepath.Join(dir, name)
	if err := WithinDirectory(p, dir); err != nil {
		return "", err
	}
	return p, nil
}

// SanitizeFilename reduces an uploaded file name to letters, digits, dot,
// underscore and dash, collapsing other runs to one underscore.
func SanitizeFilename(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range filepath.Base(s) {
		if b.Len() >= maxNameLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
			underscore = false
		case !underscore:
			b.WriteRune('_')
			underscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "upload"
	}
	return out
}

// HasExtension reports whether name ends in one of exts, ignoring case.
// exts include the dot.
func HasExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
