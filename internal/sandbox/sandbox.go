// Package sandbox enforces filesystem containment for tool execution. Every
// path-typed tool argument must resolve inside one of the configured root
// directories before the tool's handler runs.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrAccessDenied is returned when a resolved path escapes every configured
// root. Callers convert it into a failure result, never into a crash.
var ErrAccessDenied = errors.New("access denied")

// ErrCriticalFile is returned when a delete targets a protected file.
var ErrCriticalFile = errors.New("refusing to delete critical file")

// Sandbox holds the configured roots plus the backup and protection policy
// applied to mutating operations.
type Sandbox struct {
	roots     []string
	critical  map[string]bool
	backupDir string
}

// New creates a sandbox over one or more root directories. Roots are made
// absolute at construction; relative roots are resolved against the working
// directory. Critical names are matched against the file base name.
func New(roots []string, criticalFiles []string, backupDir string) (*Sandbox, error) {
	if len(roots) == 0 {
		return nil, errors.New("sandbox requires at least one root")
	}
	s := &Sandbox{critical: make(map[string]bool, len(criticalFiles))}
	for _, r := range roots {
		abs, err := filepath.Abs(expandHome(r))
		if err != nil {
			return nil, fmt.Errorf("resolve sandbox root %q: %w", r, err)
		}
		s.roots = append(s.roots, resolveSymlinks(filepath.Clean(abs)))
	}
	for _, name := range criticalFiles {
		name = strings.TrimSpace(name)
		if name != "" {
			s.critical[name] = true
		}
	}
	if backupDir == "" {
		backupDir = filepath.Join(s.roots[0], ".backups")
	}
	s.backupDir = expandHome(backupDir)
	return s, nil
}

// Roots returns the configured root directories.
func (s *Sandbox) Roots() []string {
	out := make([]string, len(s.roots))
	copy(out, s.roots)
	return out
}

// Resolve normalizes a path (home expansion, absolute, symlink traversal,
// dot-dot elimination) and verifies it sits under a configured root. On
// escape it returns ErrAccessDenied wrapped with the offending path.
func (s *Sandbox) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty path", ErrAccessDenied)
	}
	abs, err := filepath.Abs(expandHome(path))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrAccessDenied, path)
	}
	resolved := resolveSymlinks(filepath.Clean(abs))
	for _, root := range s.roots {
		if within(root, resolved) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("%w: %s is outside the sandbox", ErrAccessDenied, path)
}

// IsCritical reports whether the path's base name is on the protected list.
func (s *Sandbox) IsCritical(path string) bool {
	return s.critical[filepath.Base(path)]
}

// BackupIfExists persists a timestamped copy of path under the backup
// directory before a mutation. Missing files are not an error; a failed copy
// is, because mutating without the backup would violate the write contract.
func (s *Sandbox) BackupIfExists(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read for backup: %w", err)
	}
	if err := os.MkdirAll(s.backupDir, 0755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	name := fmt.Sprintf("%s.%d.bak", filepath.Base(path), time.Now().UnixNano())
	dst := filepath.Join(s.backupDir, name)
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return dst, nil
}

// resolveSymlinks evaluates symlinks on the deepest existing ancestor so
// that paths to not-yet-created files still normalize correctly.
func resolveSymlinks(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	dir, base := filepath.Split(path)
	dir = filepath.Clean(dir)
	if dir == path {
		return path
	}
	return filepath.Join(resolveSymlinks(dir), base)
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
