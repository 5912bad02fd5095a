package tools

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/stepwise-ai/stepwise/internal/registry"
)

const searchResultLimit = 200

func registerFilesystem(r *registry.Registry, deps Deps) {
	sb := deps.Sandbox

	r.Register(registry.Spec{
		Name:        "read_file",
		Description: "Read the contents of a file at the specified path.",
		Params: []registry.Param{
			{Name: "path", Required: true, Path: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			path, err := sb.Resolve(registry.GetString(args, "path", ""))
			if err != nil {
				return "", err
			}
			content, err := os.ReadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					return "", fmt.Errorf("file not found: %s", path)
				}
				if os.IsPermission(err) {
					return "", fmt.Errorf("permission denied: %s", path)
				}
				return "", fmt.Errorf("reading file: %w", err)
			}
			return string(content), nil
		},
	})

	r.Register(registry.Spec{
		Name:        "write_file",
		Description: "Write content to a file. Creates parent directories if needed; an existing file is backed up first.",
		Params: []registry.Param{
			{Name: "path", Required: true, Path: true},
			{Name: "content", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			path, err := sb.Resolve(registry.GetString(args, "path", ""))
			if err != nil {
				return "", err
			}
			content := registry.GetString(args, "content", "")
			backup, err := sb.BackupIfExists(path)
			if err != nil {
				return "", err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return "", fmt.Errorf("creating directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return "", fmt.Errorf("writing file: %w", err)
			}
			msg := fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), path)
			if backup != "" {
				msg += fmt.Sprintf(" (previous version backed up to %s)", backup)
			}
			return msg, nil
		},
	})

	r.Register(registry.Spec{
		Name:        "create_file",
		Description: "Create a new file with the given content. Fails if the file already exists.",
		Params: []registry.Param{
			{Name: "path", Required: true, Path: true},
			{Name: "content", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			path, err := sb.Resolve(registry.GetString(args, "path", ""))
			if err != nil {
				return "", err
			}
			if _, statErr := os.Stat(path); statErr == nil {
				return "", fmt.Errorf("file already exists: %s (use write_file to overwrite)", path)
			}
			content := registry.GetString(args, "content", "")
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return "", fmt.Errorf("creating directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return "", fmt.Errorf("writing file: %w", err)
			}
			return fmt.Sprintf("Created %s (%d bytes)", path, len(content)), nil
		},
	})

	r.Register(registry.Spec{
		Name:        "delete_file",
		Description: "Delete a file. Protected files are refused; everything else is backed up before removal.",
		Params: []registry.Param{
			{Name: "path", Required: true, Path: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			path, err := sb.Resolve(registry.GetString(args, "path", ""))
			if err != nil {
				return "", err
			}
			if sb.IsCritical(path) {
				return "", fmt.Errorf("refusing to delete protected file: %s", filepath.Base(path))
			}
			if _, err := os.Stat(path); os.IsNotExist(err) {
				return "", fmt.Errorf("file not found: %s", path)
			}
			backup, err := sb.BackupIfExists(path)
			if err != nil {
				return "", err
			}
			if err := os.Remove(path); err != nil {
				return "", fmt.Errorf("deleting file: %w", err)
			}
			return fmt.Sprintf("Deleted %s (backed up to %s)", path, backup), nil
		},
	})

	r.Register(registry.Spec{
		Name:        "list_files",
		Description: "List the contents of a directory.",
		Params: []registry.Param{
			{Name: "path", Required: false, Path: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			raw := registry.GetString(args, "path", "")
			if raw == "" {
				raw = sb.Roots()[0]
			}
			path, err := sb.Resolve(raw)
			if err != nil {
				return "", err
			}
			entries, err := os.ReadDir(path)
			if err != nil {
				if os.IsNotExist(err) {
					return "", fmt.Errorf("directory not found: %s", path)
				}
				return "", fmt.Errorf("reading directory: %w", err)
			}
			var result strings.Builder
			result.WriteString(fmt.Sprintf("Contents of %s:\n", path))
			for _, entry := range entries {
				if entry.IsDir() {
					result.WriteString(fmt.Sprintf("  [DIR]  %s/\n", entry.Name()))
					continue
				}
				if info, err := entry.Info(); err == nil {
					result.WriteString(fmt.Sprintf("  [FILE] %s (%d bytes)\n", entry.Name(), info.Size()))
				} else {
					result.WriteString(fmt.Sprintf("  [FILE] %s\n", entry.Name()))
				}
			}
			return result.String(), nil
		},
	})

	r.Register(registry.Spec{
		Name:        "search_files",
		Description: "Recursively search a directory for files whose name matches a glob pattern or contains a substring.",
		Params: []registry.Param{
			{Name: "pattern", Required: true},
			{Name: "path", Required: false, Path: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			pattern := registry.GetString(args, "pattern", "")
			if pattern == "" {
				return "", fmt.Errorf("pattern is required")
			}
			raw := registry.GetString(args, "path", "")
			if raw == "" {
				raw = sb.Roots()[0]
			}
			root, err := sb.Resolve(raw)
			if err != nil {
				return "", err
			}
			var matches []string
			walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				if d.IsDir() {
					if d.Name() == ".backups" || strings.HasPrefix(d.Name(), ".git") {
						return filepath.SkipDir
					}
					return nil
				}
				if matchName(d.Name(), pattern) {
					matches = append(matches, p)
					if len(matches) >= searchResultLimit {
						return filepath.SkipAll
					}
				}
				return nil
			})
			if walkErr != nil {
				return "", fmt.Errorf("searching: %w", walkErr)
			}
			if len(matches) == 0 {
				return fmt.Sprintf("No files matching %q under %s", pattern, root), nil
			}
			return fmt.Sprintf("Found %d file(s) matching %q:\n%s", len(matches), pattern, strings.Join(matches, "\n")), nil
		},
	})
}

// matchName tries the pattern as a glob first and falls back to a
// case-insensitive substring match when the glob is malformed or misses.
func matchName(name, pattern string) bool {
	if ok, err := filepath.Match(pattern, name); err == nil && ok {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(pattern))
}
