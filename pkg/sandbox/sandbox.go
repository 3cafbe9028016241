// Package sandbox implements the project-root-bounded filesystem view every
// other subsystem reads and writes through: path containment,
// directory-tree rendering, two patch formats with fuzzy fallback, and
// atomic multi-file commits with backup/rollback.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"orchestrator/pkg/logx"
)

// ErrPathEscape is returned whenever a resolved path would leave the
// sandbox root. Fatal for the current
// operation; never silently dropped.
var ErrPathEscape = errors.New("sandbox: path escapes project root")

// skipDirs lists directory names directory_tree_markdown excludes.
var skipDirs = map[string]bool{ //nolint:gochecknoglobals
	".git":         true,
	"__pycache__":  true,
	"node_modules": true,
	".venv":        true,
	"venv":         true,
	"env":          true,
}

// FS is a filesystem view rooted at a fixed project directory. Every
// operation validates that the effective path stays within Root.
type FS struct {
	root string
	log  *logx.Logger
}

// New creates an FS rooted at root. root is resolved to an absolute,
// symlink-evaluated path once at construction time so every later
// containment check compares against a stable base.
func New(root string, log *logx.Logger) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("sandbox: resolving root %q: %w", root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			resolved = abs
		} else {
			return nil, fmt.Errorf("sandbox: evaluating root symlinks %q: %w", abs, err)
		}
	}
	return &FS{root: resolved, log: log}, nil
}

// Root returns the sandbox's absolute project root.
func (f *FS) Root() string { return f.root }

// resolve validates rel and returns the absolute path it refers to inside
// the sandbox. Absolute input paths are rejected outright; relative paths are joined to root and checked for traversal escape,
// including through symlinks that resolve outside root (invariant 3).
func (f *FS) resolve(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("sandbox: %w: empty path", ErrPathEscape)
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("sandbox: %w: absolute path %q rejected", ErrPathEscape, rel)
	}

	joined := filepath.Join(f.root, rel)
	if !within(f.root, joined) {
		return "", fmt.Errorf("sandbox: %w: %q resolves outside root", ErrPathEscape, rel)
	}

	// Walk the chain of existing ancestors and reject a symlink whose
	// target would escape root, even if the final leaf component does not
	// yet exist (e.g. a write target).
	cur := f.root
	relParts := strings.Split(filepath.ToSlash(rel), "/")
	for _, part := range relParts {
		if part == "" || part == "." {
			continue
		}
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if err != nil {
			if os.IsNotExist(err) {
				break // remaining components don't exist yet; nothing more to check
			}
			return "", fmt.Errorf("sandbox: stat %q: %w", cur, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := filepath.EvalSymlinks(cur)
			if err != nil {
				return "", fmt.Errorf("sandbox: resolving symlink %q: %w", cur, err)
			}
			if !within(f.root, target) {
				return "", fmt.Errorf("sandbox: %w: symlink %q escapes root", ErrPathEscape, cur)
			}
		}
	}

	return joined, nil
}

// within reports whether candidate's ancestry includes root.
func within(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

// Read returns the text content of the file at rel.
func (f *FS) Read(rel string) (string, error) {
	abs, err := f.resolve(rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs) //nolint:gosec // contained by resolve
	if err != nil {
		return "", fmt.Errorf("sandbox: read %q: %w", rel, err)
	}
	return string(data), nil
}

// Write writes content to rel, creating parent directories as needed.
func (f *FS) Write(rel, content string) error {
	abs, err := f.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("sandbox: mkdir for %q: %w", rel, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil { //nolint:gosec // contained by resolve
		return fmt.Errorf("sandbox: write %q: %w", rel, err)
	}
	return nil
}

// Delete removes rel. Deleting a nonexistent file succeeds.
func (f *FS) Delete(rel string) error {
	abs, err := f.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("sandbox: delete %q: %w", rel, err)
	}
	return nil
}

// ExistsFile reports whether rel exists and is a regular file.
func (f *FS) ExistsFile(rel string) bool {
	abs, err := f.resolve(rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && !info.IsDir()
}

// ExistsDir reports whether rel exists and is a directory.
func (f *FS) ExistsDir(rel string) bool {
	abs, err := f.resolve(rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.IsDir()
}

// Mkdir creates rel and any missing parents.
func (f *FS) Mkdir(rel string) error {
	abs, err := f.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("sandbox: mkdir %q: %w", rel, err)
	}
	return nil
}

// DirectoryTreeMarkdown renders the project tree as a markdown-style
// indented list, excluding .git, virtualenv-like dirs, __pycache__, and
// node_modules.
func (f *FS) DirectoryTreeMarkdown() (string, error) {
	var b strings.Builder
	err := filepath.WalkDir(f.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == f.root {
			return nil
		}
		name := d.Name()
		if d.IsDir() && skipDirs[name] {
			return filepath.SkipDir
		}
		rel, relErr := filepath.Rel(f.root, path)
		if relErr != nil {
			return relErr
		}
		depth := strings.Count(rel, string(os.PathSeparator))
		prefix := strings.Repeat("  ", depth)
		if d.IsDir() {
			b.WriteString(fmt.Sprintf("%s- %s/\n", prefix, name))
		} else {
			b.WriteString(fmt.Sprintf("%s- %s\n", prefix, name))
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("sandbox: walking %q: %w", f.root, err)
	}
	return b.String(), nil
}

// sortedKeys returns the map keys in a deterministic order, used anywhere
// iteration order over a path map would otherwise be nondeterministic
// (backup phase, write phase).
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
