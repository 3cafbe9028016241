package sandbox

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// CommitResult reports the outcome of an atomic multi-file update.
type CommitResult struct {
	OK           bool
	WrittenPaths []string
	// Backups maps each touched path to its in-memory prior content. A path
	// with no entry here had no prior content (it was newly created).
	Backups map[string]string
}

// ApplyAtomicFileUpdates writes every (path, content) pair in updates, or
// none of them. Phase 1 backs up existing targets' content in memory and
// to a per-commit sidecar directory; Phase 2 writes the new contents. On
// any Phase 2 failure it restores every file from backup, removes files
// that had no prior content, then returns ok=false with the originating
// error, leaving the tree bit-exact as it was before the call.
func (f *FS) ApplyAtomicFileUpdates(updates map[string]string) (CommitResult, error) {
	result := CommitResult{Backups: make(map[string]string, len(updates))}
	paths := sortedKeys(updates)

	backupDir, err := f.newCommitBackupDir()
	if err != nil {
		return result, err
	}
	defer os.RemoveAll(backupDir) //nolint:errcheck // best-effort cleanup of sidecar backups

	absPaths := make(map[string]string, len(paths))
	hadPrior := make(map[string]bool, len(paths))

	// Phase 1: backup.
	for _, rel := range paths {
		abs, err := f.resolve(rel)
		if err != nil {
			return result, err
		}
		absPaths[rel] = abs

		content, readErr := os.ReadFile(abs) //nolint:gosec // contained by resolve
		switch {
		case readErr == nil:
			hadPrior[rel] = true
			result.Backups[rel] = string(content)
			if err := writeBackupSidecar(backupDir, rel, content); err != nil {
				return result, err
			}
		case os.IsNotExist(readErr):
			hadPrior[rel] = false
		default:
			return result, fmt.Errorf("sandbox: backing up %q: %w", rel, readErr)
		}
	}

	// Phase 2: write.
	for _, rel := range paths {
		abs := absPaths[rel]
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			f.rollback(absPaths, hadPrior, result.Backups, result.WrittenPaths)
			return CommitResult{OK: false, Backups: result.Backups}, fmt.Errorf("sandbox: mkdir for %q: %w", rel, err)
		}
		if err := os.WriteFile(abs, []byte(updates[rel]), 0o644); err != nil { //nolint:gosec // contained by resolve
			f.rollback(absPaths, hadPrior, result.Backups, result.WrittenPaths)
			return CommitResult{OK: false, Backups: result.Backups}, fmt.Errorf("sandbox: writing %q: %w", rel, err)
		}
		result.WrittenPaths = append(result.WrittenPaths, rel)
	}

	result.OK = true
	return result, nil
}

// Rollback restores every path in writtenPaths to its prior content from
// backups (or deletes it, if backups has no entry for it) and is exposed for the Remediation Manager to call
// after a failed verification step.
func (f *FS) Rollback(backups map[string]string, writtenPaths []string) error {
	hadPrior := make(map[string]bool, len(backups))
	absPaths := make(map[string]string, len(writtenPaths))
	for _, rel := range writtenPaths {
		abs, err := f.resolve(rel)
		if err != nil {
			return err
		}
		absPaths[rel] = abs
		if _, ok := backups[rel]; ok {
			hadPrior[rel] = true
		}
	}
	return f.rollback(absPaths, hadPrior, backups, writtenPaths)
}

func (f *FS) rollback(absPaths map[string]string, hadPrior map[string]bool, backups map[string]string, writtenPaths []string) error {
	var firstErr error
	for _, rel := range writtenPaths {
		abs, ok := absPaths[rel]
		if !ok {
			continue
		}
		if hadPrior[rel] {
			if err := os.WriteFile(abs, []byte(backups[rel]), 0o644); err != nil { //nolint:gosec // contained path
				if firstErr == nil {
					firstErr = fmt.Errorf("sandbox: restoring %q during rollback: %w", rel, err)
				}
			}
		} else if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("sandbox: removing %q during rollback: %w", rel, err)
			}
		}
	}
	return firstErr
}

// newCommitBackupDir creates a per-commit sidecar directory under the
// sandbox's own .sandbox-tmp area, keeping backups inside the managed
// tree rather than system /tmp.
func (f *FS) newCommitBackupDir() (string, error) {
	dir := filepath.Join(f.root, ".sandbox-tmp", fmt.Sprintf("commit-%s", uuid.NewString()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("sandbox: creating commit backup dir: %w", err)
	}
	return dir, nil
}

func writeBackupSidecar(backupDir, rel string, content []byte) error {
	sidecar := filepath.Join(backupDir, rel+".bak")
	if err := os.MkdirAll(filepath.Dir(sidecar), 0o755); err != nil {
		return fmt.Errorf("sandbox: creating backup sidecar dir for %q: %w", rel, err)
	}
	if err := os.WriteFile(sidecar, content, 0o644); err != nil { //nolint:gosec // scratch backup, same trust level
		return fmt.Errorf("sandbox: writing backup sidecar for %q: %w", rel, err)
	}
	return nil
}
