package sandbox

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFS(t *testing.T) *FS {
	t.Helper()
	root := t.TempDir()
	fs, err := New(root, nil)
	require.NoError(t, err)
	return fs
}

func TestWriteReadRoundTrip(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.Write("a/b/c.txt", "hello"))
	got, err := fs.Read("a/b/c.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestRejectsAbsolutePath(t *testing.T) {
	fs := newTestFS(t)
	err := fs.Write("/etc/passwd", "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPathEscape)
}

func TestRejectsTraversalEscape(t *testing.T) {
	fs := newTestFS(t)
	err := fs.Write("../evil.txt", "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPathEscape)
	assert.NoFileExists(t, filepath.Join(fs.Root(), "..", "evil.txt"))
}

func TestDeleteIsIdempotent(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.Delete("does-not-exist.txt"))
	require.NoError(t, fs.Delete("does-not-exist.txt"))
}

func TestDirectoryTreeExcludesVCSAndDeps(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.Write(".git/HEAD", "ref: refs/heads/main"))
	require.NoError(t, fs.Write("node_modules/pkg/index.js", "x"))
	require.NoError(t, fs.Write("src/main.go", "package main"))

	tree, err := fs.DirectoryTreeMarkdown()
	require.NoError(t, err)
	assert.NotContains(t, tree, ".git")
	assert.NotContains(t, tree, "node_modules")
	assert.Contains(t, tree, "main.go")
}

func TestApplyAtomicFileUpdatesRollsBackOnFailure(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.Write("a.py", "original_a"))

	// Force a failure: "blocked" is a file, so "blocked/b.py" cannot be
	// resolved and the update is refused before any file is written.
	blocker := filepath.Join(fs.Root(), "blocked")
	require.NoError(t, fs.Write("blocked", "i am a file, not a dir"))

	updates := map[string]string{
		"a.py":          "new_a",
		"blocked/b.py": "malformed-fails-phase2",
	}
	result, err := fs.ApplyAtomicFileUpdates(updates)
	require.Error(t, err)
	assert.False(t, result.OK)

	got, readErr := fs.Read("a.py")
	require.NoError(t, readErr)
	assert.Equal(t, "original_a", got, "a.py must be restored to its original content")
	assert.FileExists(t, blocker)
}

func TestApplyAtomicFileUpdatesSuccess(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.Write("a.py", "original_a"))

	result, err := fs.ApplyAtomicFileUpdates(map[string]string{
		"a.py": "new_a",
		"b.py": "new_b",
	})
	require.NoError(t, err)
	assert.True(t, result.OK)

	a, _ := fs.Read("a.py")
	b, _ := fs.Read("b.py")
	assert.Equal(t, "new_a", a)
	assert.Equal(t, "new_b", b)
}

func TestApplyUnifiedDiffExactOffset(t *testing.T) {
	content := "line1\nline2\nline3\n"
	diff := "@@ -2,1 +2,1 @@\n-line2\n+LINE2\n"
	out, err := ApplyUnifiedDiff(content, diff)
	require.NoError(t, err)
	assert.Equal(t, "line1\nLINE2\nline3\n", out)
}

func TestApplyUnifiedDiffFuzzyFallback(t *testing.T) {
	// Stated offset (line 5) no longer matches; the hunk's anchor should
	// still be located by content.
	content := "a\nb\nc\nline2\nd\n"
	diff := "@@ -5,1 +5,1 @@\n-line2\n+LINE2\n"
	out, err := ApplyUnifiedDiff(content, diff)
	require.NoError(t, err)
	assert.Contains(t, out, "LINE2")
}

func TestApplySearchReplaceExact(t *testing.T) {
	content := "def add(a, b):\n    return a - b\n"
	patch := "<<<<<<< SEARCH\n    return a - b\n=======\n    return a + b\n>>>>>>> REPLACE\n"
	out, err := ApplySearchReplace(content, patch)
	require.NoError(t, err)
	assert.Contains(t, out, "return a + b")
}

func TestApplySearchReplaceWhitespaceInsensitive(t *testing.T) {
	content := "def add(a, b):\n\treturn a - b\n"
	patch := "<<<<<<< SEARCH\n    return a - b\n=======\n    return a + b\n>>>>>>> REPLACE\n"
	out, err := ApplySearchReplace(content, patch)
	require.NoError(t, err)
	assert.Contains(t, out, "return a + b")
}

func TestApplySearchReplaceFailureReportsSimilarity(t *testing.T) {
	content := "def add(a, b):\n    return a - b\n"
	patch := "<<<<<<< SEARCH\n    return totally_different_expression\n=======\n    x\n>>>>>>> REPLACE\n"
	_, err := ApplySearchReplace(content, patch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "distance=")
	assert.Contains(t, err.Error(), "excerpt=")
}
