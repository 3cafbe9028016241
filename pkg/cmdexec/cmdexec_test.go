package cmdexec

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T, blocklist []BlockRule) *Executor {
	t.Helper()
	root := t.TempDir()
	ex, err := New(root, DefaultAllowlist(), blocklist, 2*time.Second, nil)
	require.NoError(t, err)
	return ex
}

func TestRunAllowedCommand(t *testing.T) {
	ex := newTestExecutor(t, nil)
	res, err := ex.Run(context.Background(), []string{"echo", "hi"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, OutcomeRan, res.Outcome)
	assert.Contains(t, res.Stdout, "hi")
}

func TestRejectsMetacharacter(t *testing.T) {
	ex := newTestExecutor(t, nil)
	res, err := ex.Run(context.Background(), []string{"echo", "hello", ">", "out.txt"})
	require.Error(t, err)
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.NoFileExists(t, filepath.Join(ex.Root(), "out.txt"))
}

func TestRejectsNonAllowlistedCommand(t *testing.T) {
	ex := newTestExecutor(t, nil)
	_, err := ex.Run(context.Background(), []string{"rm", "-rf", "/"})
	require.Error(t, err)
}

func TestRejectsPathEscapeArgument(t *testing.T) {
	ex := newTestExecutor(t, nil)
	_, err := ex.Run(context.Background(), []string{"cat", "../../../../etc/passwd"})
	require.Error(t, err)
}

func TestBlocklistSubstitutes(t *testing.T) {
	ex := newTestExecutor(t, []BlockRule{
		{Pattern: regexp.MustCompile(`^git push --force`), Replacement: []string{"echo", "blocked-force-push"}},
	})
	res, err := ex.Run(context.Background(), []string{"git", "push", "--force"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSubstituted, res.Outcome)
	assert.Contains(t, res.Stdout, "blocked-force-push")
}

func TestCdUpdatesRootWithoutEscaping(t *testing.T) {
	ex := newTestExecutor(t, nil)
	require.NoError(t, os.Mkdir(filepath.Join(ex.Root(), "sub"), 0o755))

	_, err := ex.Run(context.Background(), []string{"cd", "sub"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ex.origRoot, "sub"), ex.Root())

	_, err = ex.Run(context.Background(), []string{"cd", "../../../.."})
	require.Error(t, err)
}

func TestTimeoutReturnsSentinel(t *testing.T) {
	root := t.TempDir()
	ex, err := New(root, []string{"sleep"}, nil, 10*time.Millisecond, nil)
	require.NoError(t, err)
	res, _ := ex.Run(context.Background(), []string{"sleep", "5"})
	assert.Equal(t, TimeoutSentinel, res.ExitCode)
}

func TestExitCodeNonZeroIsNotAnError(t *testing.T) {
	root := t.TempDir()
	ex, err := New(root, []string{"sh"}, nil, 2*time.Second, nil)
	require.NoError(t, err)
	res, err := ex.Run(context.Background(), []string{"sh", "-c", "exit 7"})
	require.NoError(t, err)
	assert.Equal(t, 7, res.ExitCode)
}
