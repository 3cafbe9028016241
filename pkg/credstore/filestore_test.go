package credstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorePutGetDeleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(dir, "correct horse battery staple")

	require.NoError(t, store.Put(ctx, "ANTHROPIC_API_KEY", "  sk-ant-abc123  "))

	v, ok, err := store.Get(ctx, "ANTHROPIC_API_KEY")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sk-ant-abc123", v, "secrets are trimmed on every boundary crossing")

	existed, err := store.Delete(ctx, "ANTHROPIC_API_KEY")
	require.NoError(t, err)
	assert.True(t, existed)

	_, ok, err = store.Get(ctx, "ANTHROPIC_API_KEY")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir(), "pw")

	existed, err := store.Delete(ctx, "never-stored")
	require.NoError(t, err)
	assert.True(t, existed, "deleting a nonexistent key succeeds")
}

func TestFileStoreRejectsEmptySecret(t *testing.T) {
	store := NewFileStore(t.TempDir(), "pw")
	err := store.Put(context.Background(), "KEY", "   ")
	assert.Error(t, err)
}

func TestFileStoreHealthCheck(t *testing.T) {
	store := NewFileStore(t.TempDir(), "pw")
	assert.NoError(t, store.HealthCheck(context.Background()))
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := NewFileStore(dir, "pw")
	require.NoError(t, first.Put(ctx, "K", "v"))

	second := NewFileStore(dir, "pw")
	v, ok, err := second.Get(ctx, "K")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestFileStoreWrongPasswordFails(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := NewFileStore(dir, "pw-one")
	require.NoError(t, first.Put(ctx, "K", "v"))

	second := NewFileStore(dir, "pw-two")
	_, _, err := second.Get(ctx, "K")
	assert.Error(t, err)
}

func TestMemStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	require.NoError(t, store.Put(ctx, "K", " v "))
	v, ok, err := store.Get(ctx, "K")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", v)

	assert.NoError(t, store.HealthCheck(ctx))
}

func TestFileStoreFilePermissions(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, "pw")
	require.NoError(t, store.Put(context.Background(), "K", "v"))

	info, err := os.Stat(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)
	assert.Equal(t, uint32(0o600), uint32(info.Mode().Perm()))
}
