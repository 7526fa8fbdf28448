package ingest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
)

func TestStorageLock_AcquireRelease(t *testing.T) {
	dir := t.TempDir()
	lock := NewStorageLock(dir)

	require.NoError(t, lock.Acquire())
	assert.Equal(t, filepath.Join(dir, LockFile), lock.Path())
	require.NoError(t, lock.Release())

	// Reacquirable after release.
	require.NoError(t, lock.Acquire())
	require.NoError(t, lock.Release())
}

func TestStorageLock_SecondWriterRejected(t *testing.T) {
	dir := t.TempDir()
	first := NewStorageLock(dir)
	require.NoError(t, first.Acquire())
	defer first.Release()

	second := NewStorageLock(dir)
	err := second.Acquire()
	require.Error(t, err)
	assert.Equal(t, sqerrors.ErrCodeStorageLocked, sqerrors.GetCode(err))
}

func TestStorageLock_ReleaseWithoutAcquireIsNoop(t *testing.T) {
	lock := NewStorageLock(t.TempDir())
	assert.NoError(t, lock.Release())
}

func TestStorageLock_CreatesMissingRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "storage")
	lock := NewStorageLock(dir)
	require.NoError(t, lock.Acquire())
	require.NoError(t, lock.Release())
}
