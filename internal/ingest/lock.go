package ingest

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
)

// LockFile is the writer-lock file name under the storage root.
const LockFile = ".supaquery.lock"

// StorageLock is a cross-process lock on the storage root. The indexes
// tolerate many reader processes but exactly one writer; every mutating
// Ingestor holds this lock for its lifetime.
type StorageLock struct {
	fl     *flock.Flock
	locked bool
}

// NewStorageLock creates the lock for the given storage root. The lock is
// not held until Acquire.
func NewStorageLock(dir string) *StorageLock {
	return &StorageLock{fl: flock.New(filepath.Join(dir, LockFile))}
}

// Acquire takes the exclusive lock without blocking. A lock held by another
// process is ERR_202 with the holder's path in the message.
func (l *StorageLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.fl.Path()), 0o755); err != nil {
		return sqerrors.New(sqerrors.ErrCodeCatalogFailed, "creating storage root", err)
	}
	ok, err := l.fl.TryLock()
	if err != nil {
		return sqerrors.New(sqerrors.ErrCodeStorageLocked, "acquiring storage lock", err)
	}
	if !ok {
		return sqerrors.New(sqerrors.ErrCodeStorageLocked,
			"storage root is locked by another process", nil).
			WithDetail("lock_file", l.fl.Path()).
			WithSuggestion("stop the other SupaQuery writer or point --storage elsewhere")
	}
	l.locked = true
	return nil
}

// Release drops the lock. Safe to call when the lock was never acquired.
func (l *StorageLock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	return l.fl.Unlock()
}

// Path returns the lock file path.
func (l *StorageLock) Path() string { return l.fl.Path() }
