package runlock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gofrs/flock"

	"axial/internal/logger"
)

var unsafeLockChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// FileLocker takes advisory file locks in a directory. Locks are released by
// the OS if the holding process dies.
type FileLocker struct {
	dir string
}

// NewFileLocker creates a file locker rooted at dir, creating it if needed
func NewFileLocker(dir string) (*FileLocker, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "axial-locks")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return &FileLocker{dir: dir}, nil
}

// Path returns the lock file used for name
func (l *FileLocker) Path(name string) string {
	return filepath.Join(l.dir, unsafeLockChars.ReplaceAllString(name, "_")+".lock")
}

// Acquire tries the lock once and returns ErrLockNotAcquired if it is held
func (l *FileLocker) Acquire(_ context.Context, name string) (func(), error) {
	fl := flock.New(l.Path(name))

	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrLockNotAcquired)
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			logger.Warn("Failed to release file lock", "path", fl.Path(), "error", err)
		}
	}, nil
}
