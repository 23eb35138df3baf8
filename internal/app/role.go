package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"mdnotes/internal/notes"
)

// acquireRole decides whether this process is the main context. The first
// process to take the lock file is main until it exits; later ones are
// secondary and forward sync requests to it. The returned lock is nil for a
// secondary process.
func acquireRole(lockPath string) (notes.Role, *flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return notes.RoleSecondary, nil, fmt.Errorf("creating lock directory: %w", err)
	}

	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return notes.RoleSecondary, nil, fmt.Errorf("locking %s: %w", lockPath, err)
	}
	if !ok {
		return notes.RoleSecondary, nil, nil
	}
	return notes.RoleMain, lock, nil
}
