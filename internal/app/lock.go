package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/ibeckermayer/credify/internal/config"
)

// ErrAlreadyRunning is returned when another daemon holds the lock.
var ErrAlreadyRunning = errors.New("another credify instance is already running")

// LockPath is the single-instance lock file, next to the database.
func LockPath(cfg *config.Config) string {
	return filepath.Join(filepath.Dir(cfg.Storage.DatabasePath), "credify.lock")
}

// AcquireLock takes the single-instance lock. Callers release it with
// Unlock when the daemon exits.
func AcquireLock(cfg *config.Config) (*flock.Flock, error) {
	path := LockPath(cfg)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return lock, nil
}
