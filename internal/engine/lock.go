package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ltp-backup/ltp/internal/ltperrors"
)

// lockFileName is the advisory lock held for the duration of an operation
// that mutates a target directory's snapshots.
const lockFileName = ".ltp-lock"

// Lock is a held advisory lock on a target directory. Unlike the CLI
// teacher's workspace.LockFile (flock-based, auto-released on process
// exit), this is a plain O_EXCL create-and-hold: the file's mere existence
// is the lock, and Release removes it. A process that dies holding the
// lock leaves a stale lock file behind — acceptable here since Create, the
// only operation that takes it, is a short-lived foreground operation, not
// a long-running daemon.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock takes the advisory lock on targetDir, failing fast if another
// operation already holds it.
func AcquireLock(targetDir string) (*Lock, error) {
	path := filepath.Join(targetDir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, &ltperrors.IOFailure{Path: path, Err: fmt.Errorf("another operation holds the lock on %s", targetDir)}
		}
		return nil, &ltperrors.IOFailure{Path: path, Err: err}
	}
	return &Lock{path: path, file: f}, nil
}

// Release drops the lock, removing the lock file.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = l.file.Close()
	return os.Remove(l.path)
}
