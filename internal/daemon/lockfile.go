package daemon

import (
	"errors"
	"fmt"
	"os"
)

// ErrLockHeld means another daemon owns the lock.
var ErrLockHeld = errors.New("daemon already running (lock held)")

type LockFile struct {
	path string
	file *os.File
}

func NewLockFile(path string) *LockFile {
	return &LockFile{path: path}
}

func (l *LockFile) Acquire() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := lockFile(f); err != nil {
		f.Close()
		return err
	}

	l.file = f
	return nil
}

func (l *LockFile) Release() error {
	if l.file == nil {
		return nil
	}

	unlockFile(l.file)

	err := l.file.Close()
	l.file = nil

	os.Remove(l.path)

	return err
}

func (l *LockFile) IsLocked() bool {
	return l.file != nil
}
