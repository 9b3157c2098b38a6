// Package filelock provides a blocking, exclusive lock tied to a lock file on
// disk, serializing access to a shared resource across processes.
//
// The lock is advisory: every writer of the guarded resource must go through
// the same lock path for the exclusion to hold. There is no internal timeout;
// callers that need a deadline must enforce it themselves.
package filelock

import (
	"fmt"
	"os"
)

// Lock is a held exclusive lock. Release it with Unlock.
type Lock struct {
	f    *os.File
	path string
}

// Acquire takes an exclusive lock on the lock file at path, creating it if
// needed. It blocks until the lock is available.
func Acquire(path string) (*Lock, error) {
	f, err := acquire(path)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", path, err)
	}
	return &Lock{f: f, path: path}, nil
}

// Unlock releases the lock. Calling Unlock more than once is a no-op.
func (l *Lock) Unlock() error {
	if l.f == nil {
		return nil
	}
	f := l.f
	l.f = nil
	if err := release(f, l.path); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.path, err)
	}
	return nil
}
