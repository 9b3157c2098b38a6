//go:build unix

package filelock

import (
	"errors"
	"os"
	"syscall"
)

// acquire opens the lock file and takes a blocking flock(2) exclusive lock.
// flock locks are tied to the open file description, so they also exclude
// other goroutines in the same process that open the file separately.
func acquire(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644) //nolint:gosec // G302,G304: advisory lock file, path comes from configuration
	if err != nil {
		return nil, err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return nil, errors.Join(err, f.Close())
	}
	return f, nil
}

func release(f *os.File, _ string) error {
	err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	return errors.Join(err, f.Close())
}
