//go:build !unix

package filelock

import (
	"fmt"
	"os"
	"time"
)

// pollInterval is how often the fallback implementation retries creation of
// the lock file while another process holds it.
const pollInterval = 50 * time.Millisecond

// staleAfter is how old an existing lock file must be before it is treated
// as a leftover from a holder that crashed without removing it. Holders only
// keep the lock for the duration of one file replacement, so a file this old
// cannot belong to a live writer.
const staleAfter = 5 * time.Minute

// acquire spins on exclusive creation of the lock file. The file itself is
// the lock: whoever created it holds the lock until the file is removed.
// A lock file older than staleAfter is reclaimed; the O_EXCL create after
// the removal still lets only one waiter win.
func acquire(path string) (*os.File, error) {
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			return f, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		if fi, statErr := os.Stat(path); statErr == nil && time.Since(fi.ModTime()) > staleAfter {
			_ = os.Remove(path)
			continue
		}
		time.Sleep(pollInterval)
	}
}

func release(f *os.File, path string) error {
	if err := f.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}
