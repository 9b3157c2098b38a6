// Package atomicfile writes whole files so that a concurrent reader observes
// either the previous complete content or the new complete content, never a
// partial write, and a crash mid-write cannot corrupt the target.
//
// Writes go to a temporary file in the same directory which is flushed to
// stable storage and then renamed onto the target path. The rename is the
// commit point. A cross-process lock file serializes writers of the same
// path, including sibling tools outside this process.
package atomicfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/breslov-archive/linkreview/internal/filelock"
)

// LockPath returns the lock file guarding writes to path.
func LockPath(path string) string {
	return path + ".lock"
}

// BackupPath returns the location of the previous-content copy kept alongside
// path for manual recovery.
func BackupPath(path string) string {
	return path + ".backup"
}

// WriteFile atomically replaces the content of path with data.
//
// The previous content, if any, is first copied to BackupPath(path). On any
// failure before the final rename the target file is left untouched and the
// temporary file is removed.
func WriteFile(path string, data []byte) error {
	lock, err := filelock.Acquire(LockPath(path))
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()
	return writeLocked(path, data)
}

func writeLocked(path string, data []byte) error {
	if err := writeBackup(path); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		return errors.Join(fmt.Errorf("failed to write temp file: %w", err), tmp.Close(), os.Remove(tmpPath))
	}
	if err := tmp.Sync(); err != nil {
		return errors.Join(fmt.Errorf("failed to sync temp file: %w", err), tmp.Close(), os.Remove(tmpPath))
	}
	if err := tmp.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close temp file: %w", err), os.Remove(tmpPath))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Join(fmt.Errorf("failed to rename temp file onto %s: %w", path, err), os.Remove(tmpPath))
	}
	return nil
}

// writeBackup copies the current content of path to its backup location,
// forcing it to stable storage. Missing target means nothing to back up.
func writeBackup(path string) error {
	prev, err := os.ReadFile(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read previous content of %s: %w", path, err)
	}

	f, err := os.OpenFile(BackupPath(path), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644) //nolint:gosec // G302,G304: backup sits next to the data file
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	if _, err := f.Write(prev); err != nil {
		return errors.Join(fmt.Errorf("failed to write backup file: %w", err), f.Close())
	}
	if err := f.Sync(); err != nil {
		return errors.Join(fmt.Errorf("failed to sync backup file: %w", err), f.Close())
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close backup file: %w", err)
	}
	return nil
}
