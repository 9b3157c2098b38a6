//go:build !unix

package filelock

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// A lock file whose holder crashed without removing it must not block every
// later acquisition forever.
func TestStaleLockFileIsReclaimed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json.lock")
	if err := os.WriteFile(path, []byte("99999\n"), 0o644); err != nil {
		t.Fatalf("write leftover lock file: %v", err)
	}
	old := time.Now().Add(-staleAfter - time.Minute)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("backdate lock file: %v", err)
	}

	acquired := make(chan *Lock, 1)
	go func() {
		l, err := Acquire(path)
		if err != nil {
			t.Errorf("Acquire failed: %v", err)
		}
		acquired <- l
	}()

	select {
	case l := <-acquired:
		if l != nil {
			if err := l.Unlock(); err != nil {
				t.Fatalf("Unlock failed: %v", err)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Acquire still spinning on a stale lock file")
	}
}

// A fresh lock file belongs to a live holder and must still block.
func TestFreshLockFileBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json.lock")
	if err := os.WriteFile(path, []byte("99999\n"), 0o644); err != nil {
		t.Fatalf("write lock file: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		l, err := Acquire(path)
		if err == nil {
			_ = l.Unlock()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("Acquire succeeded while a fresh lock file was held")
	case <-time.After(200 * time.Millisecond):
	}
	// Holder releases; the waiter gets through.
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove lock file: %v", err)
	}
	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("Acquire did not proceed after the lock file was removed")
	}
}
