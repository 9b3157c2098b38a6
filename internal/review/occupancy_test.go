package review

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock drives Store.now for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestAcquireNext(t *testing.T) {
	t.Run("hands out ascending free records", func(t *testing.T) {
		s := newTestStore(t, testRecords(), Config{})
		idxA, recA, versionA, ok := s.AcquireNext("tab-a", "alice")
		if !ok || idxA != 0 {
			t.Fatalf("tab-a got (%d, %v)", idxA, ok)
		}
		if recA == nil || recA.RefA != "Likutei Halakhot.1.1" {
			t.Fatalf("recA = %+v", recA)
		}
		if versionA != s.Version() {
			t.Fatalf("version = %q, want the store's fingerprint %q", versionA, s.Version())
		}
		idxB, _, _, ok := s.AcquireNext("tab-b", "bob")
		if !ok || idxB != 1 {
			t.Fatalf("tab-b got (%d, %v), want (1, true)", idxB, ok)
		}
	})

	t.Run("skips the session's reviewed records", func(t *testing.T) {
		s := newTestStore(t, testRecords(), Config{SaveThreshold: 100})
		idx, _, _, ok := s.AcquireNext("tab-a", "alice")
		if !ok || idx != 0 {
			t.Fatalf("got (%d, %v)", idx, ok)
		}
		if _, err := s.ApplyUpdate(0, map[string]any{"Status": "done"}, "", "alice", "tab-a"); err != nil {
			t.Fatalf("ApplyUpdate failed: %v", err)
		}
		idx, _, _, ok = s.AcquireNext("tab-a", "alice")
		if !ok || idx != 1 {
			t.Fatalf("got (%d, %v), want (1, true)", idx, ok)
		}
	})

	t.Run("reacquiring releases the previous claim", func(t *testing.T) {
		s := newTestStore(t, testRecords(), Config{})
		if idx, _, _, ok := s.AcquireNext("tab-a", "alice"); !ok || idx != 0 {
			t.Fatalf("got (%d, %v)", idx, ok)
		}
		// Without an update, the same record is still the session's next.
		if idx, _, _, ok := s.AcquireNext("tab-a", "alice"); !ok || idx != 0 {
			t.Fatalf("got (%d, %v), want (0, true)", idx, ok)
		}
	})

	t.Run("none available when everything is reviewed or occupied", func(t *testing.T) {
		s := newTestStore(t, testRecords()[:1], Config{SaveThreshold: 100})
		if _, _, _, ok := s.AcquireNext("tab-a", "alice"); !ok {
			t.Fatal("tab-a should get record 0")
		}
		// The only record is occupied by tab-a.
		if _, _, _, ok := s.AcquireNext("tab-b", "bob"); ok {
			t.Fatal("tab-b got a record that is occupied")
		}
		if _, err := s.ApplyUpdate(0, map[string]any{"Status": "done"}, "", "alice", "tab-a"); err != nil {
			t.Fatalf("ApplyUpdate failed: %v", err)
		}
		// Reviewed by tab-a, free for tab-b.
		if _, _, _, ok := s.AcquireNext("tab-a", "alice"); ok {
			t.Fatal("tab-a got a record it already reviewed")
		}
		if idx, _, _, ok := s.AcquireNext("tab-b", "bob"); !ok || idx != 0 {
			t.Fatalf("tab-b got (%d, %v), want (0, true)", idx, ok)
		}
	})

	t.Run("never hands the same record to two live sessions", func(t *testing.T) {
		s := newTestStore(t, testRecords(), Config{})
		seen := make(map[int]string)
		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, token := range []string{"t1", "t2", "t3"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				idx, _, _, ok := s.AcquireNext(token, token)
				if !ok {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				if holder, dup := seen[idx]; dup {
					t.Errorf("record %d handed to both %s and %s", idx, holder, token)
				}
				seen[idx] = token
			}()
		}
		wg.Wait()
		if len(seen) != 3 {
			t.Fatalf("assigned %d records to 3 sessions, want 3", len(seen))
		}
	})
}

func TestExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := newTestStore(t, testRecords(), Config{InactivityWindow: time.Minute})
	s.now = clock.Now

	t.Run("abandoned occupancy is released for others", func(t *testing.T) {
		if idx, _, _, ok := s.AcquireNext("tab-a", "alice"); !ok || idx != 0 {
			t.Fatalf("got (%d, %v)", idx, ok)
		}
		clock.Advance(2 * time.Minute)
		if idx, _, _, ok := s.AcquireNext("tab-b", "bob"); !ok || idx != 0 {
			t.Fatalf("tab-b got (%d, %v), want record 0 after tab-a expired", idx, ok)
		}
	})

	t.Run("touch keeps a session alive", func(t *testing.T) {
		if idx, _, _, ok := s.AcquireNext("tab-b", "bob"); !ok || idx != 0 {
			t.Fatalf("got (%d, %v)", idx, ok)
		}
		clock.Advance(45 * time.Second)
		s.Touch("tab-b", "bob")
		clock.Advance(45 * time.Second)
		// Less than a minute since the touch: record 0 is still bob's.
		if _, _, err := s.Get(0, "tab-c", "carol"); !errors.Is(err, ErrOccupied) {
			t.Fatalf("err = %v, want ErrOccupied", err)
		}
	})

	t.Run("expiry forgets the reviewed set", func(t *testing.T) {
		clock.Advance(time.Hour)
		if _, err := s.ApplyUpdate(1, map[string]any{"Status": "done"}, "", "dora", "tab-d"); err != nil {
			t.Fatalf("ApplyUpdate failed: %v", err)
		}
		clock.Advance(time.Hour)
		// A fresh session under the same expired token starts over.
		if idx, _, _, ok := s.AcquireNext("tab-d", "dora"); !ok || idx != 0 {
			t.Fatalf("got (%d, %v), want (0, true)", idx, ok)
		}
	})
}

func TestRelease(t *testing.T) {
	s := newTestStore(t, testRecords(), Config{})
	if idx, _, _, ok := s.AcquireNext("tab-a", "alice"); !ok || idx != 0 {
		t.Fatalf("got (%d, %v)", idx, ok)
	}
	s.Release("tab-a")
	if _, _, err := s.Get(0, "tab-b", "bob"); err != nil {
		t.Fatalf("record 0 still occupied after release: %v", err)
	}
	// Releasing an unknown token is a no-op.
	s.Release("tab-x")
}
