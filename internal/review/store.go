// Package review implements the single-writer data-consistency engine behind
// the HTTP layer: the in-memory record store, optimistic version gate,
// occupancy tracking with inactivity expiry, and modification-count-triggered
// batched persistence through atomic file writes.
//
// All shared state lives behind one exclusive lock owned by [Store]. Every
// operation that reads or mutates records, occupancy, or the modification
// counter takes that lock for its whole duration, so operations are totally
// ordered and aggregate reads always see a consistent snapshot.
package review

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/breslov-archive/linkreview/internal/atomicfile"
	"github.com/breslov-archive/linkreview/internal/filelock"
	"github.com/breslov-archive/linkreview/internal/models"
)

// Default tuning values. Both are operator configuration with no derived
// "correct" value; see Config.
const (
	DefaultSaveThreshold    = 3
	DefaultInactivityWindow = 5 * time.Minute
)

// Config controls persistence batching and session expiry.
type Config struct {
	// SaveThreshold is the number of applied modifications that triggers a
	// persistence cycle.
	SaveThreshold int
	// InactivityWindow is how long a session may stay idle before its
	// occupancy is released and the session expires.
	InactivityWindow time.Duration
}

func (c *Config) withDefaults() {
	if c.SaveThreshold <= 0 {
		c.SaveThreshold = DefaultSaveThreshold
	}
	if c.InactivityWindow <= 0 {
		c.InactivityWindow = DefaultInactivityWindow
	}
}

// Store owns the dataset, its version fingerprint, session occupancy, and the
// modification counter. Create one with New and share it by reference.
type Store struct {
	mu sync.Mutex

	path string
	cfg  Config

	records []*models.Record
	version string

	// modCount is the number of updates applied since the last successful
	// persistence cycle. It is reset only after fsync and rename completed,
	// so a failed save is retried on the next triggering modification.
	modCount int

	sessions  map[string]*session
	occupants map[int]string // record index -> session token

	started time.Time

	// Seams for tests.
	now   func() time.Time
	write func(path string, data []byte) error
}

// New loads the dataset at path, or starts empty if the file does not exist.
// The initial load holds the cross-process file lock; failure to read or
// parse the file is fatal here rather than during steady-state operation.
func New(path string, cfg Config) (*Store, error) {
	cfg.withDefaults()
	s := &Store{
		path:      path,
		cfg:       cfg,
		sessions:  make(map[string]*session),
		occupants: make(map[int]string),
		now:       time.Now,
		write:     atomicfile.WriteFile,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	s.started = s.now()
	return s, nil
}

func (s *Store) load() error {
	lock, err := filelock.Acquire(atomicfile.LockPath(s.path))
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	data, err := os.ReadFile(s.path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		if os.IsNotExist(err) {
			s.records = []*models.Record{}
			return s.refreshVersionLocked()
		}
		return fmt.Errorf("failed to read dataset %s: %w", s.path, err)
	}

	var records []*models.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to parse dataset %s: %w", s.path, err)
	}
	if records == nil {
		records = []*models.Record{}
	}
	s.records = records
	return s.refreshVersionLocked()
}

// Version returns the current content fingerprint.
func (s *Store) Version() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Records returns a deep copy of the dataset together with the version
// fingerprint it reflects.
func (s *Store) Records() ([]*models.Record, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Record, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out, s.version
}

// Get returns a copy of the record at index together with the version
// fingerprint of the dataset it was read from. The pair comes from one
// critical section: a client that echoes the returned version in a later
// update is guaranteed to conflict if anything changed in between.
//
// With a non-empty token the call claims the record for that session,
// releasing the session's previous claim; a record held by a different live
// session fails with ErrOccupied instead of being stolen. With an empty
// token this is a plain read.
func (s *Store) Get(index int, token, username string) (*models.Record, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.expireLocked(now)

	if index < 0 || index >= len(s.records) {
		return nil, "", fmt.Errorf("%w: index %d", ErrNotFound, index)
	}
	if holder, ok := s.occupants[index]; ok && holder != token {
		return nil, "", fmt.Errorf("%w: index %d", ErrOccupied, index)
	}
	if token != "" {
		sess := s.sessionLocked(token, username, now)
		s.assignLocked(sess, token, index)
	}
	return s.records[index].Clone(), s.version, nil
}

// ApplyUpdate applies a field diff to the record at index after checking the
// caller's expected version against the current fingerprint inside the same
// critical section that performs the mutation.
//
// A Status change stamps fixed_by/fixed_at from the caller's identity and the
// current time, overriding anything the diff carried. A successful update
// bumps the modification counter and may trigger a persistence cycle; a
// failed cycle is logged and retried later, never surfaced through this path.
//
// An empty expectedVersion skips the conflict check (legacy clients).
func (s *Store) ApplyUpdate(index int, diff map[string]any, expectedVersion, username, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.expireLocked(now)

	if index < 0 || index >= len(s.records) {
		return "", fmt.Errorf("%w: index %d", ErrNotFound, index)
	}
	if expectedVersion != "" && expectedVersion != s.version {
		return "", ErrConflict
	}

	updated := s.records[index].Clone()
	statusChanged, err := updated.ApplyDiff(diff)
	if err != nil {
		return "", err
	}
	if statusChanged {
		updated.FixedBy = username
		updated.FixedAt = now.Format(time.RFC3339)
	}

	prev := s.records[index]
	s.records[index] = updated
	if err := s.refreshVersionLocked(); err != nil {
		s.records[index] = prev
		return "", err
	}

	// Assigned -> Reviewed: the session is done with this record and will
	// not be handed it again.
	if token != "" {
		sess := s.sessionLocked(token, username, now)
		sess.reviewed[index] = struct{}{}
		if sess.assigned == index {
			sess.assigned = -1
			if s.occupants[index] == token {
				delete(s.occupants, index)
			}
		}
	}

	s.modCount++
	if s.modCount >= s.cfg.SaveThreshold {
		if err := s.saveLocked(); err != nil {
			slog.Error("Autosave failed, will retry on next modification", "path", s.path, "unsaved", s.modCount, "err", err)
		}
	}
	return s.version, nil
}

// ReplaceAll swaps in a whole new dataset (admin upload) and persists it
// immediately. Record indices are renumbered, so all occupancy claims and
// per-session reviewed sets are cleared.
//
// An empty expectedVersion skips the conflict check. If persistence fails the
// new dataset stays in memory, the modification counter is left non-zero so a
// later cycle retries, and the error is returned to the privileged caller.
func (s *Store) ReplaceAll(records []*models.Record, expectedVersion string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expectedVersion != "" && expectedVersion != s.version {
		return "", ErrConflict
	}

	replacement := make([]*models.Record, len(records))
	for i, r := range records {
		replacement[i] = r.Clone()
	}

	prevRecords, prevVersion := s.records, s.version
	s.records = replacement
	if err := s.refreshVersionLocked(); err != nil {
		s.records, s.version = prevRecords, prevVersion
		return "", err
	}

	s.occupants = make(map[int]string)
	for _, sess := range s.sessions {
		sess.assigned = -1
		sess.reviewed = make(map[int]struct{})
	}

	s.modCount++
	if err := s.saveLocked(); err != nil {
		return s.version, err
	}
	return s.version, nil
}

// Stats computes aggregate counts under the store lock so that the counts,
// version, and records are one consistent snapshot.
func (s *Store) Stats() models.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := models.Stats{
		TotalRecords:   len(s.records),
		ByStatus:       make(map[string]int),
		ByMatchType:    make(map[string]int),
		UnsavedChanges: s.modCount,
	}
	for _, r := range s.records {
		st.ByStatus[string(r.Status.Normalize())]++
		if r.MatchType != "" {
			st.ByMatchType[r.MatchType]++
		}
	}
	return st
}

// Health reports the fingerprint, record count, and process uptime.
func (s *Store) Health() models.Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.Health{
		Status:        "ok",
		Version:       s.version,
		Records:       len(s.records),
		UptimeSeconds: s.now().Sub(s.started).Seconds(),
	}
}
