// Persistence: serialization, the content fingerprint, and the save cycle.
// Save cycles run under Store.mu so the serialized snapshot can never be
// torn by a concurrent update.

package review

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// serializeLocked renders the dataset in its on-disk form: a UTF-8 JSON array
// of record objects, indented for hand inspection. The same bytes feed both
// persistence and the version fingerprint, so a file round-trip reproduces an
// identical fingerprint.
func (s *Store) serializeLocked() ([]byte, error) {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize dataset: %w", err)
	}
	return data, nil
}

// refreshVersionLocked recomputes the fingerprint from current content.
func (s *Store) refreshVersionLocked() error {
	data, err := s.serializeLocked()
	if err != nil {
		return err
	}
	sum := sha256.Sum256(data)
	s.version = hex.EncodeToString(sum[:])
	return nil
}

// saveLocked runs one persistence cycle. The modification counter is reset
// only after the atomic write completed, so a failure leaves it non-zero and
// the next triggering modification retries.
func (s *Store) saveLocked() error {
	data, err := s.serializeLocked()
	if err != nil {
		return err
	}
	if err := s.write(s.path, data); err != nil {
		return fmt.Errorf("failed to persist dataset: %w", err)
	}
	s.modCount = 0
	return nil
}

// ForceSave runs a persistence cycle immediately, regardless of the
// modification counter. It is the explicit save path for privileged callers
// and for shutdown.
func (s *Store) ForceSave() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// Snapshot returns the serialized dataset including unsaved in-memory
// changes, for download without forcing a save.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serializeLocked()
}
