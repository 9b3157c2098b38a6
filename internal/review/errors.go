package review

import "errors"

var (
	// ErrNotFound is returned when a record index is out of range.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when the caller's expected version does not
	// match the current dataset fingerprint. The caller must refetch and
	// retry with a fresh diff; the store never retries on its own.
	ErrConflict = errors.New("version conflict")
	// ErrOccupied is returned when a record is currently assigned to a
	// different live session.
	ErrOccupied = errors.New("record occupied by another session")
)
