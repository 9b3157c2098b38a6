// Package models defines the core data structures shared across the application.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// Diff field errors returned by [Record.ApplyDiff].
var (
	// ErrUnknownField is returned when a diff names a field that does not exist.
	ErrUnknownField = errors.New("unknown record field")
	// ErrInvalidFieldValue is returned when a diff value has the wrong type.
	ErrInvalidFieldValue = errors.New("invalid field value")
	// ErrInvalidStatus is returned when a diff carries an unrecognized status.
	ErrInvalidStatus = errors.New("invalid status")
)

// Status is the review state of a record.
type Status string

const (
	// StatusPending marks a record that has not been reviewed yet.
	StatusPending Status = "pending"
	// StatusDone marks a record whose link has been fixed.
	StatusDone Status = "done"
	// StatusVerified marks a record confirmed correct as-is.
	StatusVerified Status = "verified"
	// StatusRejected marks a record whose match is wrong.
	StatusRejected Status = "rejected"
)

// ParseStatus parses a raw status value. The legacy dataset mixes
// capitalization ("Pending", "done"), so matching is case-insensitive.
// The empty string parses as pending.
func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(StatusPending), "":
		return StatusPending, nil
	case string(StatusDone):
		return StatusDone, nil
	case string(StatusVerified):
		return StatusVerified, nil
	case string(StatusRejected):
		return StatusRejected, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// Normalize maps legacy status spellings onto the canonical lowercase values.
// Unrecognized values are returned unchanged so they stay visible in stats.
func (s Status) Normalize() Status {
	if n, err := ParseStatus(string(s)); err == nil {
		return n
	}
	return s
}

// Record is one reviewable link-comparison entry of the dataset. Identity is
// the record's position in the dataset; there is no embedded ID.
//
// JSON field names follow the legacy dataset file so existing files load
// unchanged.
type Record struct {
	RefA      string `json:"RefA"`
	RefALink  string `json:"RefALink,omitempty"`
	RefB      string `json:"RefB"`
	RefBLink  string `json:"RefBLink,omitempty"`
	RefBExact string `json:"RefBExact,omitempty"`
	Snippet   string `json:"Snippet,omitempty"`
	MatchType string `json:"match_type,omitempty"`
	Status    Status `json:"Status,omitempty"`
	// FixedBy and FixedAt are provenance stamps set by the server whenever
	// Status changes value. They are never accepted from a client diff.
	FixedBy string `json:"fixed_by,omitempty"`
	FixedAt string `json:"fixed_at,omitempty"`
}

// Clone returns a copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	return &c
}

// ApplyDiff applies a field diff to the record and reports whether Status
// changed value. Values for fixed_by and fixed_at are discarded; an unknown
// field name fails the whole diff.
//
// The receiver is mutated even when an error is returned partway through.
// Callers that need all-or-nothing application should apply to a clone.
func (r *Record) ApplyDiff(diff map[string]any) (statusChanged bool, err error) {
	for field, value := range diff {
		switch field {
		case "RefA":
			if r.RefA, err = stringValue(field, value); err != nil {
				return false, err
			}
		case "RefALink":
			if r.RefALink, err = stringValue(field, value); err != nil {
				return false, err
			}
		case "RefB":
			if r.RefB, err = stringValue(field, value); err != nil {
				return false, err
			}
		case "RefBLink":
			if r.RefBLink, err = stringValue(field, value); err != nil {
				return false, err
			}
		case "RefBExact":
			if r.RefBExact, err = stringValue(field, value); err != nil {
				return false, err
			}
		case "Snippet":
			if r.Snippet, err = stringValue(field, value); err != nil {
				return false, err
			}
		case "match_type":
			if r.MatchType, err = stringValue(field, value); err != nil {
				return false, err
			}
		case "Status":
			raw, serr := stringValue(field, value)
			if serr != nil {
				return false, serr
			}
			status, serr := ParseStatus(raw)
			if serr != nil {
				return false, serr
			}
			if status != r.Status.Normalize() {
				statusChanged = true
			}
			r.Status = status
		case "fixed_by", "fixed_at":
			// Server-stamped provenance; silently dropped from client diffs.
		default:
			return false, fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
	}
	return statusChanged, nil
}

func stringValue(field string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: field %q expects a string, got %T", ErrInvalidFieldValue, field, value)
	}
	return s, nil
}

// Stats aggregates dataset counts. All counts are read under the store lock
// so they describe one consistent snapshot.
type Stats struct {
	TotalRecords   int            `json:"total_records"`
	ByStatus       map[string]int `json:"by_status"`
	ByMatchType    map[string]int `json:"by_match_type"`
	UnsavedChanges int            `json:"unsaved_changes"`
}

// Health describes the current state of the store for monitoring.
type Health struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Records       int     `json:"records"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}
