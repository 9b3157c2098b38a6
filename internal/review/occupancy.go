// Session and occupancy tracking. Everything here runs under Store.mu; the
// occupancy map and the record slice must be serialized together or two
// sessions could be handed the same index.

package review

import (
	"time"

	"github.com/breslov-archive/linkreview/internal/models"
)

// session is the per-token review state. Sessions are created lazily on the
// first request bearing a new token and expire after the inactivity window.
type session struct {
	username   string
	assigned   int // record index, -1 when unassigned
	lastActive time.Time
	reviewed   map[int]struct{}
}

// AcquireNext hands the session the next eligible record: the lowest index
// not occupied by a different live session and not already reviewed by this
// session. The session's previous claim is released first. The returned
// version is the fingerprint of the dataset the record was read from, taken
// in the same critical section. ok is false when no record is eligible.
func (s *Store) AcquireNext(token, username string) (index int, rec *models.Record, version string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.expireLocked(now)

	sess := s.sessionLocked(token, username, now)
	s.releaseAssignedLocked(sess, token)

	for i := range s.records {
		if holder, held := s.occupants[i]; held && holder != token {
			continue
		}
		if _, done := sess.reviewed[i]; done {
			continue
		}
		s.occupants[i] = token
		sess.assigned = i
		return i, s.records[i].Clone(), s.version, true
	}
	return 0, nil, "", false
}

// Release drops the session's current occupancy without expiring the session.
func (s *Store) Release(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.expireLocked(now)

	sess, ok := s.sessions[token]
	if !ok {
		return
	}
	sess.lastActive = now
	s.releaseAssignedLocked(sess, token)
}

// Touch refreshes the session's activity timestamp, creating the session if
// the token is new.
func (s *Store) Touch(token, username string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionLocked(token, username, s.now())
}

// sessionLocked returns the session for token, creating it if needed, and
// marks it active now.
func (s *Store) sessionLocked(token, username string, now time.Time) *session {
	sess, ok := s.sessions[token]
	if !ok {
		sess = &session{
			assigned: -1,
			reviewed: make(map[int]struct{}),
		}
		s.sessions[token] = sess
	}
	sess.lastActive = now
	if username != "" {
		sess.username = username
	}
	return sess
}

// assignLocked claims index for the session, releasing its previous claim.
// The caller must have verified the index is not held by another session.
func (s *Store) assignLocked(sess *session, token string, index int) {
	if sess.assigned == index {
		return
	}
	s.releaseAssignedLocked(sess, token)
	s.occupants[index] = token
	sess.assigned = index
}

func (s *Store) releaseAssignedLocked(sess *session, token string) {
	if sess.assigned < 0 {
		return
	}
	if s.occupants[sess.assigned] == token {
		delete(s.occupants, sess.assigned)
	}
	sess.assigned = -1
}

// expireLocked removes sessions idle past the inactivity window and frees
// their occupancy. Expiry is evaluated lazily at the start of occupancy
// operations instead of by a background timer, so no extra goroutine
// competes for the lock.
func (s *Store) expireLocked(now time.Time) {
	for token, sess := range s.sessions {
		if now.Sub(sess.lastActive) <= s.cfg.InactivityWindow {
			continue
		}
		if sess.assigned >= 0 && s.occupants[sess.assigned] == token {
			delete(s.occupants, sess.assigned)
		}
		delete(s.sessions, token)
	}
}
