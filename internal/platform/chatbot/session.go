package chatbot

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moonraker/engage/internal/platform/crisis"
)

// DefaultSessionTTL matches the platform's session timeout setting.
const DefaultSessionTTL = 30 * time.Minute

// Session holds the slot-filling state for one website widget visitor.
type Session struct {
	ID           string
	Intent       string
	Collected    map[string]string
	Messages     int
	ContactID    string
	StartedAt    time.Time
	LastActivity time.Time
}

// Store keeps widget chat sessions in memory, keyed by session id. Sessions
// idle past the TTL are dropped on access.
type Store struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]*Session
}

// NewStore creates an empty session store. A non-positive TTL falls back to
// DefaultSessionTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Store{
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

// Apply runs fn against the session for id under the store lock, creating the
// session first when absent or expired. An empty id gets a generated one.
// It returns the session id fn ran against.
func (s *Store) Apply(id string, fn func(*Session)) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = "session_" + uuid.New().String()
	}

	now := time.Now().UTC()
	sess, ok := s.sessions[id]
	if !ok || now.Sub(sess.LastActivity) > s.ttl {
		sess = &Session{
			ID:        id,
			Collected: make(map[string]string),
			StartedAt: now,
		}
		s.sessions[id] = sess
	}
	sess.LastActivity = now

	fn(sess)
	return id
}

// Snapshot returns a copy of the session for id, or false when absent.
func (s *Store) Snapshot(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	out := *sess
	out.Collected = make(map[string]string, len(sess.Collected))
	for k, v := range sess.Collected {
		out.Collected[k] = v
	}
	return out, true
}

// Delete removes a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Prune drops sessions idle past the TTL and returns how many were removed.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-s.ttl)
	removed := 0
	for id, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// PatientSession tracks one enrolled patient's support chat dialog.
type PatientSession struct {
	ID           string
	PatientID    string
	TherapistID  string
	Risk         crisis.RiskLevel
	StartedAt    time.Time
	LastActivity time.Time
	MessageCount int
	Escalations  int
	History      []crisis.Entry
}

// PatientStore keeps patient chat sessions in memory. The durable record of
// each exchange lives in the conversation domain; this store only carries the
// dialog state the pipeline needs between messages.
type PatientStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]*PatientSession
}

// NewPatientStore creates an empty patient session store.
func NewPatientStore(ttl time.Duration) *PatientStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &PatientStore{
		ttl:      ttl,
		sessions: make(map[string]*PatientSession),
	}
}

// Apply runs fn against the patient session for id under the store lock,
// creating it for patientID when absent or expired. It returns the session id
// fn ran against.
func (s *PatientStore) Apply(id, patientID, therapistID string, fn func(*PatientSession)) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = "session_" + uuid.New().String()
	}

	now := time.Now().UTC()
	sess, ok := s.sessions[id]
	if !ok || now.Sub(sess.LastActivity) > s.ttl || sess.PatientID != patientID {
		sess = &PatientSession{
			ID:          id,
			PatientID:   patientID,
			TherapistID: therapistID,
			Risk:        crisis.RiskLow,
			StartedAt:   now,
		}
		s.sessions[id] = sess
	}
	sess.LastActivity = now

	fn(sess)
	return id
}

// Snapshot returns a copy of the patient session for id, or false when
// absent. History shares no backing array with the live session.
func (s *PatientStore) Snapshot(id string) (PatientSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return PatientSession{}, false
	}
	out := *sess
	out.History = append([]crisis.Entry(nil), sess.History...)
	return out, true
}

// Delete removes a patient session.
func (s *PatientStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live patient sessions.
func (s *PatientStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
