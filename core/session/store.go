package session

import (
	"sync"
	"time"
)

// Store is an in-memory session table keyed by sender identity.
// Every operation is atomic with respect to the others.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create inserts a new session unless the sender already has one.
func (s *Store) Create(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.Sender]; ok {
		return ErrExists
	}
	stored := sess.Clone()
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}
	s.sessions[sess.Sender] = &stored
	return nil
}

// Get returns a copy of the sender's session.
func (s *Store) Get(sender string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sender]
	if !ok {
		return Session{}, false
	}
	return sess.Clone(), true
}

// Has reports whether the sender has an active session.
func (s *Store) Has(sender string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[sender]
	return ok
}

// Update applies fn to the stored session under the lock.
// It returns false when the sender has no session.
func (s *Store) Update(sender string, fn func(*Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sender]
	if !ok {
		return false
	}
	fn(sess)
	if sess.Data == nil {
		sess.Data = make(map[string]string)
	}
	return true
}

// Delete removes the sender's session and reports whether one existed.
func (s *Store) Delete(sender string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[sender]
	delete(s.sessions, sender)
	return ok
}

// Sweep removes every session older than ttl at now and returns the removed ones.
func (s *Store) Sweep(now time.Time, ttl time.Duration, sliding bool) []Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []Session
	for sender, sess := range s.sessions {
		if sess.Age(now, sliding) > ttl {
			expired = append(expired, sess.Clone())
			delete(s.sessions, sender)
		}
	}
	return expired
}

// Len returns the number of active sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
