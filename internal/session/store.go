package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultIdleTimeout bounds how long an untouched session is kept in memory.
// Browsers never tell us when a session cookie dies, so abandoned sessions
// are evicted after this long without a read or write.
const DefaultIdleTimeout = 24 * time.Hour

type entry struct {
	flags    map[string]bool
	lastSeen time.Time
}

// Store is an in-memory, session-scoped key-value store of boolean flags.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	idle     time.Duration
	now      func() time.Time
}

func NewStore(idle time.Duration) *Store {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Store{
		sessions: make(map[string]*entry),
		idle:     idle,
		now:      time.Now,
	}
}

// NewID mints an opaque session identifier.
func NewID() string {
	return uuid.NewString()
}

// Gate binds the intro flag of one session.
func (s *Store) Gate(sessionID string) Gate {
	return storeGate{store: s, id: sessionID, key: IntroPlayedKey}
}

func (s *Store) Get(sessionID, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok || s.expiredLocked(e) {
		delete(s.sessions, sessionID)
		return false
	}
	e.lastSeen = s.now()
	return e.flags[key]
}

func (s *Store) Set(sessionID, key string, value bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok || s.expiredLocked(e) {
		e = &entry{flags: make(map[string]bool)}
		s.sessions[sessionID] = e
	}
	e.flags[key] = value
	e.lastSeen = s.now()
}

func (s *Store) Delete(sessionID, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[sessionID]; ok {
		delete(e.flags, key)
		e.lastSeen = s.now()
	}
}

// Prune drops idle sessions and returns how many were removed.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.sessions {
		if s.expiredLocked(e) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) expiredLocked(e *entry) bool {
	return s.now().Sub(e.lastSeen) > s.idle
}
