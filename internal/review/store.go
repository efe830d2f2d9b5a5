package review

import (
	"sync"
	"time"
)

// Store holds open review sessions. Expired sessions are dropped when read
// and by Sweep; there is no background goroutine.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a store whose sessions expire after ttl of inactivity
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Put adds a session
func (st *Store) Put(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
}

// Get returns a live session and refreshes its idle timer
func (st *Store) Get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	now := st.now()
	if s.expired(now, st.ttl) {
		delete(st.sessions, id)
		return nil, ErrSessionNotFound
	}

	s.touch(now)
	return s, nil
}

// Delete removes a session
func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Sweep drops every expired session and returns how many were removed
func (st *Store) Sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	removed := 0
	for id, s := range st.sessions {
		if s.expired(now, st.ttl) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of sessions, expired or not
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
