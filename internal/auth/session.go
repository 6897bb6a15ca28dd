package auth

import (
	"sync"
	"time"
)

// Session is the authenticated identity for the running instance
type Session struct {
	UserID    uint64    `json:"user_id"`
	Username  string    `json:"username"`
	RoleID    uint64    `json:"role_id"`
	RoleName  string    `json:"role_name"`
	LoginTime time.Time `json:"login_time"`
}

// SessionSlot holds at most one session for the process. It is explicitly
// constructed and injected rather than a package global; a second login
// simply overwrites the slot — concurrent logins are not a supported mode.
type SessionSlot struct {
	mu      sync.RWMutex
	current *Session
}

// NewSessionSlot creates an empty session slot
func NewSessionSlot() *SessionSlot {
	return &SessionSlot{}
}

// Set stores the session, replacing any previous one
func (s *SessionSlot) Set(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = session
}

// Get returns a copy of the current session, or nil when signed out
func (s *SessionSlot) Get() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	session := *s.current
	return &session
}

// Clear empties the slot
func (s *SessionSlot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// IsAuthenticated reports whether a session is present
func (s *SessionSlot) IsAuthenticated() bool {
	return s.Get() != nil
}
