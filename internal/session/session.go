package session

import (
	"sync"

	"github.com/google/uuid"
)

// Role is the fixed part a peer plays in an interview room. Only the
// candidate may originate an offer; the interviewer only answers.
type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleCandidate   Role = "candidate"
)

// Session is the explicit record of one signaling participation: who we
// are, which room we are in, and whether signaling is still permitted.
// It replaces ambient state so every component reads the same truth.
type Session struct {
	Role Role
	Room string

	mu      sync.Mutex
	id      string
	enabled bool
}

// New creates an enabled session with a fresh id.
func New(role Role, room string) *Session {
	return &Session{
		Role:    role,
		Room:    room,
		id:      uuid.NewString(),
		enabled: true,
	}
}

// ID returns the current session id.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Enabled reports whether signaling may still be sent for this session.
func (s *Session) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Disable marks the session as ended. No signaling is sent or accepted
// afterwards.
func (s *Session) Disable() {
	s.mu.Lock()
	s.enabled = false
	s.mu.Unlock()
}

// Rotate issues a fresh session id and re-enables the session. Called on
// explicit stop so a later start is a new session, never a resumption.
func (s *Session) Rotate() {
	s.mu.Lock()
	s.id = uuid.NewString()
	s.enabled = true
	s.mu.Unlock()
}
