package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one SSE connection's advisory record. It carries no message
// queue: results always travel back on the POST that asked for them, the
// session token only correlates streams for logging and liveness.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	lastActivity time.Time
	open         bool
}

// NewToken returns an opaque 128-bit session token, hex without dashes.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func newSession() *Session {
	now := time.Now()
	return &Session{
		ID:           NewToken(),
		CreatedAt:    now,
		lastActivity: now,
		open:         true,
	}
}

// Touch records activity on the session.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// LastActivity returns the time of the most recent touch.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Open reports whether the session has not been closed yet.
func (s *Session) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
}
