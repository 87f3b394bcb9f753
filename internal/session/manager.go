package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// sweepInterval is how often the reaper scans for idle sessions.
const sweepInterval = time.Minute

// Manager owns all live sessions. Sessions are advisory correlation only:
// disconnection races are expected, so lookups and touches on vanished
// sessions log instead of failing.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	logger   *slog.Logger
}

// NewManager creates a Manager that reaps sessions idle longer than ttl.
func NewManager(ttl time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		logger:   logger.With("component", "session_manager"),
	}
}

// Open creates and tracks a new session.
func (m *Manager) Open() *Session {
	s := newSession()
	m.mu.Lock()
	m.sessions[s.ID] = s
	count := len(m.sessions)
	m.mu.Unlock()
	m.logger.Info("Session opened.", slog.String("session_id", s.ID), slog.Int("active", count))
	return s
}

// Get returns the session with the given id, or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Touch updates the session's last activity. A missing session is not an
// error: the SSE stream may have closed while a POST was in flight.
func (m *Manager) Touch(id string) {
	m.mu.RLock()
	s := m.sessions[id]
	m.mu.RUnlock()
	if s == nil {
		m.logger.Debug("Touch on unknown session.", slog.String("session_id", id))
		return
	}
	s.Touch()
}

// Close marks the session closed and stops tracking it. Closing an unknown
// session is a no-op.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	s := m.sessions[id]
	delete(m.sessions, id)
	count := len(m.sessions)
	m.mu.Unlock()
	if s == nil {
		return
	}
	s.close()
	m.logger.Info("Session closed.", slog.String("session_id", id), slog.Int("active", count))
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseIdle closes every session idle longer than the manager's ttl and
// returns how many were closed.
func (m *Manager) CloseIdle() int {
	cutoff := time.Now().Add(-m.ttl)

	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		if s.LastActivity().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		m.logger.Warn("Reaping idle session.", slog.String("session_id", id))
		m.Close(id)
	}
	return len(stale)
}

// Run reaps idle sessions until ctx is cancelled. Expected to run as a
// goroutine owned by main.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CloseIdle()
		}
	}
}
