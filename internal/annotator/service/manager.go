package service

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"blueprint-annotator/internal/annotator/pagecache"
)

var ErrSessionNotFound = errors.New("session not found")

// ============================================================
// Session Manager
// ============================================================

// Manager issues canvas sessions under random tokens and forgets them
// once they have been idle for longer than the ttl.
type Manager struct {
	cache        *pagecache.Cache
	defaultRatio float64
	ttl          time.Duration
	now          func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session // token -> session
}

func NewManager(cache *pagecache.Cache, defaultRatio float64, ttl time.Duration) *Manager {
	return &Manager{
		cache:        cache,
		defaultRatio: defaultRatio,
		ttl:          ttl,
		now:          time.Now,
		sessions:     make(map[string]*Session),
	}
}

func (m *Manager) Issue(projectID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	token := uuid.NewString()
	s := NewSession(token, projectID, m.cache, m.defaultRatio)
	s.now = m.now
	s.lastSeen = m.now()
	m.sessions[token] = s
	log.Printf("[SESSION] issued %s for project %s", token, projectID)
	return s
}

func (m *Manager) Resolve(token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if m.expired(s) {
		delete(m.sessions, token)
		log.Printf("[SESSION] expired %s", token)
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) Close(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.sessions[token]
	delete(m.sessions, token)
	return ok
}

// Sweep drops every expired session and reports how many went.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for token, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, token)
			n++
		}
	}
	if n > 0 {
		log.Printf("[SESSION] swept %d idle sessions", n)
	}
	return n
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) expired(s *Session) bool {
	return m.ttl > 0 && m.now().Sub(s.LastSeen()) > m.ttl
}
