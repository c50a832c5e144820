package history

import (
	"sync"
)

// Entry is one exchange made during a browser session.
type Entry struct {
	StudentID string
	Query     string
	Response  string
	Timestamp string
	Failed    bool
}

// Manager holds the per-session chat log. Nothing here is persisted.
type Manager struct {
	mu          sync.RWMutex
	maxEntries  int
	maxSessions int
	seq         uint64
	sessions    map[string]*session
}

type session struct {
	entries []Entry
	touched uint64
}

// NewManager keeps at most maxEntries per session and at most maxSessions
// sessions; 0 means unbounded. Past the session cap the session appended to
// least recently is dropped.
func NewManager(maxEntries, maxSessions int) *Manager {
	return &Manager{
		maxEntries:  maxEntries,
		maxSessions: maxSessions,
		sessions:    make(map[string]*session),
	}
}

func (m *Manager) Append(sessionID string, e Entry) {
	if sessionID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
			m.evictOldest()
		}
		s = &session{}
		m.sessions[sessionID] = s
	}
	m.seq++
	s.touched = m.seq
	s.entries = append(s.entries, e)
	if m.maxEntries > 0 && len(s.entries) > m.maxEntries {
		s.entries = append([]Entry(nil), s.entries[len(s.entries)-m.maxEntries:]...)
	}
}

// evictOldest must be called with mu held.
func (m *Manager) evictOldest() {
	var (
		oldest string
		min    uint64
	)
	for id, s := range m.sessions {
		if oldest == "" || s.touched < min {
			oldest, min = id, s.touched
		}
	}
	delete(m.sessions, oldest)
}

// Get returns a copy of the session log in append order.
func (m *Manager) Get(sessionID string) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return []Entry{}
	}
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (m *Manager) Reset(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Sessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
