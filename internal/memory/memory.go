// Package memory keeps the recent conversation exchanges of each session in
// process memory.
package memory

import (
	"slices"
	"sync"
	"time"
)

// DefaultMaxExchanges is the per-session history bound.
const DefaultMaxExchanges = 10

// Exchange is one user turn and the assistant's reply to it.
type Exchange struct {
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	Emotion   string    `json:"emotion,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BufferMemory stores the last N exchanges of one session.
// Oldest exchanges are evicted first.
type BufferMemory struct {
	mu      sync.Mutex
	entries []Exchange
	maxSize int
}

func NewBufferMemory(maxSize int) *BufferMemory {
	if maxSize <= 0 {
		maxSize = DefaultMaxExchanges
	}
	return &BufferMemory{
		entries: make([]Exchange, 0, maxSize),
		maxSize: maxSize,
	}
}

func (m *BufferMemory) Add(entry Exchange) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	m.entries = append(m.entries, entry)

	if len(m.entries) > m.maxSize {
		m.entries = slices.Clone(m.entries[len(m.entries)-m.maxSize:])
	}
}

// Get returns up to limit of the most recent exchanges, oldest first.
// A non-positive limit returns everything.
func (m *BufferMemory) Get(limit int) []Exchange {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.entries) {
		limit = len(m.entries)
	}

	start := len(m.entries) - limit
	result := make([]Exchange, limit)
	copy(result, m.entries[start:])
	return result
}

func (m *BufferMemory) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Store maps session ids to their exchange buffers. Sessions are created
// on first append.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*BufferMemory
	maxPerSession int
}

func NewStore(maxPerSession int) *Store {
	if maxPerSession <= 0 {
		maxPerSession = DefaultMaxExchanges
	}
	return &Store{
		sessions:    make(map[string]*BufferMemory),
		maxPerSession: maxPerSession,
	}
}

func (s *Store) buffer(sessionID string) (*BufferMemory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.sessions[sessionID]
	return b, ok
}

func (s *Store) Append(sessionID string, ex Exchange) {
	b, ok := s.buffer(sessionID)
	if !ok {
		s.mu.Lock()
		if b, ok = s.sessions[sessionID]; !ok {
			b = NewBufferMemory(s.maxPerSession)
			s.sessions[sessionID] = b
		}
		s.mu.Unlock()
	}
	b.Add(ex)
}

// Recent returns the last n exchanges of a session, oldest first.
func (s *Store) Recent(sessionID string, n int) []Exchange {
	if n <= 0 {
		return []Exchange{}
	}
	b, ok := s.buffer(sessionID)
	if !ok {
		return []Exchange{}
	}
	return b.Get(n)
}

// History returns every stored exchange of a session. Unknown sessions have
// an empty history.
func (s *Store) History(sessionID string) []Exchange {
	b, ok := s.buffer(sessionID)
	if !ok {
		return []Exchange{}
	}
	return b.Get(0)
}

// Clear drops a session and reports whether it existed.
func (s *Store) Clear(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return ok
}

type Stats struct {
	ActiveSessions int `json:"active_sessions"`
	TotalMessages  int `json:"total_messages"`
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{ActiveSessions: len(s.sessions)}
	for _, b := range s.sessions {
		st.TotalMessages += b.Size()
	}
	return st
}

// SessionIDs returns the known session ids in sorted order.
func (s *Store) SessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
