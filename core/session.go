package core

import (
	"errors"
	"sync"
	"time"
)

// ErrSessionNotFound is returned by stores that do not create sessions lazily.
var ErrSessionNotFound = errors.New("session not found")

// Session represents a conversational container tracking mutable key/value
// state plus an ordered content history. It is safe for concurrent access.
//
// Contract:
//   - State mutations and appends update the Updated timestamp
//   - GetHistory returns a defensive copy to avoid external mutation
//   - Clone performs deep copies of maps/slices for safe divergence
type Session struct {
	ID      string         `json:"id"`
	State   map[string]any `json:"state"`
	History []Content      `json:"history"`
	Created time.Time      `json:"created"`
	Updated time.Time      `json:"updated"`
	mu      sync.RWMutex
}

// NewSession creates a new empty session with the given ID.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{ID: id, State: map[string]any{}, History: []Content{}, Created: now, Updated: now}
}

// ApplyStateDelta merges the provided key/value pairs into State. A nil value
// deletes the key.
func (s *Session) ApplyStateDelta(delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range delta {
		if v == nil {
			delete(s.State, k)
			continue
		}
		s.State[k] = v
	}
	s.Updated = time.Now().UTC()
}

// Append adds contents to the history in order.
func (s *Session) Append(contents ...Content) {
	if len(contents) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History = append(s.History, contents...)
	s.Updated = time.Now().UTC()
}

// GetHistory returns a copy of the history. When limit > 0 only the most
// recent limit entries are returned.
func (s *Session) GetHistory(limit int) []Content {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if limit > 0 && len(s.History) > limit {
		start = len(s.History) - limit
	}
	out := make([]Content, len(s.History)-start)
	copy(out, s.History[start:])
	return out
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:      s.ID,
		State:   make(map[string]any, len(s.State)),
		History: make([]Content, len(s.History)),
		Created: s.Created,
		Updated: s.Updated,
	}
	for k, v := range s.State {
		clone.State[k] = v
	}
	for i, c := range s.History {
		clone.History[i] = c.Clone()
	}
	return clone
}

// SessionStore persists sessions and their evolving state / content history.
type SessionStore interface {
	// Get returns a snapshot of the session, creating it when absent.
	Get(id string) (*Session, error)
	AppendContent(sessionID string, contents ...Content) error
	ApplyDelta(sessionID string, delta map[string]any) error
	Delete(sessionID string) error
}
