package testutil

import (
	"github.com/hupe1980/agentbridge/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("sess-1").State("k","v").Contents(c1, c2).Build()
type SessionBuilder struct {
	id       string
	state    map[string]any
	contents []core.Content
}

// NewSessionBuilder creates a new builder for a session with the given id.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, state: map[string]any{}}
}

// State sets or overwrites a state key/value pair on the resulting session (chainable).
func (b *SessionBuilder) State(key string, val any) *SessionBuilder {
	b.state[key] = val
	return b
}

// Contents appends history entries (chainable).
func (b *SessionBuilder) Contents(cs ...core.Content) *SessionBuilder {
	b.contents = append(b.contents, cs...)
	return b
}

// Build returns a *core.Session with pre-populated state and history.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id)
	s.ApplyStateDelta(b.state)
	s.Append(b.contents...)
	return s
}

// Seed writes the built session into store.
func (b *SessionBuilder) Seed(store core.SessionStore) error {
	if err := store.ApplyDelta(b.id, b.state); err != nil {
		return err
	}
	return store.AppendContent(b.id, b.contents...)
}
