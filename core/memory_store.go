package core

// MemoryStore holds small per-session key/value memories an agent carries
// between turns (for instance the id of the last product it touched).
// Short method names align with the other *Store interfaces.
type MemoryStore interface {
	Get(sessionID string) (map[string]any, error)
	Put(sessionID string, delta map[string]any) error
	Forget(sessionID string, keys ...string) error
}
