// Package session provides SessionStore implementations holding per-session
// conversation history and state for stateful agents.
package session
