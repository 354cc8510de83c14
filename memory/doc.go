// Package memory provides MemoryStore implementations: small per-session
// key/value memories agents carry between turns.
package memory
