package core

import "github.com/google/uuid"

// NewID generates a new unique identifier (UUID string) used for tasks,
// function calls and sessions created on behalf of a caller.
func NewID() string { return uuid.NewString() }
