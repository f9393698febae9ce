package core

import "github.com/google/uuid"

// NewID returns a random identifier used for sessions, executions and
// synthetic tool call ids.
func NewID() string { return uuid.NewString() }
