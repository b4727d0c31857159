package state

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	ErrEntityNotFound  = errors.New("entity not found")
	// ErrInvariantViolation marks state a rule bug produced. It is never
	// repaired silently.
	ErrInvariantViolation = errors.New("game state invariant violated")
)
