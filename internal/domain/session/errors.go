package session

import "errors"

// Sentinel errors for session operations.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionFrozen   = errors.New("session frozen")
	ErrInvalidPlayer   = errors.New("player must be 1 or 2")
)
