package lock

import "errors"

var (
	// ErrLockTimeout is returned when the session lock could not be obtained
	// within the configured wait. Callers should report the server as busy and
	// let the client retry.
	ErrLockTimeout = errors.New("session lock timeout")
	ErrNotHeld     = errors.New("session lock not held by owner")
	ErrReleased    = errors.New("session lock handle already released")

	// ErrLeaseLost is the cancellation cause of a lock context whose lease
	// lapsed or was taken over before it was released.
	ErrLeaseLost = errors.New("session lease lost")
)
