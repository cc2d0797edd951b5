package lock

import "errors"

// Lock-related errors.
var (
	// ErrContention is returned when a non-expired lease for the key is
	// already held by a different holder.
	ErrContention = errors.New("lock is held by another holder")
)
