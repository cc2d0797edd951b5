// Package session detects redemption attempts from more than one active
// logical session per owner. Each call records activity for the calling
// session and rejects when another session was active within the idle
// timeout. Stale records are ignored rather than purged.
package session

import (
	"context"
	"errors"
)

// ErrSessionConflict is returned when more than one fresh session exists
// for the same owner.
var ErrSessionConflict = errors.New("another active session detected")

// Guard tracks session activity per owner.
type Guard interface {
	// Touch upserts the activity record for (ownerID, sessionID) and
	// returns ErrSessionConflict when more than one session for the
	// owner is fresh. Callers without a session identifier skip the
	// guard entirely.
	Touch(ctx context.Context, ownerID, sessionID string) error
}
