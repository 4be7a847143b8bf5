package internal

import (
	"errors"
	"fmt"
)

var (
	// ErrNoLockedDevice means playback was requested before any device was
	// ever selected. Guessing an arbitrary device would break continuity, so
	// this is a hard precondition failure.
	ErrNoLockedDevice = errors.New("no locked playback device")

	// ErrRoomLocked rejects non-host joins while the lock-joins flag is set.
	ErrRoomLocked = errors.New("room is locked to new joins")

	// ErrRoomFull rejects joins past the per-room player limit.
	ErrRoomFull = errors.New("max players reached for this room")

	// ErrTokenExpired is returned by the playback surface when the access
	// token needs a refresh; callers retry once after refreshing.
	ErrTokenExpired = errors.New("playback token expired")

	// ErrPlaybackStalled marks a device that stopped playing and did not
	// recover after a resume attempt.
	ErrPlaybackStalled = errors.New("playback stalled")

	ErrNoConnection = errors.New("player has no active connection")
)

// InsufficientSongsError reports a dealing precondition violation: the
// applicable pool holds fewer usable songs than a card needs. It is reported
// to the triggering request and is not fatal to the room.
type InsufficientSongsError struct {
	Required  int
	Available int
}

func (e *InsufficientSongsError) Error() string {
	return fmt.Sprintf("insufficient songs to deal a card: need %d, have %d", e.Required, e.Available)
}

// DeviceRestrictedError wraps the playback surface's "restriction" responses.
// These are recoverable: the caller retries once after re-activating the
// device, then degrades instead of propagating.
type DeviceRestrictedError struct {
	Reason string
}

func (e *DeviceRestrictedError) Error() string {
	if e.Reason == "" {
		return "playback restricted by device"
	}
	return fmt.Sprintf("playback restricted by device: %s", e.Reason)
}
