// Package playback wraps the external playback control surface behind a
// narrow capability contract. The game core never talks HTTP directly; it
// sees a Controller and the error taxonomy in the internal package.
package playback

import "context"

// PlayerState is the device-reported playback state the watchdog polls.
type PlayerState struct {
	IsPlaying     bool   `json:"is_playing"`
	ProgressMs    int    `json:"progress_ms"`
	SongID        string `json:"song_id"`
	DeviceID      string `json:"device_id"`
	VolumePercent int    `json:"volume_percent"`
}

// Device describes one externally addressable playback device.
type Device struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// Controller is the capability contract against one externally-addressed
// playback device. All calls are network I/O and may fail or time out;
// implementations retry transient failures with bounded backoff before
// surfacing an error.
type Controller interface {
	// Play starts the given song at the given position on the device.
	Play(ctx context.Context, deviceID, songID string, positionMs int) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context, deviceID string) error
	Seek(ctx context.Context, positionMs int) error
	SetVolume(ctx context.Context, percent int) error
	SetShuffle(ctx context.Context, enabled bool) error
	// SetRepeat takes the surface's repeat mode string ("off", "track").
	SetRepeat(ctx context.Context, mode string) error
	Queue(ctx context.Context, songID string) error
	// Transfer moves playback to the device. Implementations check the
	// currently active device first and skip redundant transfers.
	Transfer(ctx context.Context, deviceID string) error
	State(ctx context.Context) (*PlayerState, error)
	Devices(ctx context.Context) ([]Device, error)
}
