// Package device abstracts the remote audio sink the playback engine
// drives. Unlike jellycli's player.Audio, which decodes mp3/flac locally
// with faiface/beep, this engine only ever commands a remote device
// (a Spotify Connect endpoint, a Discord voice gateway, ...); decoding
// audio locally is an explicit non-goal of the spec this core implements.
package device

import (
	"context"
	"time"

	"github.com/twitchsongbot/songbot/internal/models"
)

// Reason explains why a Load's completion signal fired.
type Reason int

const (
	// Finished means the track played to the end.
	Finished Reason = iota
	// Canceled means the device dropped the load (error, disconnect, a
	// newer Load superseding this one).
	Canceled
)

// Completion is sent exactly once on the channel returned by Load.
type Completion struct {
	Reason Reason
	Err    error
}

// Device is the abstract sink the engine drives: play, pause, stop,
// load(track, offset) -> completion signal, set_volume.
type Device interface {
	// Play resumes or starts playback of the currently loaded track.
	Play(ctx context.Context) error
	// Pause suspends playback without discarding the loaded track.
	Pause(ctx context.Context) error
	// Stop halts playback and releases any loaded track.
	Stop(ctx context.Context) error
	// Load begins playback of item starting at offset into the track, and
	// returns a channel that receives exactly one Completion when the
	// load's lifetime ends (track finished, or the load was canceled).
	Load(ctx context.Context, item models.QueueItem, offset time.Duration) (<-chan Completion, error)
	// SetVolume sets the device volume, already clamped to [0.0, 1.0].
	SetVolume(ctx context.Context, volume float64) error
}
