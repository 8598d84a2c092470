package device

import (
	"context"
	"sync"
	"time"

	"github.com/twitchsongbot/songbot/internal/models"
)

// Noop is a device that "plays" a track by sleeping for its duration and
// then signaling Finished. It is used in tests and as a bootstrap device
// before a real connect/voice device is wired in, the same role
// original_source's sys/noop.rs plays for the surrounding system
// collaborator.
type Noop struct {
	mu      sync.Mutex
	loaded  chan Completion
	timer   *time.Timer
	paused  bool
	volume  float64
	elapsed time.Duration
}

// NewNoop constructs a Noop device.
func NewNoop() *Noop {
	return &Noop{volume: 1.0}
}

func (n *Noop) Play(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paused = false
	return nil
}

func (n *Noop) Pause(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paused = true
	if n.timer != nil {
		n.timer.Stop()
	}
	return nil
}

func (n *Noop) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelLocked()
	return nil
}

func (n *Noop) cancelLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	if n.loaded != nil {
		ch := n.loaded
		n.loaded = nil
		go func() { ch <- Completion{Reason: Canceled} }()
	}
}

func (n *Noop) Load(ctx context.Context, item models.QueueItem, offset time.Duration) (<-chan Completion, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelLocked()

	remaining := item.Meta.Duration - offset
	if remaining < 0 {
		remaining = 0
	}

	ch := make(chan Completion, 1)
	n.loaded = ch
	n.paused = false
	n.timer = time.AfterFunc(remaining, func() {
		n.mu.Lock()
		if n.loaded == ch {
			n.loaded = nil
			n.mu.Unlock()
			ch <- Completion{Reason: Finished}
			return
		}
		n.mu.Unlock()
	})
	return ch, nil
}

func (n *Noop) SetVolume(ctx context.Context, volume float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.volume = volume
	return nil
}
