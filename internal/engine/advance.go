package engine

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/twitchsongbot/songbot/internal/eventbus"
	"github.com/twitchsongbot/songbot/internal/models"
)

// advance implements spec.md §4.1's next_song decision procedure: try
// pending injection, then the sideline stack, then the queue, then the
// fallback pool (guarded), then the empty state. A failed device load at
// any tier is treated as canceled and the procedure retries from the top
// with that tier already consumed; a failed fallback load goes straight to
// the empty state. Per spec.md §7's "device failures are treated as load
// completion, engine advances".
func (e *Engine) advance() {
	for {
		hadLoaded := e.state.loaded != nil

		if e.state.pendingInject != nil {
			inject := *e.state.pendingInject
			e.state.pendingInject = nil
			if e.state.loaded != nil {
				e.sidelineCurrent()
			}
			if e.tryLoad(inject.Item, models.OriginInjected, inject.Offset) {
				return
			}
			continue
		}

		if n := len(e.state.sidelined); n > 0 {
			entry := e.state.sidelined[n-1]
			e.state.sidelined = e.state.sidelined[:n-1]
			resumeOffset := entry.Loaded.Offset + maxDuration(0, entry.PausedAt.Sub(entry.Loaded.StartedAt))
			if e.tryLoad(entry.Loaded.Item, entry.Loaded.Origin, resumeOffset) {
				return
			}
			continue
		}

		if item, ok := e.queue.PopFront(); ok {
			if e.tryLoad(item, models.OriginQueue, 0) {
				return
			}
			continue
		}

		// Rule 4's guard: fallback only fires while the engine is actively
		// playing, never spontaneously from a cold paused state.
		if !e.state.paused || hadLoaded {
			if track, ok := e.pool.Pick(e.rng); ok {
				item := models.QueueItem{Meta: track}
				if e.tryLoad(item, models.OriginFallback, 0) {
					return
				}
			}
		}

		e.enterEmpty()
		return
	}
}

// tryLoad attempts to load item on the device. On success it installs the
// new Loaded, re-applies pause if the engine is currently paused (Load
// itself always starts the device playing), publishes the current-song
// file, and broadcasts Playing. On failure it logs and returns false so
// advance can fall through to the next tier.
func (e *Engine) tryLoad(item models.QueueItem, origin models.Origin, offset time.Duration) bool {
	ch, err := e.device.Load(e.ctx, item, offset)
	if err != nil {
		logrus.WithError(err).WithField("item", item.Meta.What()).Warn("engine: device load failed")
		return false
	}

	e.state.loaded = &loaded{
		Origin:     origin,
		Item:       item,
		Completion: ch,
		StartedAt:  time.Now(),
		Offset:     offset,
	}

	if e.state.paused {
		if err := e.device.Pause(e.ctx); err != nil {
			logrus.WithError(err).Warn("engine: pause after load failed")
		}
	}

	e.publishCurrentSong()
	e.bus.Publish(eventbus.Event{
		Kind:   eventbus.Playing,
		Echo:   e.echoCurrentSong,
		Origin: origin,
		Item:   &item,
	})
	e.publishSnapshot()
	return true
}

func (e *Engine) sidelineCurrent() {
	e.state.sidelined = append(e.state.sidelined, sidelinedEntry{
		Loaded:   *e.state.loaded,
		PausedAt: time.Now(),
	})
	e.state.loaded = nil
}

func (e *Engine) enterEmpty() {
	e.state.loaded = nil
	if err := e.device.Stop(e.ctx); err != nil {
		logrus.WithError(err).Warn("engine: stop on empty failed")
	}
	e.current.Blank()
	e.bus.Publish(eventbus.Event{Kind: eventbus.Empty})
	e.publishSnapshot()
}
