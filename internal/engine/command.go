package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/twitchsongbot/songbot/internal/eventbus"
)

// handleCommand applies a single Command to engine state, per spec.md
// §4.1's command semantics table.
func (e *Engine) handleCommand(cmd Command) {
	switch cmd.Kind {
	case CmdToggle:
		if e.state.paused {
			cmd.Kind = CmdPlay
		} else {
			cmd.Kind = CmdPause
		}
		e.handleCommand(cmd)
		return

	case CmdPause:
		if !e.state.paused {
			e.state.paused = true
			if err := e.device.Pause(e.ctx); err != nil {
				logrus.WithError(err).Warn("engine: pause failed")
			}
			e.bus.Publish(eventbus.Event{Kind: eventbus.Pausing})
			e.publishCurrentSong()
		}

	case CmdPlay:
		if e.state.paused {
			e.state.paused = false
			if e.state.loaded != nil {
				if err := e.device.Play(e.ctx); err != nil {
					logrus.WithError(err).Warn("engine: play failed")
				}
				item := e.state.loaded.Item
				e.bus.Publish(eventbus.Event{
					Kind:   eventbus.Playing,
					Echo:   e.echoCurrentSong,
					Origin: e.state.loaded.Origin,
					Item:   &item,
				})
				e.publishCurrentSong()
			} else {
				e.advance()
			}
		}

	case CmdSkip:
		// Unconditional advance: discard current Loaded, no sideline.
		e.state.loaded = nil
		e.advance()

	case CmdModified:
		if !e.state.paused && e.state.loaded == nil {
			e.advance()
		}
		e.bus.Publish(eventbus.Event{Kind: eventbus.Modified})

	case CmdVolume:
		e.state.volume = clamp(cmd.Volume, 0, 100)
		if err := e.device.SetVolume(e.ctx, float64(e.state.volume)/100.0); err != nil {
			logrus.WithError(err).Warn("engine: set volume failed")
		}

	case CmdInject:
		e.state.pendingInject = &pendingInject{Item: cmd.Item, Offset: cmd.Offset}
		e.advance()
	}

	e.publishSnapshot()
}
