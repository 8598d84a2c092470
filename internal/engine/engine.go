// Package engine implements the Playback Engine: a single-owner state
// machine that orders the queue, injects themes, sidelines and resumes
// interrupted tracks, falls back to a random pool, and broadcasts state
// changes. Grounded on jellycli's player.Player.loop — a
// `for { select { ... } }` goroutine that owns all mutable playback
// state and is fed by a command channel (player/player.go) — generalized
// with explicit priority tiers the spec requires and the teacher's single
// unordered select does not need.
//
// Unlike jellycli's loop, this engine's only asynchronous device signal
// is the one-shot channel returned by device.Device.Load: there is no
// separate "device events" stream to multiplex, so the spec's
// "device events" input class and "load completions" input class are the
// same channel here. Front-pop atomicity (spec.md §4.1) falls out of the
// actor model for free: queuestore.Store.PopFront is a synchronous call
// made only from this goroutine, so no command can interleave with it.
package engine

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/twitchsongbot/songbot/internal/catalog"
	"github.com/twitchsongbot/songbot/internal/currentsong"
	"github.com/twitchsongbot/songbot/internal/device"
	"github.com/twitchsongbot/songbot/internal/eventbus"
	"github.com/twitchsongbot/songbot/internal/fallback"
	"github.com/twitchsongbot/songbot/internal/models"
	"github.com/twitchsongbot/songbot/internal/queuestore"
)

// CommandKind enumerates the commands the engine accepts, per spec.md
// §4.1.
type CommandKind int

const (
	CmdSkip CommandKind = iota
	CmdToggle
	CmdPause
	CmdPlay
	CmdModified
	CmdVolume
	CmdInject
)

// Command is a single instruction sent to the engine's command channel.
// Fields not relevant to Kind are ignored.
type Command struct {
	Kind   CommandKind
	Volume int
	Item   models.QueueItem
	Offset time.Duration
}

// loaded mirrors spec.md §3's Loaded slot.
type loaded struct {
	Origin     models.Origin
	Item       models.QueueItem
	Completion <-chan device.Completion
	StartedAt  time.Time
	Offset     time.Duration
}

// sidelinedEntry mirrors spec.md §3's Sidelined entry.
type sidelinedEntry struct {
	Loaded   loaded
	PausedAt time.Time
}

type pendingInject struct {
	Item   models.QueueItem
	Offset time.Duration
}

// state is the engine's private, single-writer playback state. closed is
// deliberately absent here: per spec.md §5 it has a different ownership
// discipline than paused/loaded/volume — the Player Client writes it
// directly and admission reads it directly, so it is modeled as its own
// atomically-published value in package playerclient instead of being
// routed through the engine's command channel.
type state struct {
	paused        bool
	loaded        *loaded
	sidelined     []sidelinedEntry // LIFO: push/pop at the end
	pendingInject *pendingInject
	volume        int
}

// LoadedView is the read-only projection of loaded published in a
// Snapshot.
type LoadedView struct {
	Origin    models.Origin
	Item      models.QueueItem
	StartedAt time.Time
	Offset    time.Duration
}

// Snapshot is the read-only view of engine state published for
// lock-free queries, resolving spec.md §9's "shared mutable handles"
// design note via atomic.Pointer instead of reference-counted locks.
type Snapshot struct {
	Paused   bool
	Loaded   *LoadedView
	Volume   int
	QueueLen int
	QueueDur time.Duration
}

// Engine drives playback. It is not safe for concurrent use except via
// its Commands channel and its published Snapshot/event bus — only Run's
// goroutine ever touches engine.state.
type Engine struct {
	commands chan Command
	device   device.Device
	queue    *queuestore.Store
	pool     *fallback.Pool
	catalog  catalog.Adapter
	bus      *eventbus.Bus
	current  *currentsong.Publisher
	themes   map[string]models.Theme
	rng      *rand.Rand

	echoCurrentSong bool
	initialPaused   bool

	snapshot atomic.Pointer[Snapshot]

	ctx   context.Context
	state state
}

// Options configures a new Engine.
type Options struct {
	Device          device.Device
	Queue           *queuestore.Store
	Pool            *fallback.Pool
	Catalog         catalog.Adapter
	Bus             *eventbus.Bus
	CurrentSong     *currentsong.Publisher
	Themes          map[string]models.Theme
	EchoCurrentSong bool
	// InitialPaused selects the engine's starting PlayerState per
	// spec.md §4.1: true for devices that require an explicit start
	// (a native sink), false for ones that connect and play immediately.
	InitialPaused bool
	// CommandBuffer sizes the command channel; unbounded backpressure per
	// spec.md §5 is approximated with a generous buffer since the engine
	// guarantees bounded work per command.
	CommandBuffer int
}

// New constructs an Engine from opts. Call Run to start it.
func New(opts Options) *Engine {
	buf := opts.CommandBuffer
	if buf <= 0 {
		buf = 64
	}
	e := &Engine{
		commands:        make(chan Command, buf),
		device:          opts.Device,
		queue:           opts.Queue,
		pool:            opts.Pool,
		catalog:         opts.Catalog,
		bus:             opts.Bus,
		current:         opts.CurrentSong,
		themes:          opts.Themes,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		echoCurrentSong: opts.EchoCurrentSong,
		initialPaused:   opts.InitialPaused,
	}
	e.state.volume = 100
	e.publishSnapshot()
	return e
}

// Commands returns the channel callers send Command values on. The
// playerclient package is the expected sole caller.
func (e *Engine) Commands() chan<- Command {
	return e.commands
}

// CurrentSnapshot returns the most recently published Snapshot.
func (e *Engine) CurrentSnapshot() *Snapshot {
	return e.snapshot.Load()
}

// Run drives the engine loop until ctx is canceled. On return it stops
// the device and blanks the current-song file, per spec.md §5's shutdown
// sequence.
func (e *Engine) Run(ctx context.Context) error {
	e.ctx = ctx
	e.state.paused = e.initialPaused

	e.restoreQueue(ctx)

	if !e.state.paused {
		e.advance()
	} else {
		e.publishSnapshot()
	}

	for {
		if done := e.drainOnce(ctx); done {
			return e.shutdown()
		}
	}
}

// drainOnce services exactly one ready input per iteration, in priority
// order: load-completion first, then commands, matching spec.md §5's
// suspension ordering (pop-in-progress is folded into the actor model, see
// package doc). It returns true when ctx is canceled.
func (e *Engine) drainOnce(ctx context.Context) bool {
	if e.state.loaded != nil {
		select {
		case c := <-e.state.loaded.Completion:
			e.handleCompletion(c)
			return false
		default:
		}
	}

	select {
	case cmd := <-e.commands:
		e.handleCommand(cmd)
		return false
	default:
	}

	if e.state.loaded != nil {
		select {
		case c := <-e.state.loaded.Completion:
			e.handleCompletion(c)
			return false
		case cmd := <-e.commands:
			e.handleCommand(cmd)
			return false
		case <-ctx.Done():
			return true
		}
	}

	select {
	case cmd := <-e.commands:
		e.handleCommand(cmd)
		return false
	case <-ctx.Done():
		return true
	}
}

func (e *Engine) shutdown() error {
	if e.state.loaded != nil {
		if err := e.device.Stop(context.Background()); err != nil {
			logrus.WithError(err).Warn("engine: stop on shutdown failed")
		}
	}
	e.current.Blank()
	logrus.Info("engine: stopped")
	return nil
}

func (e *Engine) handleCompletion(c device.Completion) {
	if c.Reason == device.Canceled {
		logrus.WithError(c.Err).Debug("engine: load canceled")
		e.state.loaded = nil
		e.current.Blank()
		e.publishSnapshot()
		return
	}
	logrus.WithField("item", loadedItemName(e.state.loaded)).Debug("engine: track finished")
	e.advance()
}

func loadedItemName(l *loaded) string {
	if l == nil {
		return ""
	}
	return l.Item.Meta.What()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
