// Package playerclient is the cloneable, thread-safe handle the rest of
// the bot uses to command the engine and query its state, grounded on
// jellycli's Player/PlayerClient split (player/player.go's exported
// methods backed by the same command channel the internal loop reads)
// and on original_source/bot/src/player.rs's own Player/PlayerClient
// split. It also owns `closed`, per spec.md §5's note that closed has a
// different write/read discipline than paused/loaded/volume: the client
// writes it directly via Close/Open and admission reads it directly via
// Closed, bypassing the engine's command channel entirely.
package playerclient

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/twitchsongbot/songbot/internal/engine"
	"github.com/twitchsongbot/songbot/internal/eventbus"
	"github.com/twitchsongbot/songbot/internal/models"
	"github.com/twitchsongbot/songbot/internal/queuestore"
	"github.com/twitchsongbot/songbot/internal/trackid"
)

// ClosedState distinguishes open (nil), closed without a reason
// (&ClosedState{}), and closed with a reason.
type ClosedState struct {
	Reason *string
}

// Client is a cloneable handle over one Engine. The zero value is not
// usable; construct with New.
type Client struct {
	eng    *engine.Engine
	queue  *queuestore.Store
	bus    *eventbus.Bus
	themes map[string]models.Theme
	closed atomic.Pointer[ClosedState]
}

// New wraps an already-constructed engine.Engine.
func New(eng *engine.Engine, queue *queuestore.Store, bus *eventbus.Bus, themes map[string]models.Theme) *Client {
	return &Client{eng: eng, queue: queue, bus: bus, themes: themes}
}

// Clone returns a handle sharing the same underlying engine and closed
// state; both copies observe the same Close/Open calls.
func (c *Client) Clone() *Client {
	return c
}

func (c *Client) send(cmd engine.Command) {
	c.eng.Commands() <- cmd
}

// Skip discards the current Loaded and advances unconditionally.
func (c *Client) Skip() { c.send(engine.Command{Kind: engine.CmdSkip}) }

// Toggle plays or pauses depending on current state.
func (c *Client) Toggle() { c.send(engine.Command{Kind: engine.CmdToggle}) }

// Play resumes playback.
func (c *Client) Play() { c.send(engine.Command{Kind: engine.CmdPlay}) }

// Pause suspends playback.
func (c *Client) Pause() { c.send(engine.Command{Kind: engine.CmdPause}) }

// Volume sets the absolute volume, 0..100.
func (c *Client) Volume(v int) { c.send(engine.Command{Kind: engine.CmdVolume, Volume: v}) }

// Inject preempts the current Loaded with item at the given offset.
func (c *Client) Inject(item models.QueueItem, offset time.Duration) {
	c.send(engine.Command{Kind: engine.CmdInject, Item: item, Offset: offset})
}

// Close gates admission; reason is optional (nil means closed without a
// stated reason).
func (c *Client) Close(reason *string) {
	c.closed.Store(&ClosedState{Reason: reason})
}

// Open reopens admission.
func (c *Client) Open() {
	c.closed.Store(nil)
}

// Closed reports the current closed state: nil means open.
func (c *Client) Closed() *ClosedState {
	return c.closed.Load()
}

// PlayTheme injects a configured theme by name.
func (c *Client) PlayTheme(name string) error {
	theme, ok := c.themes[name]
	if !ok {
		return fmt.Errorf("playerclient: unknown theme %q", name)
	}
	item := models.QueueItem{Meta: models.TrackMeta{TrackID: theme.Track}}
	c.Inject(item, theme.Offset)
	return nil
}

// ThemeNames lists configured theme names, for `!song theme` with no
// argument (SPEC_FULL.md §7 supplemented feature).
func (c *Client) ThemeNames() []string {
	names := make([]string, 0, len(c.themes))
	for name := range c.themes {
		names = append(names, name)
	}
	return names
}

// Promote swaps the item at queue index i with the head, emitting
// Modified on success.
func (c *Client) Promote(user string, i int) (models.QueueItem, bool) {
	item, ok := c.queue.Promote(user, i)
	if ok {
		c.bus.Publish(eventbus.Event{Kind: eventbus.Modified})
	}
	return item, ok
}

// Purge empties the queue, emitting Modified if anything was removed.
func (c *Client) Purge() []models.QueueItem {
	purged := c.queue.Purge()
	if len(purged) > 0 {
		c.bus.Publish(eventbus.Event{Kind: eventbus.Modified})
	}
	return purged
}

// RemoveAt removes the queue item at index i, emitting Modified on
// success.
func (c *Client) RemoveAt(i int) (models.QueueItem, bool) {
	item, ok := c.queue.RemoveAt(i)
	if ok {
		c.bus.Publish(eventbus.Event{Kind: eventbus.Modified})
	}
	return item, ok
}

// RemoveLast removes the item at the back of the queue, emitting
// Modified on success.
func (c *Client) RemoveLast() (models.QueueItem, bool) {
	item, ok := c.queue.RemoveLast()
	if ok {
		c.bus.Publish(eventbus.Event{Kind: eventbus.Modified})
	}
	return item, ok
}

// RemoveLastByUser removes user's most recently queued item, emitting
// Modified on success.
func (c *Client) RemoveLastByUser(user string) (models.QueueItem, bool) {
	item, ok := c.queue.RemoveLastByUser(user)
	if ok {
		c.bus.Publish(eventbus.Event{Kind: eventbus.Modified})
	}
	return item, ok
}

// Current returns the currently loaded item, if any.
func (c *Client) Current() (models.QueueItem, bool) {
	snap := c.eng.CurrentSnapshot()
	if snap == nil || snap.Loaded == nil {
		return models.QueueItem{}, false
	}
	return snap.Loaded.Item, true
}

// List returns a snapshot of the queue in order.
func (c *Client) List() []models.QueueItem {
	return c.queue.List()
}

// Length reports queue item count and the summed full durations in
// seconds, including the currently loaded item (counted at its whole
// duration, not its remaining time), per spec.md §4.3's `length → (count,
// total_seconds)`.
func (c *Client) Length() (count int, totalSeconds float64) {
	snap := c.eng.CurrentSnapshot()
	if snap == nil {
		return 0, 0
	}
	return snap.QueueLen, snap.QueueDur.Seconds()
}

// QueueDepth reports the number of backlog items waiting behind the
// currently loaded track, excluding it. Unlike Length, this is a
// backlog-pressure reading, not a "what would a chat user see" query; it
// exists for internal/admission's MaxQueueLength gate (spec.md §4.4 step
// 4), which must not count the already-admitted current item against a
// newly incoming request.
func (c *Client) QueueDepth() int {
	return c.queue.Len()
}

// CurrentVolume returns the last-published volume, 0..100.
func (c *Client) CurrentVolume() int {
	snap := c.eng.CurrentSnapshot()
	if snap == nil {
		return 0
	}
	return snap.Volume
}

// When computes the time until user's next owned queue item would play:
// the sum of durations of every item strictly ahead of it, plus the
// remaining time on the currently loaded item. SPEC_FULL.md §7's
// supplemented `!song when [user]` feature.
func (c *Client) When(user string) (time.Duration, bool) {
	items := c.queue.List()

	idx := -1
	for i, item := range items {
		if item.RequestedBy(user) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, false
	}

	var wait time.Duration
	snap := c.eng.CurrentSnapshot()
	if snap != nil && snap.Loaded != nil {
		remaining := snap.Loaded.Item.Meta.Duration - snap.Loaded.Offset - time.Since(snap.Loaded.StartedAt)
		if remaining > 0 {
			wait += remaining
		}
	}
	for i := 0; i < idx; i++ {
		wait += items[i].Meta.Duration
	}
	return wait, true
}

// ContainsTrack reports whether id is already queued, and at which index.
func (c *Client) ContainsTrack(id trackid.ID) (int, bool) {
	return c.queue.Contains(id)
}

// CountByUser returns how many active queue items belong to user.
func (c *Client) CountByUser(user string) int {
	return c.queue.CountByUser(user)
}

// AppendRequest durably appends a newly admitted queue item, called by
// internal/admission after its pipeline approves a request. On success it
// sends the engine a Modified command, which starts playback of the queue
// when the engine is playing with nothing loaded and broadcasts Modified.
// ctx is accepted for symmetry with the rest of the client's surface but
// the underlying store append never blocks on network I/O.
func (c *Client) AppendRequest(ctx context.Context, item models.QueueItem, user *string) (int, error) {
	if err := c.queue.Append(item, user); err != nil {
		return 0, fmt.Errorf("playerclient: append: %w", err)
	}
	pos := c.queue.Len() - 1
	c.send(engine.Command{Kind: engine.CmdModified})
	return pos, nil
}

// Subscribe registers a new Event Bus consumer.
func (c *Client) Subscribe() *eventbus.Subscription {
	return c.bus.Subscribe()
}
