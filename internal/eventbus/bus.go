// Package eventbus implements the playback engine's multi-consumer
// broadcast of PlayerEvent values. It plays the role the source's
// tokio_bus::Bus played in original_source/bot/src/player.rs, and mirrors
// jellycli's pattern of registering callbacks for status changes
// (player.Audio.AddStatusCallback) — generalized here to a channel-based
// subscriber since Go favors channels over callback lists for fan-out
// across goroutines.
package eventbus

import (
	"sync"

	"github.com/twitchsongbot/songbot/internal/models"
)

// EventKind enumerates the payloads broadcast by the engine.
type EventKind int

const (
	Empty EventKind = iota
	Playing
	Pausing
	Modified
	NotConfigured
	Detached
)

// Event is a single broadcast payload.
type Event struct {
	Kind   EventKind
	Echo   bool
	Origin models.Origin
	Item   *models.QueueItem
}

// subscriberBuf is the per-subscriber channel capacity. Consumers are
// expected to tolerate loss: once full, the oldest buffered event is
// dropped to make room for the new one.
const subscriberBuf = 32

// Bus is a multi-consumer broadcaster; Publish is safe to call from any
// goroutine. The engine publishes every playback event; the player client
// also publishes Modified itself after the queue edits it makes directly
// (promote, purge, remove), without going through the engine. Any number
// of goroutines may subscribe.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscription is a live registration on the bus. Call Close to
// unregister; it is safe to stop reading from C once Close is called.
type Subscription struct {
	id   int
	C    <-chan Event
	bus  *Bus
}

// Close unregisters the subscription.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if ch, ok := s.bus.subs[s.id]; ok {
		close(ch)
		delete(s.bus.subs, s.id)
	}
}

// Subscribe registers a new consumer and returns its subscription.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, subscriberBuf)
	id := b.next
	b.next++
	b.subs[id] = ch
	return &Subscription{id: id, C: ch, bus: b}
}

// Publish broadcasts an event to every current subscriber. If a
// subscriber's buffer is full, the oldest queued event for that
// subscriber is dropped to make room — consumers are expected to
// tolerate loss, per the spec's backpressure model.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
