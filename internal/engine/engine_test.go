package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitchsongbot/songbot/internal/catalog"
	"github.com/twitchsongbot/songbot/internal/currentsong"
	"github.com/twitchsongbot/songbot/internal/device"
	"github.com/twitchsongbot/songbot/internal/eventbus"
	"github.com/twitchsongbot/songbot/internal/fallback"
	"github.com/twitchsongbot/songbot/internal/models"
	"github.com/twitchsongbot/songbot/internal/queuestore"
	"github.com/twitchsongbot/songbot/internal/trackid"
)

// stubCatalog resolves any trackid.Spotify to a fixed-duration track
// named after its base62 id; it is never asked to search in these tests.
type stubCatalog struct{}

func (stubCatalog) Resolve(ctx context.Context, id trackid.ID) (models.TrackMeta, error) {
	return models.TrackMeta{TrackID: id, Name: id.String(), Duration: time.Minute}, nil
}
func (stubCatalog) Search(ctx context.Context, text string) (trackid.ID, bool, error) {
	return nil, false, nil
}
func (stubCatalog) FetchPlaylist(ctx context.Context, id string) ([]models.TrackMeta, error) {
	return nil, catalog.ErrUnsupported
}
func (stubCatalog) FetchLibrary(ctx context.Context) ([]models.TrackMeta, error) {
	return nil, catalog.ErrUnsupported
}

func newTestEngine(t *testing.T, initialPaused bool) (*Engine, *queuestore.Store, *eventbus.Bus, *fallback.Pool) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.db")
	store, err := queuestore.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bus := eventbus.New()
	pool := fallback.NewPool()
	pub, err := currentsong.New(filepath.Join(t.TempDir(), "current.txt"), "")
	require.NoError(t, err)

	eng := New(Options{
		Device:        device.NewNoop(),
		Queue:         store,
		Pool:          pool,
		Catalog:       stubCatalog{},
		Bus:           bus,
		CurrentSong:   pub,
		Themes:        map[string]models.Theme{},
		InitialPaused: initialPaused,
		CommandBuffer: 16,
	})
	return eng, store, bus, pool
}

func itemFor(name string) models.QueueItem {
	return itemForDuration(name, time.Minute)
}

func itemForDuration(name string, d time.Duration) models.QueueItem {
	return models.QueueItem{
		Meta: models.TrackMeta{TrackID: trackid.Spotify{Base62: name}, Name: name, Duration: d},
	}
}

func waitForEvent(t *testing.T, sub *eventbus.Subscription, kind eventbus.EventKind, timeout time.Duration) eventbus.Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-sub.C:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %v", kind)
		}
	}
}

func TestBasicEnqueueAdvancesToQueueItem(t *testing.T) {
	eng, store, bus, _ := newTestEngine(t, false)
	sub := bus.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	require.NoError(t, store.Append(itemFor("a"), nil))

	ev := waitForEvent(t, sub, eventbus.Playing, time.Second)
	require.NotNil(t, ev.Item)
	assert.Equal(t, "a", ev.Item.Meta.Name)
	assert.Equal(t, models.OriginQueue, ev.Origin)
}

func TestSkipDiscardsCurrentNoSideline(t *testing.T) {
	eng, store, bus, _ := newTestEngine(t, false)
	sub := bus.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	require.NoError(t, store.Append(itemFor("a"), nil))
	waitForEvent(t, sub, eventbus.Playing, time.Second)
	require.NoError(t, store.Append(itemFor("b"), nil))

	eng.Commands() <- Command{Kind: CmdSkip}
	ev := waitForEvent(t, sub, eventbus.Playing, time.Second)
	assert.Equal(t, "b", ev.Item.Meta.Name)

	snap := eng.CurrentSnapshot()
	require.NotNil(t, snap.Loaded)
	assert.Equal(t, "b", snap.Loaded.Item.Meta.Name)
}

func TestFallbackGuardNoSpontaneousPlaybackWhenColdPaused(t *testing.T) {
	eng, _, _, pool := newTestEngine(t, true)
	pool.Set([]models.TrackMeta{{TrackID: trackid.Spotify{Base62: "f1"}, Name: "F1", Duration: time.Minute}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	snap := eng.CurrentSnapshot()
	assert.Nil(t, snap.Loaded)
	assert.True(t, snap.Paused)
}

func TestVolumeClamp(t *testing.T) {
	eng, _, _, _ := newTestEngine(t, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	eng.Commands() <- Command{Kind: CmdVolume, Volume: 1000}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 100, eng.CurrentSnapshot().Volume)

	eng.Commands() <- Command{Kind: CmdVolume, Volume: -50}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, eng.CurrentSnapshot().Volume)
}

func TestInjectSidelinesCurrentThenResumes(t *testing.T) {
	eng, store, bus, _ := newTestEngine(t, false)
	sub := bus.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	require.NoError(t, store.Append(itemFor("a"), nil))
	waitForEvent(t, sub, eventbus.Playing, time.Second)

	intro := itemFor("intro")
	eng.Commands() <- Command{Kind: CmdInject, Item: intro, Offset: 5 * time.Second}
	ev := waitForEvent(t, sub, eventbus.Playing, time.Second)
	assert.Equal(t, "intro", ev.Item.Meta.Name)
	assert.Equal(t, models.OriginInjected, ev.Origin)

	snap := eng.CurrentSnapshot()
	require.NotNil(t, snap.Loaded)
	assert.Equal(t, "intro", snap.Loaded.Item.Meta.Name)

	// Skipping the injected track resumes the sidelined one, keeping its
	// original origin.
	eng.Commands() <- Command{Kind: CmdSkip}
	ev = waitForEvent(t, sub, eventbus.Playing, time.Second)
	assert.Equal(t, "a", ev.Item.Meta.Name)
	assert.Equal(t, models.OriginQueue, ev.Origin)
}

func TestFallbackFiresWhileActivelyPlayingAfterQueueExhausts(t *testing.T) {
	eng, store, bus, pool := newTestEngine(t, false)
	pool.Set([]models.TrackMeta{
		{TrackID: trackid.Spotify{Base62: "fb1"}, Name: "Fallback", Duration: time.Minute},
	})
	sub := bus.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	require.NoError(t, store.Append(itemForDuration("a", 30*time.Millisecond), nil))
	ev := waitForEvent(t, sub, eventbus.Playing, time.Second)
	assert.Equal(t, "a", ev.Item.Meta.Name)
	assert.Equal(t, models.OriginQueue, ev.Origin)

	// "a" finishes with nothing behind it in the queue; because the
	// engine was actively playing (not cold-paused), rule 4 draws a
	// fallback track instead of entering Empty.
	ev = waitForEvent(t, sub, eventbus.Playing, time.Second)
	assert.Equal(t, "Fallback", ev.Item.Meta.Name)
	assert.Equal(t, models.OriginFallback, ev.Origin)
}

func TestPurgeWhilePlayingLeavesCurrentPlaying(t *testing.T) {
	eng, store, bus, _ := newTestEngine(t, false)
	sub := bus.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	require.NoError(t, store.Append(itemForDuration("a", 300*time.Millisecond), nil))
	waitForEvent(t, sub, eventbus.Playing, time.Second)

	require.NoError(t, store.Append(itemFor("b"), nil))

	// Purge removes every queued (not-yet-loaded) item. This mirrors what
	// playerclient.Client.Purge does: mutate the durable queue directly,
	// then broadcast Modified, without sending the engine any command —
	// the currently loaded item is untouched until it finishes on its own.
	purged := store.Purge()
	require.Len(t, purged, 1)
	assert.Equal(t, "b", purged[0].Meta.Name)
	bus.Publish(eventbus.Event{Kind: eventbus.Modified})

	waitForEvent(t, sub, eventbus.Modified, time.Second)
	snap := eng.CurrentSnapshot()
	require.NotNil(t, snap.Loaded)
	assert.Equal(t, "a", snap.Loaded.Item.Meta.Name)

	// Once "a" finishes, the queue is empty (purged) and the fallback
	// pool is empty too, so the engine enters Empty rather than
	// spontaneously drawing a fallback track.
	waitForEvent(t, sub, eventbus.Empty, time.Second)
	snap = eng.CurrentSnapshot()
	assert.Nil(t, snap.Loaded)
}
