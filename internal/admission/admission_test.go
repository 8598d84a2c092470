package admission

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitchsongbot/songbot/internal/catalog"
	"github.com/twitchsongbot/songbot/internal/config"
	"github.com/twitchsongbot/songbot/internal/currency"
	"github.com/twitchsongbot/songbot/internal/currentsong"
	"github.com/twitchsongbot/songbot/internal/device"
	"github.com/twitchsongbot/songbot/internal/engine"
	"github.com/twitchsongbot/songbot/internal/eventbus"
	"github.com/twitchsongbot/songbot/internal/fallback"
	"github.com/twitchsongbot/songbot/internal/models"
	"github.com/twitchsongbot/songbot/internal/playerclient"
	"github.com/twitchsongbot/songbot/internal/queuestore"
	"github.com/twitchsongbot/songbot/internal/trackid"
)

// fakeCatalog is an in-memory catalog.Adapter test double.
type fakeCatalog struct {
	byID    map[string]models.TrackMeta
	search  map[string]trackid.ID
	failSearch bool
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{byID: map[string]models.TrackMeta{}, search: map[string]trackid.ID{}}
}

func (f *fakeCatalog) Resolve(ctx context.Context, id trackid.ID) (models.TrackMeta, error) {
	m, ok := f.byID[id.String()]
	if !ok {
		return models.TrackMeta{}, catalog.ErrNotFound
	}
	return m, nil
}

func (f *fakeCatalog) Search(ctx context.Context, text string) (trackid.ID, bool, error) {
	if f.failSearch {
		return nil, false, catalog.ErrTransient
	}
	id, ok := f.search[text]
	return id, ok, nil
}

func (f *fakeCatalog) FetchPlaylist(ctx context.Context, playlistID string) ([]models.TrackMeta, error) {
	return nil, catalog.ErrUnsupported
}

func (f *fakeCatalog) FetchLibrary(ctx context.Context) ([]models.TrackMeta, error) {
	return nil, catalog.ErrUnsupported
}

func setupPipeline(t *testing.T) (*Pipeline, *fakeCatalog, *playerclient.Client) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "queue.db")
	store, err := queuestore.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cat := newFakeCatalog()
	bus := eventbus.New()
	pool := fallback.NewPool()
	dev := device.NewNoop()
	pub, err := currentsong.New(filepath.Join(t.TempDir(), "current.txt"), "")
	require.NoError(t, err)

	eng := engine.New(engine.Options{
		Device:        dev,
		Queue:         store,
		Pool:          pool,
		Catalog:       cat,
		Bus:           bus,
		CurrentSong:   pub,
		Themes:        map[string]models.Theme{},
		// Paused, so admitted items stay in the queue instead of being
		// loaded by the Modified command each append sends.
		InitialPaused: true,
		CommandBuffer: 16,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go eng.Run(ctx)

	client := playerclient.New(eng, store, bus, map[string]models.Theme{})

	cfg := &config.Config{
		MaxQueueLength:  50,
		MaxSongsPerUser: 2,
		DuplicateLimit:  time.Minute,
		Providers: map[trackid.Provider]config.ProviderSettings{
			trackid.ProviderSpotify: {Enabled: true, MaxDuration: 10 * time.Minute},
			trackid.ProviderYouTube: {Enabled: true, MaxDuration: 10 * time.Minute},
		},
	}

	ledger := currency.New()
	p := New(cat, client, ledger, cfg)
	return p, cat, client
}

func TestBasicEnqueue(t *testing.T) {
	p, cat, _ := setupPipeline(t)
	cat.byID["aaaaaaaaaaaaaaaaaaaaaa"] = models.TrackMeta{
		TrackID: trackid.Spotify{Base62: "aaaaaaaaaaaaaaaaaaaaaa"},
		Name:    "Song A",
		Duration: 3 * time.Minute,
	}

	pos, item, err := p.Request(context.Background(), Request{User: "u1", Text: "aaaaaaaaaaaaaaaaaaaaaa"})
	require.NoError(t, err)
	assert.Equal(t, 0, pos)
	assert.Equal(t, "Song A", item.Meta.Name)
}

func TestDuplicateInQueueRefused(t *testing.T) {
	p, cat, _ := setupPipeline(t)
	cat.byID["aaaaaaaaaaaaaaaaaaaaaa"] = models.TrackMeta{
		TrackID:  trackid.Spotify{Base62: "aaaaaaaaaaaaaaaaaaaaaa"},
		Name:     "Song A",
		Duration: 3 * time.Minute,
	}

	_, _, err := p.Request(context.Background(), Request{User: "u1", Text: "aaaaaaaaaaaaaaaaaaaaaa"})
	require.NoError(t, err)

	_, _, err = p.Request(context.Background(), Request{User: "u2", Text: "aaaaaaaaaaaaaaaaaaaaaa"})
	require.Error(t, err)
	var refusal *Refusal
	require.True(t, errors.As(err, &refusal))
	assert.ErrorIs(t, refusal, ErrQueueContainsTrack)
	assert.Equal(t, 0, refusal.Position)
}

func TestSubscribersOnlyRefusal(t *testing.T) {
	p, cat, _ := setupPipeline(t)
	p.cfg.SubscriberOnly = true
	cat.byID["bbbbbbbbbbbbbbbbbbbbbb"] = models.TrackMeta{
		TrackID:  trackid.Spotify{Base62: "bbbbbbbbbbbbbbbbbbbbbb"},
		Name:     "Song B",
		Duration: time.Minute,
	}

	_, _, err := p.Request(context.Background(), Request{User: "u3", Text: "bbbbbbbbbbbbbbbbbbbbbb"})
	require.Error(t, err)
	var refusal *Refusal
	require.True(t, errors.As(err, &refusal))
	assert.ErrorIs(t, refusal, ErrSubscribersOnly)
	assert.Equal(t, trackid.ProviderSpotify, refusal.Provider)
}

func TestNotFoundViaSearchFallback(t *testing.T) {
	p, _, _ := setupPipeline(t)

	_, _, err := p.Request(context.Background(), Request{User: "u1", Text: "some free text query"})
	require.Error(t, err)
	var refusal *Refusal
	require.True(t, errors.As(err, &refusal))
	assert.ErrorIs(t, refusal, ErrNotFound)
}

func TestMaxDurationExceeded(t *testing.T) {
	p, cat, _ := setupPipeline(t)
	p.cfg.Providers[trackid.ProviderSpotify] = config.ProviderSettings{Enabled: true, MaxDuration: time.Minute}
	cat.byID["cccccccccccccccccccccc"] = models.TrackMeta{
		TrackID:  trackid.Spotify{Base62: "cccccccccccccccccccccc"},
		Name:     "Long Song",
		Duration: 10 * time.Minute,
	}

	_, _, err := p.Request(context.Background(), Request{User: "u1", Text: "cccccccccccccccccccccc"})
	require.Error(t, err)
	var refusal *Refusal
	require.True(t, errors.As(err, &refusal))
	assert.ErrorIs(t, refusal, ErrMaxDurationExceeded)
}

func TestNotEnoughCurrencyRefundsOnFailure(t *testing.T) {
	p, cat, _ := setupPipeline(t)
	p.cfg.Providers[trackid.ProviderSpotify] = config.ProviderSettings{Enabled: true, MinCurrency: 100, MaxDuration: 10 * time.Minute}
	cat.byID["dddddddddddddddddddddd"] = models.TrackMeta{
		TrackID:  trackid.Spotify{Base62: "dddddddddddddddddddddd"},
		Name:     "Priced Song",
		Duration: time.Minute,
	}

	_, _, err := p.Request(context.Background(), Request{User: "poor", Text: "dddddddddddddddddddddd"})
	require.Error(t, err)
	var refusal *Refusal
	require.True(t, errors.As(err, &refusal))
	assert.ErrorIs(t, refusal, ErrNotEnoughCurrency)
	assert.Equal(t, int64(0), refusal.Balance)
	assert.Equal(t, int64(0), p.ledger.Balance("poor"))
}

func TestTooManyUserTracks(t *testing.T) {
	p, cat, _ := setupPipeline(t)
	p.cfg.MaxSongsPerUser = 1
	cat.byID["eeeeeeeeeeeeeeeeeeeeee"] = models.TrackMeta{TrackID: trackid.Spotify{Base62: "eeeeeeeeeeeeeeeeeeeeee"}, Name: "E", Duration: time.Minute}
	cat.byID["ffffffffffffffffffffff"] = models.TrackMeta{TrackID: trackid.Spotify{Base62: "ffffffffffffffffffffff"}, Name: "F", Duration: time.Minute}

	_, _, err := p.Request(context.Background(), Request{User: "u1", Text: "eeeeeeeeeeeeeeeeeeeeee"})
	require.NoError(t, err)

	_, _, err = p.Request(context.Background(), Request{User: "u1", Text: "ffffffffffffffffffffff"})
	require.Error(t, err)
	var refusal *Refusal
	require.True(t, errors.As(err, &refusal))
	assert.ErrorIs(t, refusal, ErrTooManyUserTracks)
}
