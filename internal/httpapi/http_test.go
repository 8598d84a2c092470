package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitchsongbot/songbot/internal/catalog"
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

type stubCatalog struct{}

func (stubCatalog) Resolve(ctx context.Context, id trackid.ID) (models.TrackMeta, error) {
	return models.TrackMeta{TrackID: id, Name: id.String(), Duration: time.Minute}, nil
}
func (stubCatalog) Search(ctx context.Context, text string) (trackid.ID, bool, error) {
	return nil, false, nil
}
func (stubCatalog) FetchPlaylist(ctx context.Context, playlistID string) ([]models.TrackMeta, error) {
	return nil, catalog.ErrUnsupported
}
func (stubCatalog) FetchLibrary(ctx context.Context) ([]models.TrackMeta, error) {
	return nil, catalog.ErrUnsupported
}

func newTestClient(t *testing.T) *playerclient.Client {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "queue.db")
	store, err := queuestore.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bus := eventbus.New()
	pool := fallback.NewPool()
	pub, err := currentsong.New(filepath.Join(t.TempDir(), "current.txt"), "")
	require.NoError(t, err)

	eng := engine.New(engine.Options{
		Device:        device.NewNoop(),
		Queue:         store,
		Pool:          pool,
		Catalog:       stubCatalog{},
		Bus:           bus,
		CurrentSong:   pub,
		Themes:        map[string]models.Theme{},
		CommandBuffer: 16,
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go eng.Run(ctx)

	return playerclient.New(eng, store, bus, map[string]models.Theme{})
}

func newTestRouter(t *testing.T) *gin.Engine {
	client := newTestClient(t)
	r := gin.New()
	NewHandlers(client).Register(r.Group("/api"))
	return r
}

func TestCurrentReportsNotPlayingWhenEmpty(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/current", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["playing"])
}

func TestQueueReflectsAppendedItems(t *testing.T) {
	client := newTestClient(t)
	r := gin.New()
	NewHandlers(client).Register(r.Group("/api"))

	// Pause first so the appended item stays queued rather than loading.
	client.Pause()
	time.Sleep(50 * time.Millisecond)

	user := "u1"
	_, err := client.AppendRequest(context.Background(), models.QueueItem{
		Meta:      models.TrackMeta{TrackID: trackid.Spotify{Base62: "aaaaaaaaaaaaaaaaaaaaaa"}, Name: "Song A", Duration: time.Minute},
		Requester: &user,
	}, &user)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Queue []queueEntry `json:"queue"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Queue, 1)
	assert.Equal(t, "Song A", body.Queue[0].Name)
	require.NotNil(t, body.Queue[0].Requester)
	assert.Equal(t, "u1", *body.Queue[0].Requester)
}

func TestLengthReportsCountAndDuration(t *testing.T) {
	client := newTestClient(t)
	r := gin.New()
	NewHandlers(client).Register(r.Group("/api"))

	_, err := client.AppendRequest(context.Background(), models.QueueItem{
		Meta: models.TrackMeta{TrackID: trackid.Spotify{Base62: "bbbbbbbbbbbbbbbbbbbbbb"}, Name: "Song B", Duration: 2 * time.Minute},
	}, nil)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/api/length", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	// The lone appended item loads immediately since nothing was already
	// playing; length includes the currently loaded track.
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, float64(120), body["total_seconds"])
}

func TestEventKindNameCoversAllKinds(t *testing.T) {
	cases := map[eventbus.EventKind]string{
		eventbus.Empty:         "Empty",
		eventbus.Playing:       "Playing",
		eventbus.Pausing:       "Pausing",
		eventbus.Modified:      "Modified",
		eventbus.NotConfigured: "NotConfigured",
		eventbus.Detached:      "Detached",
	}
	for kind, want := range cases {
		assert.Equal(t, want, eventKindName(kind))
	}
}
