package catalog

import (
	"context"

	"github.com/twitchsongbot/songbot/internal/models"
	"github.com/twitchsongbot/songbot/internal/trackid"
)

// MultiAdapter dispatches Resolve/Search calls across one Adapter per
// trackid.Provider, since admission and the fallback harvester only hold
// a single catalog.Adapter but the bot talks to more than one upstream.
// FetchPlaylist/FetchLibrary are routed to a single configured library
// provider, since only one upstream (Spotify) supports them in this
// deployment.
type MultiAdapter struct {
	byProvider      map[trackid.Provider]Adapter
	searchOrder     []trackid.Provider
	libraryProvider trackid.Provider
}

// NewMultiAdapter builds a MultiAdapter. searchOrder controls which
// provider's Search is tried first for free-text queries; libraryProvider
// is the adapter FetchPlaylist/FetchLibrary are routed to.
func NewMultiAdapter(byProvider map[trackid.Provider]Adapter, searchOrder []trackid.Provider, libraryProvider trackid.Provider) *MultiAdapter {
	return &MultiAdapter{byProvider: byProvider, searchOrder: searchOrder, libraryProvider: libraryProvider}
}

func (m *MultiAdapter) Resolve(ctx context.Context, id trackid.ID) (models.TrackMeta, error) {
	adapter, ok := m.byProvider[id.Provider()]
	if !ok {
		return models.TrackMeta{}, ErrUnsupported
	}
	return adapter.Resolve(ctx, id)
}

// Search tries each configured provider in order, returning the first
// match. An error from one provider does not block trying the next; if no
// provider finds a match and at least one returned an error, the last
// error is returned.
func (m *MultiAdapter) Search(ctx context.Context, text string) (trackid.ID, bool, error) {
	var lastErr error
	for _, p := range m.searchOrder {
		adapter, ok := m.byProvider[p]
		if !ok {
			continue
		}
		id, found, err := adapter.Search(ctx, text)
		if err != nil {
			lastErr = err
			continue
		}
		if found {
			return id, true, nil
		}
	}
	return nil, false, lastErr
}

func (m *MultiAdapter) FetchPlaylist(ctx context.Context, playlistID string) ([]models.TrackMeta, error) {
	adapter, ok := m.byProvider[m.libraryProvider]
	if !ok {
		return nil, ErrUnsupported
	}
	return adapter.FetchPlaylist(ctx, playlistID)
}

func (m *MultiAdapter) FetchLibrary(ctx context.Context) ([]models.TrackMeta, error) {
	adapter, ok := m.byProvider[m.libraryProvider]
	if !ok {
		return nil, ErrUnsupported
	}
	return adapter.FetchLibrary(ctx)
}

var _ Adapter = (*MultiAdapter)(nil)
