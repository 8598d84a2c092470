// Package spotify adapts zmb3/spotify/v2 to catalog.Adapter, the shape
// original_source/bot/src/player/spotify.rs wraps over rspotify. Track ids
// here are always trackid.Spotify.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	spotifyapi "github.com/zmb3/spotify/v2"

	"github.com/twitchsongbot/songbot/internal/catalog"
	"github.com/twitchsongbot/songbot/internal/models"
	"github.com/twitchsongbot/songbot/internal/trackid"
)

// Client is the subset of *spotify.Client this adapter depends on, so
// tests can substitute a fake.
type Client interface {
	GetTrack(ctx context.Context, id spotifyapi.ID, opts ...spotifyapi.RequestOption) (*spotifyapi.FullTrack, error)
	Search(ctx context.Context, query string, t spotifyapi.SearchType, opts ...spotifyapi.RequestOption) (*spotifyapi.SearchResult, error)
	GetPlaylistTracks(ctx context.Context, playlistID spotifyapi.ID, opts ...spotifyapi.RequestOption) (*spotifyapi.PlaylistTrackPage, error)
	CurrentUsersTracks(ctx context.Context, opts ...spotifyapi.RequestOption) (*spotifyapi.SavedTrackPage, error)
	NextPlaylistTrackResults(ctx context.Context, page *spotifyapi.PlaylistTrackPage) error
	NextSavedTrackResults(ctx context.Context, page *spotifyapi.SavedTrackPage) error
}

// Adapter implements catalog.Adapter against a live Spotify Web API
// client.
type Adapter struct {
	client Client
}

// New wraps an authenticated Spotify client.
func New(client Client) *Adapter {
	return &Adapter{client: client}
}

var _ catalog.Adapter = (*Adapter)(nil)

func fromFullTrack(t *spotifyapi.FullTrack) models.TrackMeta {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return models.TrackMeta{
		TrackID:  trackid.Spotify{Base62: t.ID.String()},
		Artists:  artists,
		Name:     t.Name,
		Duration: time.Duration(t.Duration) * time.Millisecond,
	}
}

func fromSimpleTrack(t spotifyapi.SimpleTrack) models.TrackMeta {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return models.TrackMeta{
		TrackID:  trackid.Spotify{Base62: t.ID.String()},
		Artists:  artists,
		Name:     t.Name,
		Duration: time.Duration(t.Duration) * time.Millisecond,
	}
}

func (a *Adapter) Resolve(ctx context.Context, id trackid.ID) (models.TrackMeta, error) {
	sp, ok := id.(trackid.Spotify)
	if !ok {
		return models.TrackMeta{}, fmt.Errorf("%w: spotify adapter given %s id", catalog.ErrMalformed, id.Provider())
	}

	track, err := a.client.GetTrack(ctx, spotifyapi.ID(sp.Base62))
	if err != nil {
		return models.TrackMeta{}, classifyErr(err)
	}
	return fromFullTrack(track), nil
}

func (a *Adapter) Search(ctx context.Context, text string) (trackid.ID, bool, error) {
	res, err := a.client.Search(ctx, text, spotifyapi.SearchTypeTrack, spotifyapi.Limit(1))
	if err != nil {
		return nil, false, classifyErr(err)
	}
	if res.Tracks == nil || len(res.Tracks.Tracks) == 0 {
		return nil, false, nil
	}
	top := res.Tracks.Tracks[0]
	return trackid.Spotify{Base62: top.ID.String()}, true, nil
}

func (a *Adapter) FetchPlaylist(ctx context.Context, playlistID string) ([]models.TrackMeta, error) {
	var out []models.TrackMeta

	page, err := a.client.GetPlaylistTracks(ctx, spotifyapi.ID(playlistID))
	if err != nil {
		return nil, classifyErr(err)
	}
	for {
		for _, item := range page.Tracks {
			out = append(out, fromSimpleTrack(item.Track.SimpleTrack))
		}
		err := a.client.NextPlaylistTrackResults(ctx, page)
		if errors.Is(err, spotifyapi.ErrNoMorePages) {
			break
		}
		if err != nil {
			logrus.Warnf("spotify: paging playlist %s stopped early: %v", playlistID, err)
			break
		}
	}
	return out, nil
}

func (a *Adapter) FetchLibrary(ctx context.Context) ([]models.TrackMeta, error) {
	var out []models.TrackMeta

	page, err := a.client.CurrentUsersTracks(ctx)
	if err != nil {
		return nil, classifyErr(err)
	}
	for {
		for _, item := range page.Tracks {
			out = append(out, fromSimpleTrack(item.SimpleTrack))
		}
		err := a.client.NextSavedTrackResults(ctx, page)
		if errors.Is(err, spotifyapi.ErrNoMorePages) {
			break
		}
		if err != nil {
			logrus.Warnf("spotify: paging saved tracks stopped early: %v", err)
			break
		}
	}
	return out, nil
}

func classifyErr(err error) error {
	var apiErr spotifyapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case 404:
			return fmt.Errorf("%w: %s", catalog.ErrNotFound, apiErr.Message)
		case 429, 500, 502, 503:
			return fmt.Errorf("%w: %s", catalog.ErrTransient, apiErr.Message)
		}
	}
	return fmt.Errorf("%w: %v", catalog.ErrTransient, err)
}
