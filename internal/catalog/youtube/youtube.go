// Package youtube adapts google.golang.org/api/youtube/v3 to
// catalog.Adapter. YouTube has no user-library or playlist-of-saved-songs
// concept exposed the way Spotify does for this bot's purposes, so
// FetchPlaylist/FetchLibrary report catalog.ErrUnsupported; cmd/songbot
// routes those calls to the Spotify adapter through catalog.MultiAdapter.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/api/googleapi"
	youtubeapi "google.golang.org/api/youtube/v3"

	"github.com/twitchsongbot/songbot/internal/catalog"
	"github.com/twitchsongbot/songbot/internal/models"
	"github.com/twitchsongbot/songbot/internal/trackid"
)

// Adapter implements catalog.Adapter against the YouTube Data API.
type Adapter struct {
	svc *youtubeapi.Service
}

// New wraps an authenticated YouTube Data API client.
func New(svc *youtubeapi.Service) *Adapter {
	return &Adapter{svc: svc}
}

var _ catalog.Adapter = (*Adapter)(nil)

func (a *Adapter) Resolve(ctx context.Context, id trackid.ID) (models.TrackMeta, error) {
	yt, ok := id.(trackid.YouTube)
	if !ok {
		return models.TrackMeta{}, fmt.Errorf("%w: youtube adapter given %s id", catalog.ErrMalformed, id.Provider())
	}

	resp, err := a.svc.Videos.List([]string{"snippet", "contentDetails"}).
		Id(yt.VideoID).Context(ctx).Do()
	if err != nil {
		return models.TrackMeta{}, classifyErr(err)
	}
	if len(resp.Items) == 0 {
		return models.TrackMeta{}, fmt.Errorf("%w: video %s", catalog.ErrNotFound, yt.VideoID)
	}

	item := resp.Items[0]
	dur, err := parseISO8601Duration(item.ContentDetails.Duration)
	if err != nil {
		dur = 0
	}
	return models.TrackMeta{
		TrackID:  trackid.YouTube{VideoID: yt.VideoID},
		Artists:  []string{item.Snippet.ChannelTitle},
		Name:     item.Snippet.Title,
		Duration: dur,
	}, nil
}

func (a *Adapter) Search(ctx context.Context, text string) (trackid.ID, bool, error) {
	resp, err := a.svc.Search.List([]string{"snippet"}).
		Q(text).Type("video").VideoCategoryId("10").MaxResults(1).Context(ctx).Do()
	if err != nil {
		return nil, false, classifyErr(err)
	}
	if len(resp.Items) == 0 {
		return nil, false, nil
	}
	top := resp.Items[0]
	if top.Id == nil || top.Id.VideoId == "" {
		return nil, false, nil
	}
	return trackid.YouTube{VideoID: top.Id.VideoId}, true, nil
}

func (a *Adapter) FetchPlaylist(ctx context.Context, playlistID string) ([]models.TrackMeta, error) {
	return nil, fmt.Errorf("%w: youtube playlist harvest", catalog.ErrUnsupported)
}

func (a *Adapter) FetchLibrary(ctx context.Context) ([]models.TrackMeta, error) {
	return nil, fmt.Errorf("%w: youtube library harvest", catalog.ErrUnsupported)
}

func classifyErr(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 404:
			return fmt.Errorf("%w: %s", catalog.ErrNotFound, apiErr.Message)
		case 429, 500, 502, 503:
			return fmt.Errorf("%w: %s", catalog.ErrTransient, apiErr.Message)
		}
	}
	return fmt.Errorf("%w: %v", catalog.ErrTransient, err)
}

// parseISO8601Duration parses the limited PT#H#M#S subset YouTube's
// contentDetails.duration field always uses.
func parseISO8601Duration(s string) (time.Duration, error) {
	if len(s) < 2 || s[0] != 'P' {
		return 0, fmt.Errorf("youtube: malformed duration %q", s)
	}
	s = s[1:]
	if len(s) == 0 || s[0] != 'T' {
		return 0, fmt.Errorf("youtube: malformed duration missing T: %q", s)
	}
	s = s[1:]

	var total time.Duration
	var num int64
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			num = num*10 + int64(r-'0')
		case r == 'H':
			total += time.Duration(num) * time.Hour
			num = 0
		case r == 'M':
			total += time.Duration(num) * time.Minute
			num = 0
		case r == 'S':
			total += time.Duration(num) * time.Second
			num = 0
		default:
			return 0, fmt.Errorf("youtube: malformed duration unit %q", r)
		}
	}
	return total, nil
}
