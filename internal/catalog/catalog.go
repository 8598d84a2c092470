// Package catalog defines the Track Catalog Adapter consumed by the
// admission pipeline and the fallback pool harvester: resolve an opaque
// track id to metadata, search by free text, and fetch a playlist or a
// library snapshot. Concrete adapters live in catalog/spotify and
// catalog/youtube; CachingAdapter wraps any Adapter with a keyed TTL
// cache so process restarts do not storm the upstream, per spec.md §4.5.
package catalog

import (
	"context"
	"errors"

	"github.com/twitchsongbot/songbot/internal/models"
	"github.com/twitchsongbot/songbot/internal/trackid"
)

// Adapter resolves track identifiers and searches against a remote
// catalog provider.
type Adapter interface {
	// Resolve fetches metadata for a known track id.
	Resolve(ctx context.Context, id trackid.ID) (models.TrackMeta, error)
	// Search returns the top search match, or (zero, false) if nothing
	// matched.
	Search(ctx context.Context, text string) (trackid.ID, bool, error)
	// FetchPlaylist returns every track in the given playlist, used once
	// at startup for the fallback pool.
	FetchPlaylist(ctx context.Context, playlistID string) ([]models.TrackMeta, error)
	// FetchLibrary returns the requester's saved library tracks, used as
	// a fallback pool source when no playlist is configured.
	FetchLibrary(ctx context.Context) ([]models.TrackMeta, error)
}

// Failure classes surfaced by adapters. Admission reports NotFound as a
// not-found refusal; every other failure (Transient, Malformed, ...) maps
// to a generic "there was a problem" refusal.
var (
	ErrNotFound    = errors.New("catalog: track not found")
	ErrTransient   = errors.New("catalog: transient upstream failure")
	ErrMalformed   = errors.New("catalog: malformed track id")
	ErrUnsupported = errors.New("catalog: operation not supported by this provider")
)
