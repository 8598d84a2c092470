// Package fallback holds the static snapshot of tracks the engine picks
// from uniformly at random once the user queue is empty and playback is
// active, per spec.md §4.1 rule 4. jellycli's own fallback concept
// (original_source's songs_to_items/playlist_to_items in player.rs)
// harvests once at startup from either a configured playlist or the
// streamer's saved library; this package keeps that same two-source
// choice.
package fallback

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/twitchsongbot/songbot/internal/catalog"
	"github.com/twitchsongbot/songbot/internal/models"
)

// Pool is an atomically swappable snapshot of fallback tracks. Swaps
// always replace the whole slice, never mutate in place, per spec.md §9's
// design note on (optional) periodic refresh.
type Pool struct {
	items atomic.Pointer[[]models.TrackMeta]
}

// NewPool creates an empty pool; call Set (typically with Harvest's
// result) before relying on it.
func NewPool() *Pool {
	p := &Pool{}
	empty := []models.TrackMeta{}
	p.items.Store(&empty)
	return p
}

// Set atomically replaces the pool contents.
func (p *Pool) Set(items []models.TrackMeta) {
	cp := make([]models.TrackMeta, len(items))
	copy(cp, items)
	p.items.Store(&cp)
}

// Len reports the current pool size.
func (p *Pool) Len() int {
	return len(*p.items.Load())
}

// Pick returns a uniformly random track from the pool, or false if the
// pool is empty.
func (p *Pool) Pick(rng *rand.Rand) (models.TrackMeta, bool) {
	items := *p.items.Load()
	if len(items) == 0 {
		return models.TrackMeta{}, false
	}
	return items[rng.Intn(len(items))], true
}

// Harvest resolves a fallback pool once at startup, from a playlist id if
// given, otherwise the requester's library, mirroring
// original_source/bot/src/player.rs's playlist_to_items/songs_to_items
// choice.
func Harvest(ctx context.Context, adapter catalog.Adapter, playlistID string) ([]models.TrackMeta, error) {
	if playlistID != "" {
		items, err := adapter.FetchPlaylist(ctx, playlistID)
		if err != nil {
			return nil, fmt.Errorf("fallback: fetch playlist %s: %w", playlistID, err)
		}
		return items, nil
	}
	items, err := adapter.FetchLibrary(ctx)
	if err != nil {
		return nil, fmt.Errorf("fallback: fetch library: %w", err)
	}
	return items, nil
}
