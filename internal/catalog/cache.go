package catalog

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/twitchsongbot/songbot/internal/models"
	"github.com/twitchsongbot/songbot/internal/trackid"
)

// CachingAdapter decorates an Adapter with a keyed TTL cache (every
// entry, whatever the call kind, gets the same TTL), per spec.md §4.5 ("all calls are cacheable: the adapter wraps in
// a keyed cache with per-key TTL so restarts do not storm the upstream").
// No repo in the retrieval pack ships an in-process TTL cache of its
// own, so this reaches directly for the ecosystem's idiomatic one
// (patrickmn/go-cache) rather than hand-rolling expiry bookkeeping.
type CachingAdapter struct {
	inner Adapter
	cache *gocache.Cache
}

// NewCachingAdapter wraps inner with a cache using ttl for every entry;
// expired entries are swept every 2*ttl.
func NewCachingAdapter(inner Adapter, ttl time.Duration) *CachingAdapter {
	return &CachingAdapter{
		inner: inner,
		cache: gocache.New(ttl, ttl*2),
	}
}

func resolveKey(id trackid.ID) string {
	return fmt.Sprintf("resolve:%s:%s", id.Provider(), id.String())
}

func (c *CachingAdapter) Resolve(ctx context.Context, id trackid.ID) (models.TrackMeta, error) {
	key := resolveKey(id)
	if v, ok := c.cache.Get(key); ok {
		logrus.Tracef("catalog: cache hit for %s", key)
		return v.(models.TrackMeta), nil
	}

	meta, err := c.inner.Resolve(ctx, id)
	if err != nil {
		return models.TrackMeta{}, err
	}
	c.cache.SetDefault(key, meta)
	return meta, nil
}

func (c *CachingAdapter) Search(ctx context.Context, text string) (trackid.ID, bool, error) {
	key := "search:" + text
	if v, ok := c.cache.Get(key); ok {
		cached := v.(searchResult)
		return cached.id, cached.found, nil
	}

	id, found, err := c.inner.Search(ctx, text)
	if err != nil {
		return nil, false, err
	}
	c.cache.SetDefault(key, searchResult{id: id, found: found})
	return id, found, nil
}

type searchResult struct {
	id    trackid.ID
	found bool
}

func (c *CachingAdapter) FetchPlaylist(ctx context.Context, playlistID string) ([]models.TrackMeta, error) {
	key := "playlist:" + playlistID
	if v, ok := c.cache.Get(key); ok {
		return v.([]models.TrackMeta), nil
	}
	items, err := c.inner.FetchPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, items)
	return items, nil
}

func (c *CachingAdapter) FetchLibrary(ctx context.Context) ([]models.TrackMeta, error) {
	key := "library"
	if v, ok := c.cache.Get(key); ok {
		return v.([]models.TrackMeta), nil
	}
	items, err := c.inner.FetchLibrary(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, items)
	return items, nil
}
