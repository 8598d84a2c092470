package engine

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/twitchsongbot/songbot/internal/models"
)

// restoreQueue rehydrates persisted queue records at startup by
// re-resolving each through the catalog adapter, per spec.md §4.1's
// "On startup, the engine restores persisted queue records by
// re-resolving each through the Catalog Adapter." A record that fails to
// resolve is logged and dropped rather than failing startup, per spec.md
// §4.1's failure semantics.
func (e *Engine) restoreQueue(ctx context.Context) {
	records, err := e.queue.LoadRecords()
	if err != nil {
		logrus.WithError(err).Error("engine: failed to load persisted queue records")
		return
	}
	if len(records) == 0 {
		return
	}

	items := make([]*models.QueueItem, len(records))
	for i, rec := range records {
		meta, err := e.catalog.Resolve(ctx, rec.TrackID)
		if err != nil {
			logrus.WithError(err).WithField("track_id", rec.TrackID.String()).
				Warn("engine: skipping unresolvable persisted queue record")
			items[i] = nil
			continue
		}
		items[i] = &models.QueueItem{Meta: meta, Requester: rec.User}
	}

	if err := e.queue.Restore(items); err != nil {
		logrus.WithError(err).Error("engine: failed to restore queue records")
	}
}
