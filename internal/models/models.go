// Package models contains the shared value types of the playback core:
// resolved track metadata, queue items, their durable projection, and
// named theme tracks. Mirrors the role jellycli's models package plays for
// its own Song/Album/Artist types, but scoped to what a song-request bot
// needs rather than a full music browser.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/twitchsongbot/songbot/internal/trackid"
)

// TrackMeta is resolved, immutable metadata for a track.
type TrackMeta struct {
	TrackID  trackid.ID
	Artists  []string
	Name     string
	Duration time.Duration
}

// What renders a human-readable description, e.g. `"Song Name" by A, B`.
func (m TrackMeta) What() string {
	if len(m.Artists) == 0 {
		return fmt.Sprintf("%q", m.Name)
	}
	return fmt.Sprintf("%q by %s", m.Name, strings.Join(m.Artists, ", "))
}

// QueueItem is a track plus the requester that queued it. Requester is nil
// for fallback and theme items.
type QueueItem struct {
	Meta      TrackMeta
	Requester *string
}

// RequestedBy reports whether the item was requested by the given user.
func (q QueueItem) RequestedBy(user string) bool {
	return q.Requester != nil && *q.Requester == user
}

// QueueRecord is the durable shadow of a QueueItem kept in the queue
// store. Metadata is re-resolved from the catalog adapter at startup;
// only the identifying and bookkeeping fields are persisted.
type QueueRecord struct {
	TrackID trackid.ID
	AddedAt time.Time
	User    *string
}

// Theme is a named short track played on command at a configured offset.
type Theme struct {
	Name   string
	Track  trackid.ID
	Offset time.Duration
	End    *time.Duration
}

// Origin is the provenance of the currently loaded track.
type Origin int

const (
	OriginQueue Origin = iota
	OriginInjected
	OriginFallback
)

func (o Origin) String() string {
	switch o {
	case OriginQueue:
		return "queue"
	case OriginInjected:
		return "injected"
	case OriginFallback:
		return "fallback"
	default:
		return "unknown"
	}
}
