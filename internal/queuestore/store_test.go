package queuestore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitchsongbot/songbot/internal/models"
	"github.com/twitchsongbot/songbot/internal/trackid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func itemFor(name string, user string) models.QueueItem {
	var u *string
	if user != "" {
		u = &user
	}
	return models.QueueItem{
		Meta: models.TrackMeta{
			TrackID:  trackid.Spotify{Base62: name},
			Name:     name,
			Duration: time.Minute,
		},
		Requester: u,
	}
}

func TestAppendAndDurability(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Append(itemFor("a", "u1"), strPtr("u1")))
	require.NoError(t, s.Append(itemFor("b", "u2"), strPtr("u2")))
	require.NoError(t, s.Close())

	// restart: rehydrate records and check relative position is preserved.
	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	recs, err := s2.LoadRecords()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].TrackID.String())
	assert.Equal(t, "b", recs[1].TrackID.String())
}

func strPtr(s string) *string { return &s }

func TestPopFront(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Append(itemFor("a", "u1"), strPtr("u1")))
	require.NoError(t, s.Append(itemFor("b", "u2"), strPtr("u2")))

	item, ok := s.PopFront()
	require.True(t, ok)
	assert.Equal(t, "a", item.Meta.Name)
	assert.Equal(t, 1, s.Len())

	item, ok = s.PopFront()
	require.True(t, ok)
	assert.Equal(t, "b", item.Meta.Name)

	_, ok = s.PopFront()
	assert.False(t, ok)
}

func TestRemoveAtOutOfRangeReturnsFalse(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Append(itemFor("a", "u1"), strPtr("u1")))

	// n == len(queue) must return (zero, false), not panic.
	_, ok := s.RemoveAt(1)
	assert.False(t, ok)

	_, ok = s.RemoveAt(-1)
	assert.False(t, ok)

	_, ok = s.RemoveAt(0)
	assert.True(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestRemoveLastByUser(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Append(itemFor("a", "u1"), strPtr("u1")))
	require.NoError(t, s.Append(itemFor("b", "u2"), strPtr("u2")))
	require.NoError(t, s.Append(itemFor("c", "u1"), strPtr("u1")))

	item, ok := s.RemoveLastByUser("u1")
	require.True(t, ok)
	assert.Equal(t, "c", item.Meta.Name)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Meta.Name)
	assert.Equal(t, "b", list[1].Meta.Name)

	_, ok = s.RemoveLastByUser("nobody")
	assert.False(t, ok)
}

func TestPromoteIsASwap(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Append(itemFor("a", "u1"), strPtr("u1")))
	require.NoError(t, s.Append(itemFor("b", "u2"), strPtr("u2")))
	require.NoError(t, s.Append(itemFor("c", "u3"), strPtr("u3")))

	promoted, ok := s.Promote("mod", 2)
	require.True(t, ok)
	assert.Equal(t, "c", promoted.Meta.Name)

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, "c", list[0].Meta.Name)
	assert.Equal(t, "b", list[1].Meta.Name)
	assert.Equal(t, "a", list[2].Meta.Name)

	// promote index 0 is a no-op degenerate swap with itself.
	_, ok = s.Promote("mod", 0)
	assert.False(t, ok)

	// out of range.
	_, ok = s.Promote("mod", 5)
	assert.False(t, ok)
}

func TestPromoteIsDurableAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Append(itemFor("a", "u1"), strPtr("u1")))
	require.NoError(t, s.Append(itemFor("b", "u2"), strPtr("u2")))
	require.NoError(t, s.Append(itemFor("c", "u3"), strPtr("u3")))

	promoted, ok := s.Promote("mod", 2)
	require.True(t, ok)
	assert.Equal(t, "c", promoted.Meta.Name)
	require.NoError(t, s.Close())

	// restart: the promoted order must survive, not silently revert to
	// insertion order.
	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	recs, err := s2.LoadRecords()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "c", recs[0].TrackID.String())
	assert.Equal(t, "b", recs[1].TrackID.String())
	assert.Equal(t, "a", recs[2].TrackID.String())
}

func TestPurgeRemovesAllAtomically(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Append(itemFor("a", "u1"), strPtr("u1")))
	require.NoError(t, s.Append(itemFor("b", "u2"), strPtr("u2")))

	purged := s.Purge()
	assert.Len(t, purged, 2)
	assert.Equal(t, 0, s.Len())

	// purge on already empty queue is a no-op, not an error.
	assert.Empty(t, s.Purge())
}

func TestContainsAndCountByUser(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Append(itemFor("a", "u1"), strPtr("u1")))
	require.NoError(t, s.Append(itemFor("b", "u1"), strPtr("u1")))

	idx, ok := s.Contains(trackid.Spotify{Base62: "a"})
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	_, ok = s.Contains(trackid.Spotify{Base62: "zzz"})
	assert.False(t, ok)

	assert.Equal(t, 2, s.CountByUser("u1"))
	assert.Equal(t, 0, s.CountByUser("u2"))
}
