package fallback

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/sirupsen/logrus"

	"github.com/twitchsongbot/songbot/internal/models"
	"github.com/twitchsongbot/songbot/internal/trackid"
)

// HarvestLocalLibrary walks root for playable audio files and reads their
// embedded tags, for operators who seed the fallback pool from a local
// music directory instead of a streaming playlist, per SPEC_FULL.md §6
// domain-stack supplement. Grounded on arung-agamani-denpa-radio's use of
// dhowden/tag for ID3/FLAC metadata, the pack's only local-tag reader.
//
// Local files have no catalog provider id; they are addressed by
// trackid.Local, which never round-trips through catalog.Adapter.Resolve —
// only through Pool.Pick and direct device playback.
func HarvestLocalLibrary(root string) ([]models.TrackMeta, error) {
	var out []models.TrackMeta

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !isAudioFile(path) {
			return nil
		}

		meta, err := readTags(path)
		if err != nil {
			logrus.Warnf("fallback: skipping %s: %v", path, err)
			return nil
		}
		out = append(out, meta)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func isAudioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3", ".flac", ".m4a", ".ogg":
		return true
	default:
		return false
	}
}

func readTags(path string) (models.TrackMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.TrackMeta{}, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return models.TrackMeta{}, err
	}

	artist := m.Artist()
	if artist == "" {
		artist = m.AlbumArtist()
	}
	title := m.Title()
	if title == "" {
		title = filepath.Base(path)
	}

	return models.TrackMeta{
		TrackID:  trackid.Local{Path: path},
		Artists:  []string{artist},
		Name:     title,
		Duration: estimateDuration(path),
	}, nil
}

// estimateDuration is a placeholder: dhowden/tag does not expose track
// length, and decoding the full audio stream just to measure duration is
// out of scope for a fallback-pool harvest. Local items fall back to a
// conservative fixed estimate; actual playback duration is governed by
// the device's own completion signal, not this value.
func estimateDuration(path string) time.Duration {
	return 3 * time.Minute
}
