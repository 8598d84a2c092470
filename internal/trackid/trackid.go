// Package trackid parses and represents provider-tagged track identifiers.
package trackid

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Provider identifies the upstream catalog a track belongs to.
type Provider string

const (
	ProviderSpotify Provider = "Spotify"
	ProviderYouTube Provider = "YouTube"
	ProviderLocal   Provider = "Local"
)

func (p Provider) String() string { return string(p) }

// ID is a tagged track identifier. Equality is structural: two IDs are
// equal only if they share the same concrete type and underlying value.
type ID interface {
	Provider() Provider
	// String renders the identifier the way it is persisted (base62 for
	// Spotify, raw video id for YouTube).
	String() string
}

// Spotify is a Spotify track id, base62 encoded.
type Spotify struct {
	Base62 string
}

func (s Spotify) Provider() Provider { return ProviderSpotify }
func (s Spotify) String() string     { return s.Base62 }

// YouTube is a YouTube video id.
type YouTube struct {
	VideoID string
}

func (y YouTube) Provider() Provider { return ProviderYouTube }
func (y YouTube) String() string     { return y.VideoID }

// Local identifies a file harvested from a local music directory for the
// fallback pool; it never round-trips through a catalog.Adapter.Resolve
// call.
type Local struct {
	Path string
}

func (l Local) Provider() Provider { return ProviderLocal }
func (l Local) String() string     { return l.Path }

// Equal reports whether two ids refer to the same track.
func Equal(a, b ID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Provider() == b.Provider() && a.String() == b.String()
}

var (
	// ErrMissingURIPrefix means the input did not look like a URL or URI at
	// all — callers should fall through to a text search instead of
	// reporting a parse error to the user.
	ErrMissingURIPrefix = errors.New("trackid: missing uri prefix, try search")

	// ErrMalformed means the input was recognized as belonging to a
	// provider but could not be decoded.
	ErrMalformed = errors.New("trackid: recognized but malformed id")
)

var spotifyBase62 = regexp.MustCompile(`^[0-9A-Za-z]{22}$`)

// Parse recognizes Spotify/YouTube URLs, URIs, or raw ids.
//
// Recognized forms:
//
//	https://open.spotify.com/track/<id>
//	spotify:track:<id>
//	https://www.youtube.com/watch?v=<id>
//	https://youtu.be/<id>
//	a bare 22-character base62 string (assumed Spotify)
//
// Anything else returns ErrMissingURIPrefix so the caller can fall back to
// search. A string that looks like it names a provider but carries a
// malformed id returns ErrMalformed instead, and that must not trigger a
// search fallback.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrMissingURIPrefix
	}

	if strings.HasPrefix(s, "spotify:track:") {
		id := strings.TrimPrefix(s, "spotify:track:")
		return parseSpotifyID(id)
	}

	if u, err := url.Parse(s); err == nil && u.Scheme != "" && u.Host != "" {
		switch {
		case strings.Contains(u.Host, "open.spotify.com"):
			parts := strings.Split(strings.Trim(u.Path, "/"), "/")
			if len(parts) == 2 && parts[0] == "track" {
				return parseSpotifyID(parts[1])
			}
			return nil, fmt.Errorf("trackid: %w: unrecognized spotify path %q", ErrMalformed, u.Path)

		case strings.Contains(u.Host, "youtube.com"):
			if v := u.Query().Get("v"); v != "" {
				return YouTube{VideoID: v}, nil
			}
			return nil, fmt.Errorf("trackid: %w: missing v= query parameter", ErrMalformed)

		case strings.Contains(u.Host, "youtu.be"):
			id := strings.Trim(u.Path, "/")
			if id == "" {
				return nil, fmt.Errorf("trackid: %w: empty youtu.be path", ErrMalformed)
			}
			return YouTube{VideoID: id}, nil
		}

		// Some other scheme/host entirely: not a parse error, just not a
		// track URL — let the caller search for it.
		return nil, ErrMissingURIPrefix
	}

	if spotifyBase62.MatchString(s) {
		return Spotify{Base62: s}, nil
	}

	return nil, ErrMissingURIPrefix
}

func parseSpotifyID(id string) (ID, error) {
	if !spotifyBase62.MatchString(id) {
		return nil, fmt.Errorf("trackid: %w: bad spotify id %q", ErrMalformed, id)
	}
	return Spotify{Base62: id}, nil
}
