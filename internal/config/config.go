// Package config holds the settings/config persistence layer: a typed
// Config struct populated from github.com/spf13/viper, scoped under
// `song/`, `song/spotify/`, `song/youtube/` keys per spec.md §6.
// Grounded on jellycli's config.ConfigFromViper/sanitize idiom (a plain
// struct populated field-by-field from viper.Get*, then defaulted by a
// sanitize pass).
package config

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/twitchsongbot/songbot/internal/models"
	"github.com/twitchsongbot/songbot/internal/trackid"
)

// ProviderSettings are the per-provider admission knobs SPEC_FULL.md §7
// supplements from original_source/bot/src/module/song.rs's settings
// table: subscriber gating, enablement, pricing, and duration caps, keyed
// by trackid.Provider.
type ProviderSettings struct {
	Enabled        bool
	SubscriberOnly bool
	MinCurrency    int64
	MaxDuration    time.Duration
}

// Config is the fully loaded, defaulted application configuration.
type Config struct {
	// General
	LogLevel        string
	ChatPrefix      string
	EchoCurrentSong bool
	CurrentSongPath string
	CurrentSongTmpl string
	QueueDBPath     string
	HTTPAddr        string
	DiscordToken    string

	// Global admission knobs (spec.md §4.4 step 3/4)
	SubscriberOnly   bool
	MaxQueueLength   int
	MaxSongsPerUser  int
	DuplicateLimit   time.Duration
	RequestReward    int64
	FallbackPlaylist string

	Providers map[trackid.Provider]ProviderSettings

	Spotify SpotifyConfig
	YouTube YouTubeConfig
}

// SpotifyConfig carries the OAuth2/client credentials for the Spotify
// catalog adapter; acquiring the token itself is an external collaborator
// per spec.md §1, this just carries the already-resolved values.
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// YouTubeConfig carries the API key for the YouTube Data API client.
type YouTubeConfig struct {
	APIKey string
}

func sanitize(c *Config) {
	if c.LogLevel == "" {
		c.LogLevel = logrus.InfoLevel.String()
	}
	if c.ChatPrefix == "" {
		c.ChatPrefix = "!song"
	}
	if c.MaxQueueLength == 0 {
		c.MaxQueueLength = 50
	}
	if c.MaxSongsPerUser == 0 {
		c.MaxSongsPerUser = 2
	}
	if c.DuplicateLimit == 0 {
		c.DuplicateLimit = 10 * time.Minute
	}
	if c.QueueDBPath == "" {
		c.QueueDBPath = "songbot-queue.db"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.Providers == nil {
		c.Providers = map[trackid.Provider]ProviderSettings{
			trackid.ProviderSpotify: {Enabled: true, MaxDuration: 10 * time.Minute},
			trackid.ProviderYouTube: {Enabled: true, MaxDuration: 10 * time.Minute},
		}
	}
}

// FromViper reads the full configuration from the process-wide viper
// instance, the way jellycli's ConfigFromViper populates config.AppConfig,
// then applies sanitize's defaults. Fields sanitize does not cover stay at
// their zero value when unset; in particular the provider map is always
// built here, so unset per-provider limits are zero (no duration cap).
func FromViper() *Config {
	c := &Config{
		LogLevel:         viper.GetString("song.log_level"),
		ChatPrefix:       viper.GetString("song.chat_prefix"),
		EchoCurrentSong:  viper.GetBool("song.echo_current_song"),
		CurrentSongPath:  viper.GetString("song.current_song_path"),
		CurrentSongTmpl:  viper.GetString("song.current_song_template"),
		QueueDBPath:      viper.GetString("song.queue_db_path"),
		HTTPAddr:         viper.GetString("song.http_addr"),
		DiscordToken:     viper.GetString("song.discord_token"),
		SubscriberOnly:   viper.GetBool("song.subscriber_only"),
		MaxQueueLength:   viper.GetInt("song.max_queue_length"),
		MaxSongsPerUser:  viper.GetInt("song.max_songs_per_user"),
		DuplicateLimit:   viper.GetDuration("song.duplicate_limit"),
		RequestReward:    viper.GetInt64("song.request_reward"),
		FallbackPlaylist: viper.GetString("song.fallback_playlist"),
		Spotify: SpotifyConfig{
			ClientID:     viper.GetString("song.spotify.client_id"),
			ClientSecret: viper.GetString("song.spotify.client_secret"),
			RefreshToken: viper.GetString("song.spotify.refresh_token"),
		},
		YouTube: YouTubeConfig{
			APIKey: viper.GetString("song.youtube.api_key"),
		},
		Providers: map[trackid.Provider]ProviderSettings{
			trackid.ProviderSpotify: {
				Enabled:        !viper.IsSet("song.spotify.enabled") || viper.GetBool("song.spotify.enabled"),
				SubscriberOnly: viper.GetBool("song.spotify.subscriber_only"),
				MinCurrency:    viper.GetInt64("song.spotify.min_currency"),
				MaxDuration:    viper.GetDuration("song.spotify.max_duration"),
			},
			trackid.ProviderYouTube: {
				Enabled:        viper.GetBool("song.youtube.enabled"),
				SubscriberOnly: viper.GetBool("song.youtube.subscriber_only"),
				MinCurrency:    viper.GetInt64("song.youtube.min_currency"),
				MaxDuration:    viper.GetDuration("song.youtube.max_duration"),
			},
		},
	}
	sanitize(c)
	return c
}

// LoadThemes reads the `song.themes` list (each entry a name, a track id
// string parsed with trackid.Parse, and an offset) into the registry
// playerclient.Client.PlayTheme looks up by name.
func LoadThemes() map[string]models.Theme {
	var raw []struct {
		Name   string        `mapstructure:"name"`
		Track  string        `mapstructure:"track"`
		Offset time.Duration `mapstructure:"offset"`
	}
	if err := viper.UnmarshalKey("song.themes", &raw); err != nil {
		logrus.WithError(err).Warn("config: failed to parse song.themes, themes disabled")
		return map[string]models.Theme{}
	}

	themes := make(map[string]models.Theme, len(raw))
	for _, t := range raw {
		id, err := trackid.Parse(t.Track)
		if err != nil {
			logrus.WithError(err).Warnf("config: theme %q has an unparseable track id, skipping", t.Name)
			continue
		}
		themes[t.Name] = models.Theme{Name: t.Name, Track: id, Offset: t.Offset}
	}
	return themes
}
