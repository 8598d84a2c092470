// Package main wires the song request bot together: config, the
// playback engine, its catalog/fallback/currency collaborators, the
// chat and dashboard front doors. Grounded on jellycli's
// cmd.initApplication/app (a single struct assembling the player from
// its collaborators, then a blocking run()), generalized from one TUI
// player to a headless service with several concurrent front doors.
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	googleapioption "google.golang.org/api/option"
	youtubeapi "google.golang.org/api/youtube/v3"

	spotifyapi "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"

	"github.com/twitchsongbot/songbot/internal/admission"
	"github.com/twitchsongbot/songbot/internal/catalog"
	catalogspotify "github.com/twitchsongbot/songbot/internal/catalog/spotify"
	catalogyoutube "github.com/twitchsongbot/songbot/internal/catalog/youtube"
	"github.com/twitchsongbot/songbot/internal/chatcmd"
	"github.com/twitchsongbot/songbot/internal/config"
	"github.com/twitchsongbot/songbot/internal/currency"
	"github.com/twitchsongbot/songbot/internal/currentsong"
	"github.com/twitchsongbot/songbot/internal/device"
	"github.com/twitchsongbot/songbot/internal/engine"
	"github.com/twitchsongbot/songbot/internal/eventbus"
	"github.com/twitchsongbot/songbot/internal/fallback"
	"github.com/twitchsongbot/songbot/internal/httpapi"
	"github.com/twitchsongbot/songbot/internal/playerclient"
	"github.com/twitchsongbot/songbot/internal/queuestore"
	"github.com/twitchsongbot/songbot/internal/trackid"
)

const catalogTimeout = 10 * time.Second

// app holds every constructed collaborator the bot needs to run.
type app struct {
	cfg *config.Config

	queue  *queuestore.Store
	bus    *eventbus.Bus
	eng    *engine.Engine
	client *playerclient.Client
	ledger *currency.Ledger

	discord    *discordgo.Session
	frontDoor  *chatcmd.DiscordFrontDoor
	httpServer *http.Server
}

// newApp constructs every collaborator but starts nothing; callers run
// app.eng.Run, app.httpServer.ListenAndServe, and app.discord.Open
// themselves so the caller's errgroup owns their lifecycles.
func newApp(cfg *config.Config) (*app, error) {
	queue, err := queuestore.Open(cfg.QueueDBPath)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}

	cat, err := buildCatalog(cfg)
	if err != nil {
		queue.Close()
		return nil, fmt.Errorf("build catalog: %w", err)
	}

	bus := eventbus.New()
	pool := fallback.NewPool()
	harvestFallbackPool(context.Background(), cat, pool, cfg)

	pub, err := currentsong.New(cfg.CurrentSongPath, cfg.CurrentSongTmpl)
	if err != nil {
		queue.Close()
		return nil, fmt.Errorf("current song publisher: %w", err)
	}

	themes := config.LoadThemes()

	eng := engine.New(engine.Options{
		Device:          device.NewNoop(),
		Queue:           queue,
		Pool:            pool,
		Catalog:         cat,
		Bus:             bus,
		CurrentSong:     pub,
		Themes:          themes,
		EchoCurrentSong: cfg.EchoCurrentSong,
	})

	client := playerclient.New(eng, queue, bus, themes)
	ledger := currency.New()
	pipeline := admission.New(cat, client, ledger, cfg)
	router := chatcmd.New(client, pipeline, cfg)

	discord, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		queue.Close()
		return nil, fmt.Errorf("discord session: %w", err)
	}
	frontDoor := chatcmd.NewDiscordFrontDoor(router)
	frontDoor.Register(discord)

	ginEngine := buildGinEngine(client)
	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: ginEngine}

	return &app{
		cfg:        cfg,
		queue:      queue,
		bus:        bus,
		eng:        eng,
		client:     client,
		ledger:     ledger,
		discord:    discord,
		frontDoor:  frontDoor,
		httpServer: httpServer,
	}, nil
}

// buildCatalog assembles the two provider adapters behind a caching
// decorator and a provider-routing MultiAdapter, per SPEC_FULL.md §4.5.
func buildCatalog(cfg *config.Config) (catalog.Adapter, error) {
	spotifyClient, err := buildSpotifyClient(cfg.Spotify)
	if err != nil {
		return nil, fmt.Errorf("spotify client: %w", err)
	}
	youtubeSvc, err := buildYouTubeService(cfg.YouTube)
	if err != nil {
		return nil, fmt.Errorf("youtube client: %w", err)
	}

	const cacheTTL = 30 * time.Minute
	byProvider := map[trackid.Provider]catalog.Adapter{
		trackid.ProviderSpotify: catalog.NewCachingAdapter(catalogspotify.New(spotifyClient), cacheTTL),
		trackid.ProviderYouTube: catalog.NewCachingAdapter(catalogyoutube.New(youtubeSvc), cacheTTL),
	}
	return catalog.NewMultiAdapter(byProvider, []trackid.Provider{trackid.ProviderSpotify, trackid.ProviderYouTube}, trackid.ProviderSpotify), nil
}

func buildSpotifyClient(sc config.SpotifyConfig) (*spotifyapi.Client, error) {
	oauthCfg := &oauth2.Config{
		ClientID:     sc.ClientID,
		ClientSecret: sc.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: spotifyauth.TokenURL},
	}
	token := &oauth2.Token{RefreshToken: sc.RefreshToken}
	httpClient := oauthCfg.Client(context.Background(), token)
	return spotifyapi.New(httpClient), nil
}

func buildYouTubeService(yc config.YouTubeConfig) (*youtubeapi.Service, error) {
	return youtubeapi.NewService(context.Background(), googleapioption.WithAPIKey(yc.APIKey))
}

// harvestFallbackPool populates pool at startup from the configured
// playlist, falling back to the catalog account's saved library, per
// spec.md §4.5's fallback pool note. Failures are logged and leave the
// pool empty rather than failing startup.
func harvestFallbackPool(ctx context.Context, cat catalog.Adapter, pool *fallback.Pool, cfg *config.Config) {
	ctx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()

	if cfg.FallbackPlaylist != "" {
		tracks, err := fallback.Harvest(ctx, cat, cfg.FallbackPlaylist)
		if err == nil {
			pool.Set(tracks)
			return
		}
		logrus.WithError(err).Warn("songbot: fallback playlist harvest failed, trying library")
	}

	tracks, err := cat.FetchLibrary(ctx)
	if err != nil {
		logrus.WithError(err).Warn("songbot: fallback library harvest failed, fallback pool is empty")
		return
	}
	pool.Set(tracks)
}

func buildGinEngine(client *playerclient.Client) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	httpapi.NewHandlers(client).Register(r.Group("/api"))
	return r
}
