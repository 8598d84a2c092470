// Package admission implements the Request Admission pipeline: it turns a
// chat `!song request ...` invocation into either a queued item or a
// precise user-facing refusal, per spec.md §4.4. Grounded on jellycli's
// own validate-then-act request handling in api/*.go (parse, check
// preconditions, only then mutate), generalized into the eight-step
// pipeline the spec requires.
package admission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/twitchsongbot/songbot/internal/catalog"
	"github.com/twitchsongbot/songbot/internal/config"
	"github.com/twitchsongbot/songbot/internal/currency"
	"github.com/twitchsongbot/songbot/internal/models"
	"github.com/twitchsongbot/songbot/internal/playerclient"
	"github.com/twitchsongbot/songbot/internal/trackid"
)

// Request is the admission pipeline's input, per spec.md §4.4:
// (user, chat_tags, requester_name, is_moderator, text) collapsed to the
// fields the pipeline actually branches on.
type Request struct {
	User         string
	IsModerator  bool
	IsSubscriber bool
	Text         string
}

// Pipeline runs Request Admission against a catalog adapter, the player
// client, and a currency ledger.
type Pipeline struct {
	catalog catalog.Adapter
	player  *playerclient.Client
	ledger  *currency.Ledger
	cfg     *config.Config

	mu      sync.Mutex
	recent  map[string]recentEntry
}

type recentEntry struct {
	at  time.Time
	who string
}

// New constructs a Pipeline.
func New(cat catalog.Adapter, player *playerclient.Client, ledger *currency.Ledger, cfg *config.Config) *Pipeline {
	return &Pipeline{
		catalog: cat,
		player:  player,
		ledger:  ledger,
		cfg:     cfg,
		recent:  make(map[string]recentEntry),
	}
}

func recentKey(id trackid.ID) string {
	return string(id.Provider()) + ":" + id.String()
}

// Request runs the full eight-step pipeline (spec.md §4.4), stopping on
// the first refusal. On success it returns the item's queue position and
// the enqueued item.
func (p *Pipeline) Request(ctx context.Context, req Request) (int, models.QueueItem, error) {
	requestID := uuid.NewString()
	log := logrus.WithField("request_id", requestID).WithField("user", req.User)

	// Step 1: parse.
	id, err := trackid.Parse(req.Text)
	fellThrough := errors.Is(err, trackid.ErrMissingURIPrefix)
	if err != nil && !fellThrough {
		return 0, models.QueueItem{}, &Refusal{Err: fmt.Errorf("%w: %v", ErrMalformedRequest, err)}
	}

	if !fellThrough {
		if id.Provider() == trackid.ProviderYouTube && !p.cfg.Providers[trackid.ProviderYouTube].Enabled {
			return 0, models.QueueItem{}, &Refusal{Err: ErrYouTubeDisabled, Provider: trackid.ProviderYouTube}
		}
	} else {
		// Step 2: search fallback.
		found, ok, searchErr := p.catalog.Search(ctx, req.Text)
		if searchErr != nil {
			log.WithError(searchErr).Warn("admission: catalog search failed")
			return 0, models.QueueItem{}, &Refusal{Err: ErrUpstream}
		}
		if !ok {
			return 0, models.QueueItem{}, &Refusal{Err: ErrNotFound}
		}
		id = found
	}

	provider := id.Provider()
	settings := p.cfg.Providers[provider]

	// Step 3: subscriber gate.
	if (p.cfg.SubscriberOnly || settings.SubscriberOnly) && !req.IsModerator && !req.IsSubscriber {
		return 0, models.QueueItem{}, &Refusal{Err: ErrSubscribersOnly, Provider: provider}
	}

	// Step 4: snapshot limits.
	if closed := p.player.Closed(); closed != nil && !req.IsModerator {
		return 0, models.QueueItem{}, &Refusal{Err: ErrPlayerClosed, Reason: closed.Reason}
	}
	if p.player.QueueDepth() > p.cfg.MaxQueueLength && !req.IsModerator {
		return 0, models.QueueItem{}, &Refusal{Err: ErrQueueFull}
	}
	if idx, ok := p.player.ContainsTrack(id); ok {
		return 0, models.QueueItem{}, &Refusal{Err: ErrQueueContainsTrack, Position: idx}
	}
	if !req.IsModerator && p.player.CountByUser(req.User) >= p.cfg.MaxSongsPerUser {
		return 0, models.QueueItem{}, &Refusal{Err: ErrTooManyUserTracks, Max: p.cfg.MaxSongsPerUser}
	}

	// Step 5: duplicate cooldown.
	key := recentKey(id)
	p.mu.Lock()
	rec, wasRecent := p.recent[key]
	p.mu.Unlock()
	if wasRecent && time.Since(rec.at) < p.cfg.DuplicateLimit {
		who := rec.who
		return 0, models.QueueItem{}, &Refusal{
			Err:   ErrDuplicate,
			When:  rec.at,
			Who:   &who,
			Limit: p.cfg.DuplicateLimit,
		}
	}

	// Step 6: resolve metadata + per-provider duration cap.
	meta, err := p.catalog.Resolve(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			return 0, models.QueueItem{}, &Refusal{Err: ErrNotFound}
		default:
			log.WithError(err).Warn("admission: catalog resolve failed")
			return 0, models.QueueItem{}, &Refusal{Err: ErrUpstream}
		}
	}
	if settings.MaxDuration > 0 && meta.Duration > settings.MaxDuration {
		return 0, models.QueueItem{}, &Refusal{Err: ErrMaxDurationExceeded, Provider: provider}
	}

	// Step 7: currency price.
	debited := false
	if settings.MinCurrency > 0 {
		if err := p.ledger.Debit(req.User, settings.MinCurrency); err != nil {
			return 0, models.QueueItem{}, &Refusal{
				Err:      ErrNotEnoughCurrency,
				Balance:  p.ledger.Balance(req.User),
				Required: settings.MinCurrency,
			}
		}
		debited = true
	}

	// Step 8: append.
	item := models.QueueItem{Meta: meta, Requester: &req.User}
	pos, err := p.player.AppendRequest(ctx, item, &req.User)
	if err != nil {
		if debited {
			p.ledger.Refund(req.User, settings.MinCurrency)
		}
		log.WithError(err).Error("admission: append failed")
		return 0, models.QueueItem{}, &Refusal{Err: ErrUpstream}
	}

	p.mu.Lock()
	p.recent[key] = recentEntry{at: time.Now(), who: req.User}
	p.mu.Unlock()

	if p.cfg.RequestReward > 0 {
		p.ledger.Credit(req.User, p.cfg.RequestReward)
	}

	return pos, item, nil
}
