package admission

import (
	"errors"
	"fmt"
	"time"

	"github.com/twitchsongbot/songbot/internal/trackid"
)

// Refusal sentinel variants, per spec.md §7 and SPEC_FULL.md §10. Each is
// wrapped inside a *Refusal carrying the variant-specific payload,
// inspected with errors.As rather than string matching.
var (
	ErrNotFound            = errors.New("admission: track not found")
	ErrYouTubeDisabled     = errors.New("admission: youtube is not enabled")
	ErrSubscribersOnly     = errors.New("admission: subscribers only")
	ErrPlayerClosed        = errors.New("admission: player is closed")
	ErrQueueFull           = errors.New("admission: queue is full")
	ErrQueueContainsTrack  = errors.New("admission: track already queued")
	ErrTooManyUserTracks   = errors.New("admission: too many tracks queued by this user")
	ErrDuplicate           = errors.New("admission: track requested too recently")
	ErrNotEnoughCurrency   = errors.New("admission: not enough currency")
	ErrMaxDurationExceeded = errors.New("admission: track exceeds the maximum duration")
	ErrMalformedRequest    = errors.New("admission: malformed request")
	ErrUpstream            = errors.New("admission: there was a problem reaching the catalog")
)

// Refusal is returned by Pipeline.Request on any non-success path. Err is
// always one of the sentinels above or wraps one (ErrMalformedRequest is
// wrapped with the parse error); the remaining fields are populated
// according to which sentinel it wraps.
type Refusal struct {
	Err      error
	Provider trackid.Provider
	Position int
	Reason   *string
	Max      int
	When     time.Time
	Who      *string
	Limit    time.Duration
	Balance  int64
	Required int64
}

func (r *Refusal) Error() string {
	switch {
	case errors.Is(r.Err, ErrSubscribersOnly):
		return fmt.Sprintf("subscribers only for %s", r.Provider)
	case errors.Is(r.Err, ErrPlayerClosed):
		if r.Reason != nil {
			return fmt.Sprintf("player closed: %s", *r.Reason)
		}
		return "player closed"
	case errors.Is(r.Err, ErrQueueContainsTrack):
		return fmt.Sprintf("already queued at position %d", r.Position)
	case errors.Is(r.Err, ErrTooManyUserTracks):
		return fmt.Sprintf("too many tracks queued (max %d)", r.Max)
	case errors.Is(r.Err, ErrDuplicate):
		who := "someone"
		if r.Who != nil {
			who = *r.Who
		}
		return fmt.Sprintf("requested too recently by %s, try again after %s", who, r.Limit)
	case errors.Is(r.Err, ErrNotEnoughCurrency):
		return fmt.Sprintf("not enough currency: have %d, need %d", r.Balance, r.Required)
	case errors.Is(r.Err, ErrMaxDurationExceeded):
		return fmt.Sprintf("track too long for %s", r.Provider)
	default:
		return r.Err.Error()
	}
}

func (r *Refusal) Unwrap() error { return r.Err }
