// Package chatcmd parses and dispatches the `!song ...` chat command
// surface (spec.md §6) against the Player Client and the Request
// Admission pipeline. Grounded on jov4n-ezra-clone's discord message
// handler shape (github.com/bwmarrin/discordgo, mention/prefix detection
// feeding a single dispatch function) but kept protocol-agnostic: this
// file only knows about Caller/Sender, not discordgo. internal/chatcmd's
// discordgo front door lives in discord.go.
package chatcmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/twitchsongbot/songbot/internal/admission"
	"github.com/twitchsongbot/songbot/internal/config"
	"github.com/twitchsongbot/songbot/internal/playerclient"
)

// Caller describes who issued a command, independent of the chat
// protocol it arrived over.
type Caller struct {
	User         string
	IsModerator  bool
	IsSubscriber bool
}

// Router parses `!song ...` invocations and dispatches them against a
// playerclient.Client and an admission.Pipeline.
type Router struct {
	player   *playerclient.Client
	pipeline *admission.Pipeline
	cfg      *config.Config
}

// New constructs a Router.
func New(player *playerclient.Client, pipeline *admission.Pipeline, cfg *config.Config) *Router {
	return &Router{player: player, pipeline: pipeline, cfg: cfg}
}

// ErrNotACommand means the text did not start with the configured prefix
// and should be ignored by the caller.
var ErrNotACommand = errors.New("chatcmd: not a command")

// Dispatch parses text as a `!song ...` invocation and runs it, returning
// the chat line to send back. text is the full message content, prefix
// included.
func (r *Router) Dispatch(ctx context.Context, caller Caller, text string) (string, error) {
	prefix := r.cfg.ChatPrefix
	if prefix == "" {
		prefix = "!song"
	}
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, prefix) {
		return "", ErrNotACommand
	}
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", fmt.Errorf("usage: %s <command>", prefix)
	}

	sub, args := fields[0], fields[1:]
	switch sub {
	case "request", "sr":
		return r.request(ctx, caller, strings.TrimSpace(strings.TrimPrefix(rest, sub)))
	case "skip":
		return r.moderatorOnly(caller, func() (string, error) {
			r.player.Skip()
			return "skipped", nil
		})
	case "toggle":
		return r.moderatorOnly(caller, func() (string, error) {
			r.player.Toggle()
			return "toggled", nil
		})
	case "play":
		return r.moderatorOnly(caller, func() (string, error) {
			r.player.Play()
			return "playing", nil
		})
	case "pause":
		return r.moderatorOnly(caller, func() (string, error) {
			r.player.Pause()
			return "paused", nil
		})
	case "volume":
		return r.volume(caller, args)
	case "list":
		return r.list(caller, args)
	case "current":
		return r.current()
	case "when":
		return r.when(caller, args)
	case "delete":
		return r.delete(caller, args)
	case "promote":
		return r.promote(caller, args)
	case "purge":
		return r.moderatorOnly(caller, func() (string, error) {
			purged := r.player.Purge()
			return fmt.Sprintf("purged %d item(s)", len(purged)), nil
		})
	case "close":
		return r.close(caller, args)
	case "open":
		return r.moderatorOnly(caller, func() (string, error) {
			r.player.Open()
			return "reopened", nil
		})
	case "theme":
		return r.theme(caller, args)
	case "length":
		return r.length()
	default:
		return "", fmt.Errorf("unknown command %q", sub)
	}
}

func (r *Router) moderatorOnly(caller Caller, fn func() (string, error)) (string, error) {
	if !caller.IsModerator {
		return "", fmt.Errorf("moderator only")
	}
	return fn()
}

func (r *Router) request(ctx context.Context, caller Caller, text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("usage: request <query|url|uri>")
	}
	pos, item, err := r.pipeline.Request(ctx, admission.Request{
		User:         caller.User,
		IsModerator:  caller.IsModerator,
		IsSubscriber: caller.IsSubscriber,
		Text:         text,
	})
	if err != nil {
		var refusal *admission.Refusal
		if errors.As(err, &refusal) {
			return "", refusal
		}
		logrus.WithError(err).Error("chatcmd: admission request failed unexpectedly")
		return "", fmt.Errorf("there was a problem")
	}
	return fmt.Sprintf("queued %s at position %d", item.Meta.What(), pos+1), nil
}

// parseIndex converts a 1-based chat-surface index to a 0-based queue
// index, rejecting index 0 ("current") per spec.md §6.
func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if n == 0 {
		return 0, fmt.Errorf("index 0 refers to the currently playing track and cannot be targeted")
	}
	if n < 0 {
		return 0, fmt.Errorf("index must be positive")
	}
	return n - 1, nil
}

func (r *Router) volume(caller Caller, args []string) (string, error) {
	if len(args) == 0 {
		return fmt.Sprintf("volume is %d", r.player.CurrentVolume()), nil
	}
	if !caller.IsModerator {
		return "", fmt.Errorf("moderator only")
	}
	arg := args[0]
	if strings.HasPrefix(arg, "+") || strings.HasPrefix(arg, "-") {
		delta, err := strconv.Atoi(arg)
		if err != nil {
			return "", fmt.Errorf("not a number: %q", arg)
		}
		v := r.player.CurrentVolume() + delta
		r.player.Volume(v)
		return fmt.Sprintf("volume set to %d", clamp(v, 0, 100)), nil
	}
	v, err := strconv.Atoi(arg)
	if err != nil {
		return "", fmt.Errorf("not a number: %q", arg)
	}
	r.player.Volume(v)
	return fmt.Sprintf("volume set to %d", clamp(v, 0, 100)), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (r *Router) list(caller Caller, args []string) (string, error) {
	n := 10
	if len(args) > 0 {
		if !caller.IsModerator {
			return "", fmt.Errorf("moderator only to list more than the default")
		}
		parsed, err := strconv.Atoi(args[0])
		if err != nil {
			return "", fmt.Errorf("not a number: %q", args[0])
		}
		n = parsed
	}
	items := r.player.List()
	if len(items) > n {
		items = items[:n]
	}
	if len(items) == 0 {
		return "queue is empty", nil
	}
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = fmt.Sprintf("%d. %s", i+1, item.Meta.What())
	}
	return strings.Join(parts, " | "), nil
}

func (r *Router) current() (string, error) {
	item, ok := r.player.Current()
	if !ok {
		return "nothing is playing", nil
	}
	return fmt.Sprintf("now playing: %s", item.Meta.What()), nil
}

func (r *Router) when(caller Caller, args []string) (string, error) {
	user := caller.User
	if len(args) > 0 {
		if !caller.IsModerator {
			return "", fmt.Errorf("moderator only to query another user")
		}
		user = args[0]
	}
	wait, ok := r.player.When(user)
	if !ok {
		return fmt.Sprintf("%s has nothing queued", user), nil
	}
	return fmt.Sprintf("%s's next track plays in %s", user, wait.Round(time.Second)), nil
}

func (r *Router) delete(caller Caller, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("usage: delete last|last <user>|mine|<n>")
	}
	switch args[0] {
	case "mine":
		item, ok := r.player.RemoveLastByUser(caller.User)
		if !ok {
			return "", fmt.Errorf("you have nothing queued")
		}
		return fmt.Sprintf("removed %s", item.Meta.What()), nil
	case "last":
		if !caller.IsModerator {
			return "", fmt.Errorf("moderator only")
		}
		if len(args) > 1 {
			item, ok := r.player.RemoveLastByUser(args[1])
			if !ok {
				return "", fmt.Errorf("%s has nothing queued", args[1])
			}
			return fmt.Sprintf("removed %s", item.Meta.What()), nil
		}
		item, ok := r.player.RemoveLast()
		if !ok {
			return "", fmt.Errorf("queue is empty")
		}
		return fmt.Sprintf("removed %s", item.Meta.What()), nil
	default:
		if !caller.IsModerator {
			return "", fmt.Errorf("moderator only")
		}
		idx, err := parseIndex(args[0])
		if err != nil {
			return "", err
		}
		item, ok := r.player.RemoveAt(idx)
		if !ok {
			return "", fmt.Errorf("no item at index %s", args[0])
		}
		return fmt.Sprintf("removed %s", item.Meta.What()), nil
	}
}

func (r *Router) promote(caller Caller, args []string) (string, error) {
	if !caller.IsModerator {
		return "", fmt.Errorf("moderator only")
	}
	if len(args) == 0 {
		return "", fmt.Errorf("usage: promote <n>")
	}
	idx, err := parseIndex(args[0])
	if err != nil {
		return "", err
	}
	item, ok := r.player.Promote(caller.User, idx)
	if !ok {
		return "", fmt.Errorf("no item at index %s", args[0])
	}
	return fmt.Sprintf("promoted %s to the front", item.Meta.What()), nil
}

func (r *Router) close(caller Caller, args []string) (string, error) {
	if !caller.IsModerator {
		return "", fmt.Errorf("moderator only")
	}
	var reason *string
	if len(args) > 0 {
		joined := strings.Join(args, " ")
		reason = &joined
	}
	r.player.Close(reason)
	if reason != nil {
		return fmt.Sprintf("closed: %s", *reason), nil
	}
	return "closed", nil
}

func (r *Router) theme(caller Caller, args []string) (string, error) {
	if !caller.IsModerator {
		return "", fmt.Errorf("moderator only")
	}
	if len(args) == 0 {
		names := r.player.ThemeNames()
		if len(names) == 0 {
			return "no themes configured", nil
		}
		return "themes: " + strings.Join(names, ", "), nil
	}
	if err := r.player.PlayTheme(args[0]); err != nil {
		return "", err
	}
	return fmt.Sprintf("playing theme %q", args[0]), nil
}

func (r *Router) length() (string, error) {
	count, totalSeconds := r.player.Length()
	return fmt.Sprintf("%d item(s), %s total", count, (time.Duration(totalSeconds) * time.Second).Round(time.Second)), nil
}
