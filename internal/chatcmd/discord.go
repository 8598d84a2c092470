package chatcmd

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

// moderatorPermissions are the discordgo permission bits that count as
// "moderator" for the chat command surface: administrator or the
// ability to manage messages.
const moderatorPermissions = discordgo.PermissionAdministrator | discordgo.PermissionManageMessages

// DiscordFrontDoor wires a Router to a discordgo.Session's MessageCreate
// events, grounded on jov4n-ezra-clone's internal/discord.Handler
// (registered-callback, ignore-self, trim-and-dispatch shape) but
// re-purposed for a prefix command grammar instead of mention-triggered
// LLM turns.
type DiscordFrontDoor struct {
	router *Router
}

// NewDiscordFrontDoor constructs a front door over router.
func NewDiscordFrontDoor(router *Router) *DiscordFrontDoor {
	return &DiscordFrontDoor{router: router}
}

// Register attaches the handler to s. Call once per session, before s.Open.
func (d *DiscordFrontDoor) Register(s *discordgo.Session) {
	s.AddHandler(d.handleMessage)
}

func (d *DiscordFrontDoor) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	content := strings.TrimSpace(m.Content)
	if content == "" {
		return
	}

	caller := Caller{
		User:         m.Author.ID,
		IsModerator:  d.isModerator(s, m),
		IsSubscriber: d.isSubscriber(s, m),
	}

	reply, err := d.router.Dispatch(context.Background(), caller, content)
	if err != nil {
		if err == ErrNotACommand {
			return
		}
		logrus.WithError(err).WithField("user", caller.User).Debug("chatcmd: command refused")
		_, _ = s.ChannelMessageSend(m.ChannelID, err.Error())
		return
	}
	if reply != "" {
		_, _ = s.ChannelMessageSend(m.ChannelID, reply)
	}
}

func (d *DiscordFrontDoor) isModerator(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	if m.GuildID == "" {
		return false
	}
	perms, err := s.State.MessagePermissions(m.Message)
	if err != nil {
		logrus.WithError(err).Debug("chatcmd: falling back to live permission lookup")
		perms, err = s.UserChannelPermissions(m.Author.ID, m.ChannelID)
		if err != nil {
			return false
		}
	}
	return perms&moderatorPermissions != 0
}

// isSubscriber reports whether the author carries a "Subscriber"-named
// role; Discord has no native subscription concept, so this stands in for
// spec.md's subscriber gate the way a Twitch-facing deployment would read
// it off badges instead.
func (d *DiscordFrontDoor) isSubscriber(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	if m.Member == nil || s.State == nil {
		return false
	}
	for _, roleID := range m.Member.Roles {
		role, err := s.State.Role(m.GuildID, roleID)
		if err != nil {
			continue
		}
		if strings.EqualFold(role.Name, "subscriber") {
			return true
		}
	}
	return false
}
