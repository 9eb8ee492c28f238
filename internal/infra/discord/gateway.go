// Package discord adapts the bot to the Discord gateway: inbound
// message dispatch, outbound notifications, voice connections and the
// moderation surface.
package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/yukina-bot/yukina/internal/app/command"
)

// Bot owns the gateway session and feeds inbound messages to the
// command dispatcher.
type Bot struct {
	session    *discordgo.Session
	dispatcher *command.Dispatcher
	presence   string
}

// NewBot creates a gateway session for the given bot token. The session
// is not opened until Start.
func NewBot(token string, dispatcher *command.Dispatcher, presence string) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create discord session")
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent
	session.State.TrackVoice = true

	return &Bot{
		session:    session,
		dispatcher: dispatcher,
		presence:   presence,
	}, nil
}

// Session exposes the underlying gateway session to the other adapters
// in this package.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// Start registers the gateway handlers and opens the websocket.
func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessage)

	if err := b.session.Open(); err != nil {
		return errors.Wrap(err, "failed to open gateway connection")
	}
	return nil
}

// Close shuts the gateway connection down.
func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	zlog.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("discord: gateway ready")
	if b.presence != "" {
		if err := s.UpdateGameStatus(0, b.presence); err != nil {
			zlog.Warn().Err(err).Msg("discord: failed to set presence")
		}
	}
}

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	channelID := m.ChannelID
	ctx := command.Context{
		GuildID:    m.GuildID,
		ChannelID:  channelID,
		AuthorID:   m.Author.ID,
		AuthorName: m.Author.Username,
		Reply: func(msg string) {
			if _, err := s.ChannelMessageSend(channelID, msg); err != nil {
				zlog.Warn().Err(err).Str("channel", channelID).Msg("discord: failed to send reply")
			}
		},
	}
	b.dispatcher.Dispatch(ctx, m.Content)
}

// HasPermissions implements command.PermissionChecker using the user's
// effective channel permissions.
func (b *Bot) HasPermissions(channelID, userID string, permissions int64) bool {
	perms, err := b.session.UserChannelPermissions(userID, channelID)
	if err != nil {
		zlog.Warn().Err(err).Str("channel", channelID).Str("user", userID).Msg("discord: permission lookup failed")
		return false
	}
	return perms&permissions == permissions
}
