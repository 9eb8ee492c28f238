package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
)

// MessagePruner bulk-deletes recent channel messages.
type MessagePruner struct {
	session *discordgo.Session
}

// NewMessagePruner creates a pruner.
func NewMessagePruner(session *discordgo.Session) *MessagePruner {
	return &MessagePruner{session: session}
}

// Prune implements moderation.Pruner. It deletes up to limit of the
// channel's most recent messages and returns how many were removed.
func (p *MessagePruner) Prune(channelID string, limit int) (int, error) {
	messages, err := p.session.ChannelMessages(channelID, limit, "", "", "")
	if err != nil {
		return 0, errors.Wrap(err, "failed to fetch messages")
	}
	if len(messages) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	if err := p.session.ChannelMessagesBulkDelete(channelID, ids); err != nil {
		return 0, errors.Wrap(err, "failed to bulk delete")
	}
	return len(ids), nil
}
