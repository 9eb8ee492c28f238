package discord

import (
	"context"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"

	"github.com/yukina-bot/yukina/internal/infra/anilist"
)

const maxSynopsisLen = 1024

// Chat implements the interactive messaging surface used by the anime
// picker.
type Chat struct {
	session *discordgo.Session
}

// NewChat creates a chat adapter.
func NewChat(session *discordgo.Session) *Chat {
	return &Chat{session: session}
}

// Send posts a plain message and returns its ID.
func (c *Chat) Send(channelID, content string) (string, error) {
	msg, err := c.session.ChannelMessageSend(channelID, content)
	if err != nil {
		return "", errors.Wrap(err, "failed to send message")
	}
	return msg.ID, nil
}

// Edit replaces a message's content.
func (c *Chat) Edit(channelID, messageID, content string) error {
	_, err := c.session.ChannelMessageEdit(channelID, messageID, content)
	return errors.Wrap(err, "failed to edit message")
}

// Delete removes a message.
func (c *Chat) Delete(channelID, messageID string) error {
	return errors.Wrap(c.session.ChannelMessageDelete(channelID, messageID), "failed to delete message")
}

// AwaitReply blocks until the author posts in the channel or ctx
// expires.
func (c *Chat) AwaitReply(ctx context.Context, channelID, authorID string) (string, string, error) {
	replies := make(chan *discordgo.MessageCreate, 1)
	remove := c.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m.ChannelID != channelID || m.Author == nil || m.Author.ID != authorID {
			return
		}
		select {
		case replies <- m:
		default:
		}
	})
	defer remove()

	select {
	case m := <-replies:
		return m.Content, m.ID, nil
	case <-ctx.Done():
		return "", "", ctx.Err()
	}
}

// truncateSynopsis caps s at max bytes, cutting on a rune boundary so a
// multi-byte description never ships a mangled trailing character.
func truncateSynopsis(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ".."
}

// SendMedia posts an AniList entry as an embed card.
func (c *Chat) SendMedia(channelID string, m anilist.Media, manga bool) error {
	embed := &discordgo.MessageEmbed{
		Title: m.DisplayTitle(),
		URL:   m.SiteURL,
		Color: embedColor,
	}

	addField := func(name, value string) {
		if value == "" {
			return
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   name,
			Value:  value,
			Inline: true,
		})
	}

	addField("Type", m.Format)
	if manga {
		if m.Chapters > 0 {
			addField("Chapters", strconv.Itoa(m.Chapters))
		}
		if m.Volumes > 0 {
			addField("Volumes", strconv.Itoa(m.Volumes))
		}
	} else if m.Episodes > 0 {
		addField("Episodes", strconv.Itoa(m.Episodes))
	}
	addField("Mean Score", fmt.Sprintf(":star: %d/100", m.MeanScore))
	addField("Status", m.Status)
	if !m.StartDate.IsZero() {
		addField("Start Date", m.StartDate.String())
	}
	if m.EndDate.Year != 0 {
		addField("End Date", m.EndDate.String())
	}

	synopsis := truncateSynopsis(anilist.StripHTML(m.Description), maxSynopsisLen)
	if synopsis != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Synopsis",
			Value: synopsis,
		})
	}
	if m.CoverImage.Large != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: m.CoverImage.Large}
	}

	_, err := c.session.ChannelMessageSendEmbed(channelID, embed)
	return errors.Wrap(err, "failed to send media card")
}
