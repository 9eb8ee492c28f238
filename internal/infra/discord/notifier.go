package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/yukina-bot/yukina/internal/domain/track"
)

const embedColor = 0x800080

// Notifier posts playback notifications as embeds. Sends are
// fire-and-forget and rate limited; over-limit notifications are
// dropped rather than queued.
type Notifier struct {
	session *discordgo.Session
	limiter *rate.Limiter
}

// NewNotifier creates a notifier with a small burst budget.
func NewNotifier(session *discordgo.Session) *Notifier {
	return &Notifier{
		session: session,
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// NowPlaying implements music.Notifier.
func (n *Notifier) NowPlaying(channelID string, t track.Track) {
	embed := &discordgo.MessageEmbed{
		Title:       "Now Playing",
		Description: fmt.Sprintf("[%s](%s)", t.Title, t.URL),
		Color:       embedColor,
	}
	if t.Duration > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Duration",
			Value:  formatDuration(t.Duration),
			Inline: true,
		})
	}
	if t.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.ThumbnailURL}
	}
	n.send(channelID, embed)
}

// Queued implements music.Notifier.
func (n *Notifier) Queued(channelID string, t track.Track) {
	n.send(channelID, &discordgo.MessageEmbed{
		Title:       "Queued",
		Description: fmt.Sprintf("[%s](%s)", t.Title, t.URL),
		Color:       embedColor,
	})
}

// Queue implements music.Notifier.
func (n *Notifier) Queue(channelID string, queued []track.QueuedRequest) {
	var b strings.Builder
	for i, req := range queued {
		fmt.Fprintf(&b, "%d. %s", i+1, req.Track.Title)
		if req.Requester.DisplayName != "" {
			fmt.Fprintf(&b, " (requested by %s)", req.Requester.DisplayName)
		}
		b.WriteByte('\n')
	}
	n.send(channelID, &discordgo.MessageEmbed{
		Title:       "Queue",
		Description: strings.TrimRight(b.String(), "\n"),
		Color:       embedColor,
	})
}

func (n *Notifier) send(channelID string, embed *discordgo.MessageEmbed) {
	if channelID == "" {
		return
	}
	if !n.limiter.Allow() {
		zlog.Warn().Str("channel", channelID).Str("title", embed.Title).Msg("discord: notification rate limited, dropping")
		return
	}
	go func() {
		if _, err := n.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
			zlog.Warn().Err(err).Str("channel", channelID).Msg("discord: failed to send notification")
		}
	}()
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
