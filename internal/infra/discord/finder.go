package discord

import (
	"github.com/bwmarrin/discordgo"
)

// Finder looks up voice channel membership from gateway state.
type Finder struct {
	session *discordgo.Session
}

// NewFinder creates a voice state finder.
func NewFinder(session *discordgo.Session) *Finder {
	return &Finder{session: session}
}

// UserVoiceChannel implements music.ChannelFinder.
func (f *Finder) UserVoiceChannel(guildID, userID string) (string, bool) {
	guild, err := f.session.State.Guild(guildID)
	if err != nil {
		return "", false
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, true
		}
	}
	return "", false
}
