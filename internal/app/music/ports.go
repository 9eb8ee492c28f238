package music

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/yukina-bot/yukina/internal/domain/track"
)

// Errors surfaced by collaborators and mapped onto user replies.
var (
	// ErrNoResults is returned by a Resolver when a search phrase matched
	// nothing of video kind.
	ErrNoResults = errors.New("no video results")

	// ErrResolution is returned by a Resolver when a direct URL could not be
	// resolved (wrong domain, unsupported, unavailable).
	ErrResolution = errors.New("track resolution failed")

	// ErrJoinDenied is returned by a Voice when the channel could not be
	// joined (missing permission, channel gone).
	ErrJoinDenied = errors.New("cannot join voice channel")
)

// Resolver turns user input into playable track metadata.
// A well-formed absolute URL is resolved directly; anything else is treated
// as a search phrase. Transient failures propagate to the caller; the
// resolver performs no retries.
type Resolver interface {
	Resolve(ctx context.Context, input string) (track.Track, error)
}

// Voice acquires voice-channel connections.
type Voice interface {
	Join(ctx context.Context, guildID, channelID string) (Connection, error)
}

// Connection is a live voice-channel link. A session owns at most one.
type Connection interface {
	// ChannelID reports the voice channel this connection is bound to.
	ChannelID() string

	// Play begins streaming the track and returns a handle for it.
	// Lifecycle events (started, finished) are reported through emit from
	// the streaming goroutine; Play itself must not block on the stream.
	Play(t track.Track, emit EmitFunc) (Playback, error)

	// Disconnect tears down the voice link.
	Disconnect() error
}

// Playback is the handle for a currently streaming track.
type Playback interface {
	ID() string
	// Stop aborts the stream. The finished event still fires.
	Stop()
}

// EmitFunc delivers a playback lifecycle event to the controller.
type EmitFunc func(playbackID string, kind EventKind)

// ChannelFinder reports which voice channel a user currently occupies.
// Used both for the initial precondition check and for re-validation after
// a suspension point.
type ChannelFinder interface {
	UserVoiceChannel(guildID, userID string) (channelID string, ok bool)
}

// Notifier is the presentation adapter for status notifications.
// All methods are fire-and-forget.
type Notifier interface {
	NowPlaying(channelID string, t track.Track)
	Queued(channelID string, t track.Track)
	Queue(channelID string, queued []track.QueuedRequest)
}

// Messages holds the user-facing reply strings.
type Messages struct {
	JoinVoiceFirst string
	SameChannel    string
	InvalidInput   string
	NoResults      string
	ResolveFailed  string
	NoTracksQueued string
	JoinFailed     string
	PlaybackFailed string
	QueueCleared   string
}

// Config holds controller configuration.
type Config struct {
	IdleTimeout time.Duration // Disconnect after this much idle time
	Messages    Messages
}

// Context carries the requester identity and reply sink for one inbound
// command. The external dispatcher has already performed permission checks.
type Context struct {
	GuildID       string
	TextChannelID string
	Requester     track.Requester
	Reply         func(msg string)
}

func (c Context) reply(msg string) {
	if c.Reply != nil {
		c.Reply(msg)
	}
}
