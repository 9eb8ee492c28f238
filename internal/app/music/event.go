package music

// EventKind represents a playback lifecycle event kind.
type EventKind int

const (
	EventStarted  EventKind = iota // Stream began playing audio
	EventFinished                  // Stream ended (natural completion or stop)
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Event is a playback lifecycle event tagged with the session and playback
// handle it belongs to. Events are delivered through the controller's event
// channel and consumed serially; a stale PlaybackID (the session has moved
// on) makes the event a no-op.
type Event struct {
	GuildID    string
	PlaybackID string
	Kind       EventKind
}
