package music

import (
	"sync"
	"time"

	"github.com/yukina-bot/yukina/internal/domain/track"
)

// Session is the per-guild playback state. All fields are guarded by mu;
// commands and internal events for the same session are serialized through
// it, while sessions for different guilds proceed independently.
//
// Cross-field invariants, enforced by the controller transitions:
//   - active != nil implies conn != nil
//   - idleTimer != nil implies active == nil
//   - the queue is always checked before an idle timer is armed
type Session struct {
	mu sync.Mutex

	guildID string

	conn        Connection
	active      Playback
	activeID    string
	activeTrack track.Track

	idleTimer *time.Timer
	idleGen   uint64

	queue []track.QueuedRequest

	// Text channel of the most recent command, used for now-playing and
	// queued notifications.
	notifyChannelID string
}

func newSession(guildID string) *Session {
	return &Session{guildID: guildID}
}

// enqueueLocked appends a request to the play queue.
func (s *Session) enqueueLocked(req track.QueuedRequest) {
	s.queue = append(s.queue, req)
}

// dequeueLocked pops the next request, strict FIFO.
func (s *Session) dequeueLocked() (track.QueuedRequest, bool) {
	if len(s.queue) == 0 {
		return track.QueuedRequest{}, false
	}
	req := s.queue[0]
	s.queue = s.queue[1:]
	return req, true
}

// clearQueueLocked empties the queue and reports how many entries it held.
func (s *Session) clearQueueLocked() int {
	n := len(s.queue)
	s.queue = nil
	return n
}

// queuedLocked returns a copy of the pending requests in playback order.
func (s *Session) queuedLocked() []track.QueuedRequest {
	out := make([]track.QueuedRequest, len(s.queue))
	copy(out, s.queue)
	return out
}

// setActiveLocked records the playback handle that is now streaming.
func (s *Session) setActiveLocked(pb Playback) {
	s.active = pb
	s.activeID = pb.ID()
}

// clearActiveLocked forgets the active playback without stopping it.
func (s *Session) clearActiveLocked() {
	s.active = nil
	s.activeID = ""
}

// cancelIdleTimerLocked disarms a pending idle timer, if any. Bumping the
// generation makes an already-fired timer callback a no-op even when Stop
// comes too late to win the race.
func (s *Session) cancelIdleTimerLocked() {
	s.idleGen++
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}
