// Package music provides the audio playback session engine: one voice
// connection per guild, a FIFO play queue, and idle-disconnect handling.
package music

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/yukina-bot/yukina/internal/domain/track"
)

const (
	defaultIdleTimeout = 60 * time.Second
	resolveTimeout     = 30 * time.Second
)

// Controller owns all playback state transitions. Inbound commands arrive
// from the external dispatcher; internal events (playback finished, idle
// timer fired) arrive through the event channel and are consumed serially
// by Run. Per-session serialization is the session mutex; there is no
// global lock across guilds.
type Controller struct {
	cfg      Config
	voice    Voice
	resolver Resolver
	notifier Notifier
	finder   ChannelFinder

	mu       sync.RWMutex
	sessions map[string]*Session

	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController creates a new playback controller.
func NewController(cfg Config, voice Voice, resolver Resolver, notifier Notifier, finder ChannelFinder) *Controller {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:      cfg,
		voice:    voice,
		resolver: resolver,
		notifier: notifier,
		finder:   finder,
		sessions: make(map[string]*Session),
		events:   make(chan Event, 16),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Run consumes playback lifecycle events until Close is called.
func (c *Controller) Run() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.events:
			c.handleEvent(ev)
		}
	}
}

// Close stops the event loop and tears down every session.
func (c *Controller) Close() {
	c.cancel()

	c.mu.Lock()
	sessions := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.sessions = make(map[string]*Session)
	c.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		if s.active != nil {
			pb := s.active
			s.clearActiveLocked()
			pb.Stop()
		}
		s.clearQueueLocked()
		s.cancelIdleTimerLocked()
		conn := s.conn
		s.conn = nil
		s.mu.Unlock()
		if conn != nil {
			_ = conn.Disconnect()
		}
	}
}

// session returns the guild's session, creating it on first use.
func (c *Controller) session(guildID string) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[guildID]
	if !ok {
		s = newSession(guildID)
		c.sessions[guildID] = s
	}
	return s
}

// lookup returns the guild's session without creating one.
func (c *Controller) lookup(guildID string) (*Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[guildID]
	return s, ok
}

// drop evicts a disconnected session. Advisory only: transitions stay
// correct even if the entry lingers.
func (c *Controller) drop(guildID string, s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessions[guildID] == s {
		delete(c.sessions, guildID)
	}
}

// Join connects to the requester's voice channel, replacing any existing
// connection for the guild.
func (c *Controller) Join(ctx Context) {
	channelID, ok := c.finder.UserVoiceChannel(ctx.GuildID, ctx.Requester.ID)
	if !ok {
		ctx.reply(c.cfg.Messages.JoinVoiceFirst)
		return
	}

	s := c.session(ctx.GuildID)
	conn, err := c.voice.Join(c.ctx, ctx.GuildID, channelID)
	if err != nil {
		zlog.Warn().Err(err).Str("guild", ctx.GuildID).Str("channel", channelID).Msg("music: voice join failed")
		ctx.reply(c.cfg.Messages.JoinFailed)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifyChannelID = ctx.TextChannelID
	if s.conn != nil && s.conn != conn {
		_ = s.conn.Disconnect()
	}
	s.conn = conn
}

// Leave disconnects and clears all playback state. Requires the requester
// to share the connection's channel; otherwise, and on a second call, it
// is a no-op.
func (c *Controller) Leave(ctx Context) {
	s, ok := c.lookup(ctx.GuildID)
	if !ok {
		return
	}

	s.mu.Lock()
	if s.conn == nil || !c.sameChannelLocked(s, ctx) {
		s.mu.Unlock()
		return
	}
	if s.active != nil {
		pb := s.active
		s.clearActiveLocked()
		pb.Stop()
	}
	s.clearQueueLocked()
	s.cancelIdleTimerLocked()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	_ = conn.Disconnect()
	c.drop(ctx.GuildID, s)
}

// Play resolves the input and either starts playback immediately (when the
// session is idle) or appends to the queue. A play issued while idle never
// touches the queue.
//
// Resolution and the lazy voice join are suspension points; preconditions
// are re-validated after each one. Two play commands issued back-to-back
// may resolve out of order and be enqueued out of order; this non-atomic
// window is accepted.
func (c *Controller) Play(ctx Context, input string) {
	input = strings.TrimSpace(input)
	if input == "" {
		ctx.reply(c.cfg.Messages.InvalidInput)
		return
	}

	userChannel, ok := c.finder.UserVoiceChannel(ctx.GuildID, ctx.Requester.ID)
	if !ok {
		ctx.reply(c.cfg.Messages.JoinVoiceFirst)
		return
	}

	s := c.session(ctx.GuildID)
	s.mu.Lock()
	s.notifyChannelID = ctx.TextChannelID
	if s.conn != nil && s.conn.ChannelID() != userChannel {
		s.mu.Unlock()
		ctx.reply(c.cfg.Messages.SameChannel)
		return
	}
	expected := s.conn
	s.mu.Unlock()

	rctx, rcancel := context.WithTimeout(c.ctx, resolveTimeout)
	t, err := c.resolver.Resolve(rctx, input)
	rcancel()
	if err != nil {
		switch {
		case errors.Is(err, ErrNoResults):
			ctx.reply(c.cfg.Messages.NoResults)
		default:
			zlog.Warn().Err(err).Str("input", input).Msg("music: resolution failed")
			ctx.reply(c.cfg.Messages.ResolveFailed)
		}
		return
	}

	c.startOrEnqueue(ctx, s, expected, t)
}

// startOrEnqueue completes a play request after resolution. expected is the
// connection observed before the suspension; a changed connection aborts
// cleanly without mutating queue state.
func (c *Controller) startOrEnqueue(ctx Context, s *Session, expected Connection, t track.Track) {
	req := track.NewQueuedRequest(t, ctx.Requester)

	s.mu.Lock()
	if expected != nil && s.conn != expected {
		s.mu.Unlock()
		zlog.Debug().Str("guild", ctx.GuildID).Msg("music: connection changed during resolution, aborting play")
		return
	}
	if s.active != nil || len(s.queue) > 0 {
		s.enqueueLocked(req)
		notifyChannel := s.notifyChannelID
		s.mu.Unlock()
		c.notifier.Queued(notifyChannel, t)
		return
	}
	if s.conn != nil {
		if !c.sameChannelLocked(s, ctx) {
			s.mu.Unlock()
			ctx.reply(c.cfg.Messages.SameChannel)
			return
		}
		c.startNowLocked(ctx, s, req)
		return
	}
	s.mu.Unlock()

	// Idle with no connection: join lazily, then decide again. The
	// requester may have moved or left during resolution.
	channelID, ok := c.finder.UserVoiceChannel(ctx.GuildID, ctx.Requester.ID)
	if !ok {
		ctx.reply(c.cfg.Messages.JoinVoiceFirst)
		return
	}
	conn, err := c.voice.Join(c.ctx, ctx.GuildID, channelID)
	if err != nil {
		zlog.Warn().Err(err).Str("guild", ctx.GuildID).Str("channel", channelID).Msg("music: lazy voice join failed")
		ctx.reply(c.cfg.Messages.JoinFailed)
		return
	}

	s.mu.Lock()
	if s.conn == nil {
		s.conn = conn
	}
	if s.active != nil || len(s.queue) > 0 {
		// Lost the becoming-active race during the join.
		s.enqueueLocked(req)
		notifyChannel := s.notifyChannelID
		s.mu.Unlock()
		c.notifier.Queued(notifyChannel, t)
		return
	}
	c.startNowLocked(ctx, s, req)
}

// startNowLocked starts playback for an idle session and releases the lock.
func (c *Controller) startNowLocked(ctx Context, s *Session, req track.QueuedRequest) {
	err := c.startPlayingLocked(s, req)
	if err != nil {
		c.armIdleTimerLocked(s)
	}
	s.mu.Unlock()
	if err != nil {
		zlog.Error().Err(err).Str("guild", s.guildID).Str("track", req.Track.Title).Msg("music: playback start failed")
		ctx.reply(c.cfg.Messages.PlaybackFailed)
	}
}

// Stop destroys the active playback, discards the entire remaining queue
// and arms the idle timer. No-op when nothing is playing or the requester
// is in a different channel.
func (c *Controller) Stop(ctx Context) {
	s, ok := c.lookup(ctx.GuildID)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || !c.sameChannelLocked(s, ctx) {
		return
	}
	pb := s.active
	s.clearActiveLocked()
	s.clearQueueLocked()
	pb.Stop()
	c.armIdleTimerLocked(s)
}

// Skip destroys the current playback and starts the next queued request.
// Always advances exactly one position; the rest of the queue is preserved.
func (c *Controller) Skip(ctx Context) {
	s, ok := c.lookup(ctx.GuildID)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || !c.sameChannelLocked(s, ctx) {
		return
	}
	if len(s.queue) == 0 {
		ctx.reply(c.cfg.Messages.NoTracksQueued)
		return
	}
	old := s.active
	s.clearActiveLocked()
	old.Stop()
	c.advanceLocked(s)
}

// ClearQueue empties the queue without touching the active playback.
func (c *Controller) ClearQueue(ctx Context) {
	s, ok := c.lookup(ctx.GuildID)
	if !ok {
		ctx.reply(c.cfg.Messages.NoTracksQueued)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil && !c.sameChannelLocked(s, ctx) {
		return
	}
	if len(s.queue) == 0 {
		ctx.reply(c.cfg.Messages.NoTracksQueued)
		return
	}
	s.clearQueueLocked()
	ctx.reply(c.cfg.Messages.QueueCleared)
}

// CheckQueue lists the pending requests in playback order.
func (c *Controller) CheckQueue(ctx Context) {
	s, ok := c.lookup(ctx.GuildID)
	if !ok {
		ctx.reply(c.cfg.Messages.NoTracksQueued)
		return
	}

	s.mu.Lock()
	if s.conn == nil || len(s.queue) == 0 {
		s.mu.Unlock()
		ctx.reply(c.cfg.Messages.NoTracksQueued)
		return
	}
	queued := s.queuedLocked()
	s.mu.Unlock()

	c.notifier.Queue(ctx.TextChannelID, queued)
}

// handleEvent applies a playback lifecycle event. Events carrying a
// playback ID the session has already moved past are stale and ignored;
// this is what lets an external stop or skip race a natural completion
// without a double transition.
func (c *Controller) handleEvent(ev Event) {
	s, ok := c.lookup(ev.GuildID)
	if !ok {
		return
	}

	s.mu.Lock()
	if s.activeID != ev.PlaybackID {
		s.mu.Unlock()
		zlog.Debug().Str("guild", ev.GuildID).Stringer("kind", ev.Kind).Msg("music: stale playback event")
		return
	}

	switch ev.Kind {
	case EventStarted:
		notifyChannel := s.notifyChannelID
		t := s.activeTrack
		s.mu.Unlock()
		c.notifier.NowPlaying(notifyChannel, t)
	case EventFinished:
		s.clearActiveLocked()
		c.advanceLocked(s)
		s.mu.Unlock()
	default:
		s.mu.Unlock()
	}
}

// advanceLocked pops and starts the next queued request, skipping entries
// that fail to start; with nothing left it arms the idle timer.
func (c *Controller) advanceLocked(s *Session) {
	for {
		req, ok := s.dequeueLocked()
		if !ok {
			c.armIdleTimerLocked(s)
			return
		}
		if err := c.startPlayingLocked(s, req); err != nil {
			zlog.Error().Err(err).Str("guild", s.guildID).Str("track", req.Track.Title).Msg("music: queued track failed to start, advancing")
			continue
		}
		return
	}
}

// startPlayingLocked begins streaming through the session's connection.
// The idle timer is cancelled before the stream is issued, and the active
// handle is recorded only after Play returns, so there is never an active
// playback with no stream attached.
func (c *Controller) startPlayingLocked(s *Session, req track.QueuedRequest) error {
	if s.conn == nil {
		return errors.New("no voice connection")
	}
	s.cancelIdleTimerLocked()
	pb, err := s.conn.Play(req.Track, c.emitFor(s.guildID))
	if err != nil {
		return err
	}
	s.setActiveLocked(pb)
	s.activeTrack = req.Track
	return nil
}

// armIdleTimerLocked schedules the idle disconnect. The queue and active
// playback are always checked here, at arm time, never assumed.
func (c *Controller) armIdleTimerLocked(s *Session) {
	if s.active != nil || len(s.queue) > 0 {
		return
	}
	s.cancelIdleTimerLocked()
	gen := s.idleGen
	s.idleTimer = time.AfterFunc(c.cfg.IdleTimeout, func() {
		c.idleTimeout(s, gen)
	})
}

// idleTimeout fires when the session has been idle for the full timeout.
// The state is re-checked at fire time: playback that started after the
// deadline passed, or a cancel that lost the Stop race, makes this a no-op.
func (c *Controller) idleTimeout(s *Session, gen uint64) {
	s.mu.Lock()
	if gen != s.idleGen {
		s.mu.Unlock()
		return
	}
	s.idleTimer = nil
	if s.active != nil || len(s.queue) > 0 {
		s.mu.Unlock()
		return
	}
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		zlog.Info().Str("guild", s.guildID).Msg("music: idle timeout, disconnecting")
		_ = conn.Disconnect()
	}
	c.drop(s.guildID, s)
}

// sameChannelLocked reports whether the requester currently shares the
// session's voice channel.
func (c *Controller) sameChannelLocked(s *Session, ctx Context) bool {
	if s.conn == nil {
		return false
	}
	channelID, ok := c.finder.UserVoiceChannel(ctx.GuildID, ctx.Requester.ID)
	return ok && channelID == s.conn.ChannelID()
}

// emitFor builds the event sink handed to a connection's Play call. Sends
// never block the streaming goroutine: with the loop stopped or the buffer
// full the event is dropped.
func (c *Controller) emitFor(guildID string) EmitFunc {
	return func(playbackID string, kind EventKind) {
		ev := Event{GuildID: guildID, PlaybackID: playbackID, Kind: kind}
		select {
		case c.events <- ev:
		case <-c.ctx.Done():
		default:
			zlog.Warn().Str("guild", guildID).Stringer("kind", kind).Msg("music: event channel full, dropping event")
		}
	}
}
