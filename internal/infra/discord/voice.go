package discord

import (
	"context"
	"encoding/binary"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/lrstanley/go-ytdlp"
	zlog "github.com/rs/zerolog/log"
	opus "gopkg.in/hraban/opus.v2"

	"github.com/yukina-bot/yukina/internal/app/music"
	"github.com/yukina-bot/yukina/internal/domain/track"
)

// Discord voice expects 48kHz stereo opus in 20ms frames.
const (
	sampleRate = 48000
	channels   = 2
	frameSize  = 960
	maxBytes   = frameSize * channels * 2
)

// VoiceConfig tunes the audio pipeline.
type VoiceConfig struct {
	FFmpegPath  string
	OpusBitrate int
}

// VoiceManager implements music.Voice. It keeps one live connection
// wrapper per guild; discordgo itself moves the underlying connection
// when joining a different channel of the same guild.
type VoiceManager struct {
	session *discordgo.Session
	cfg     VoiceConfig

	mu    sync.Mutex
	conns map[string]*VoiceConn
}

// NewVoiceManager creates a voice manager.
func NewVoiceManager(session *discordgo.Session, cfg VoiceConfig) *VoiceManager {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.OpusBitrate <= 0 {
		cfg.OpusBitrate = 96000
	}
	return &VoiceManager{
		session: session,
		cfg:     cfg,
		conns:   make(map[string]*VoiceConn),
	}
}

// Join implements music.Voice.
func (m *VoiceManager) Join(_ context.Context, guildID, channelID string) (music.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conn, ok := m.conns[guildID]; ok && conn.channelID == channelID && !conn.closed() {
		return conn, nil
	}

	vc, err := m.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to join voice channel %s", channelID)
	}

	conn := &VoiceConn{
		guildID:   guildID,
		channelID: channelID,
		vc:        vc,
		mgr:       m,
		cfg:       m.cfg,
		closedCh:  make(chan struct{}),
	}
	m.conns[guildID] = conn
	zlog.Info().Str("guild", guildID).Str("channel", channelID).Msg("discord: joined voice channel")
	return conn, nil
}

// release tears the gateway connection down, but only when c is still
// the guild's current wrapper. A wrapper replaced by a later Join must
// not kill its successor's connection.
func (m *VoiceManager) release(c *VoiceConn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conns[c.guildID] != c {
		return nil
	}
	delete(m.conns, c.guildID)
	zlog.Info().Str("guild", c.guildID).Str("channel", c.channelID).Msg("discord: leaving voice channel")
	return c.vc.Disconnect()
}

// VoiceConn is one guild's voice connection.
type VoiceConn struct {
	guildID   string
	channelID string
	vc        *discordgo.VoiceConnection
	mgr       *VoiceManager
	cfg       VoiceConfig

	closeOnce sync.Once
	closedCh  chan struct{}
}

// ChannelID implements music.Connection.
func (c *VoiceConn) ChannelID() string {
	return c.channelID
}

// Disconnect implements music.Connection.
func (c *VoiceConn) Disconnect() error {
	c.closeOnce.Do(func() { close(c.closedCh) })
	return c.mgr.release(c)
}

func (c *VoiceConn) closed() bool {
	select {
	case <-c.closedCh:
		return true
	default:
		return false
	}
}

// Play implements music.Connection. The stream runs on its own
// goroutine; the finished event fires on every exit path.
func (c *VoiceConn) Play(t track.Track, emit music.EmitFunc) (music.Playback, error) {
	if c.closed() {
		return nil, errors.New("voice connection is closed")
	}
	pb := &playback{
		id:   uuid.NewString(),
		stop: make(chan struct{}),
	}
	go c.stream(pb, t, emit)
	return pb, nil
}

func (c *VoiceConn) stream(pb *playback, t track.Track, emit music.EmitFunc) {
	defer emit(pb.id, music.EventFinished)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-pb.stop:
			cancel()
		case <-c.closedCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	streamURL, err := resolveStreamURL(ctx, t.URL)
	if err != nil {
		zlog.Error().Err(err).Str("track", t.Title).Msg("discord: failed to resolve stream url")
		return
	}

	cmd := exec.CommandContext(ctx, c.cfg.FFmpegPath,
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-nostdin",
		"-i", streamURL,
		"-f", "s16le",
		"-ar", "48000",
		"-ac", "2",
		"pipe:1")
	out, err := cmd.StdoutPipe()
	if err != nil {
		zlog.Error().Err(err).Msg("discord: failed to open ffmpeg stdout")
		return
	}
	if err := cmd.Start(); err != nil {
		zlog.Error().Err(err).Str("ffmpeg", c.cfg.FFmpegPath).Msg("discord: failed to start ffmpeg")
		return
	}
	defer func() {
		cancel()
		_ = cmd.Wait()
	}()

	encoder, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		zlog.Error().Err(err).Msg("discord: failed to create opus encoder")
		return
	}
	if err := encoder.SetBitrate(c.cfg.OpusBitrate); err != nil {
		zlog.Warn().Err(err).Int("bitrate", c.cfg.OpusBitrate).Msg("discord: failed to set opus bitrate")
	}

	_ = c.vc.Speaking(true)
	defer func() { _ = c.vc.Speaking(false) }()

	emit(pb.id, music.EventStarted)
	zlog.Debug().Str("guild", c.guildID).Str("track", t.Title).Str("playback", pb.id).Msg("discord: streaming started")

	pcm := make([]int16, frameSize*channels)
	for {
		select {
		case <-pb.stop:
			return
		case <-c.closedCh:
			return
		default:
		}

		if err := binary.Read(out, binary.LittleEndian, &pcm); err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF && ctx.Err() == nil {
				zlog.Warn().Err(err).Str("track", t.Title).Msg("discord: pcm read failed")
			}
			return
		}

		buf := make([]byte, maxBytes)
		n, err := encoder.Encode(pcm, buf)
		if err != nil {
			zlog.Warn().Err(err).Str("track", t.Title).Msg("discord: opus encode failed")
			return
		}

		select {
		case c.vc.OpusSend <- buf[:n]:
		case <-pb.stop:
			return
		case <-c.closedCh:
			return
		}
	}
}

// resolveStreamURL asks yt-dlp for the direct audio stream behind a
// watch page URL.
func resolveStreamURL(ctx context.Context, pageURL string) (string, error) {
	res, err := ytdlp.New().
		Quiet().
		NoWarnings().
		NoPlaylist().
		Format("bestaudio/best").
		Print("%(urls)s").
		Run(ctx, pageURL)
	if err != nil {
		return "", errors.Wrapf(err, "yt-dlp failed for %s", pageURL)
	}
	line := strings.SplitN(strings.TrimSpace(res.Stdout), "\n", 2)[0]
	if line == "" {
		return "", errors.Newf("yt-dlp returned no stream url for %s", pageURL)
	}
	return line, nil
}

type playback struct {
	id       string
	stop     chan struct{}
	stopOnce sync.Once
}

// ID implements music.Playback.
func (p *playback) ID() string {
	return p.id
}

// Stop implements music.Playback. It never blocks; the stream goroutine
// observes the signal and fires the finished event on its way out.
func (p *playback) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}
