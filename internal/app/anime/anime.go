// Package anime implements AniList lookups for the anime and manga
// commands, including the reply-driven picker shown when a search
// matches more than one entry.
package anime

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/yukina-bot/yukina/internal/app/command"
	"github.com/yukina-bot/yukina/internal/infra/anilist"
)

const (
	pickPrev = ".."
	pickNext = "..."

	defaultPickTimeout = 30 * time.Second
)

// Searcher queries AniList.
type Searcher interface {
	Search(ctx context.Context, search string, medium anilist.MediaType, page int) (*anilist.Page, error)
}

// Chat is the messaging surface the picker drives: sending and editing
// the selection list, watching for the requester's pick, and posting
// the final media card.
type Chat interface {
	Send(channelID, content string) (messageID string, err error)
	Edit(channelID, messageID, content string) error
	Delete(channelID, messageID string) error
	// AwaitReply blocks until the author posts in the channel or ctx
	// expires. The reply message is consumed (deleted) by the caller.
	AwaitReply(ctx context.Context, channelID, authorID string) (content, messageID string, err error)
	SendMedia(channelID string, m anilist.Media, manga bool) error
}

// Messages holds the module's reply strings.
type Messages struct {
	QueryFailed string
	NotFound    string
}

// Module registers the anime and manga commands.
type Module struct {
	searcher    Searcher
	chat        Chat
	msgs        Messages
	pickTimeout time.Duration
}

// New creates the anime module.
func New(searcher Searcher, chat Chat, msgs Messages) *Module {
	return &Module{
		searcher:    searcher,
		chat:        chat,
		msgs:        msgs,
		pickTimeout: defaultPickTimeout,
	}
}

type moduleSettings struct {
	PickTimeoutSec int `mapstructure:"pick_timeout_sec"`
}

// Configure applies the module's settings map from the config file.
func (m *Module) Configure(settings map[string]any) error {
	if settings == nil {
		return nil
	}
	var s moduleSettings
	if err := mapstructure.Decode(settings, &s); err != nil {
		return errors.Wrap(err, "invalid anime module settings")
	}
	if s.PickTimeoutSec > 0 {
		m.pickTimeout = time.Duration(s.PickTimeoutSec) * time.Second
	}
	return nil
}

// Register adds the module's commands to the dispatcher.
func (m *Module) Register(d *command.Dispatcher) error {
	if err := d.Register(command.Info{
		Name:        "anime",
		Module:      "Anime",
		Description: "Looks up an anime on AniList",
		Usage:       "<title>",
	}, func(ctx command.Context, args []string) {
		m.search(ctx, anilist.MediaAnime, strings.Join(args, " "))
	}); err != nil {
		return err
	}
	return d.Register(command.Info{
		Name:        "manga",
		Module:      "Anime",
		Description: "Looks up a manga on AniList",
		Usage:       "<title>",
	}, func(ctx command.Context, args []string) {
		m.search(ctx, anilist.MediaManga, strings.Join(args, " "))
	})
}

func (m *Module) search(ctx command.Context, medium anilist.MediaType, term string) {
	if term == "" {
		return
	}

	qctx, cancel := context.WithTimeout(context.Background(), m.pickTimeout)
	defer cancel()

	page, err := m.searcher.Search(qctx, term, medium, 1)
	if err != nil {
		zlog.Warn().Err(err).Str("term", term).Msg("anime: anilist query failed")
		ctx.Reply(m.msgs.QueryFailed)
		return
	}
	if page.Info.Total == 0 || len(page.Media) == 0 {
		ctx.Reply(m.msgs.NotFound)
		return
	}

	var entry *anilist.Media
	if page.Info.Total == 1 {
		entry = &page.Media[0]
	} else {
		entry = m.pick(ctx, medium, term, page)
	}
	if entry == nil {
		return
	}

	if err := m.chat.SendMedia(ctx.ChannelID, *entry, medium == anilist.MediaManga); err != nil {
		zlog.Warn().Err(err).Int("media", entry.ID).Msg("anime: failed to send media card")
	}
}

// pick walks the requester through multi-result selection. Numbers pick
// an entry, ".." and "..." page backwards and forwards, silence for the
// timeout aborts.
func (m *Module) pick(ctx command.Context, medium anilist.MediaType, term string, page *anilist.Page) *anilist.Media {
	listID, err := m.chat.Send(ctx.ChannelID, renderPickList(page))
	if err != nil {
		zlog.Warn().Err(err).Msg("anime: failed to post selection list")
		return nil
	}

	curPage := 1
	for {
		wctx, cancel := context.WithTimeout(context.Background(), m.pickTimeout)
		content, replyID, err := m.chat.AwaitReply(wctx, ctx.ChannelID, ctx.AuthorID)
		cancel()
		if err != nil {
			_ = m.chat.Delete(ctx.ChannelID, listID)
			return nil
		}
		_ = m.chat.Delete(ctx.ChannelID, replyID)

		switch content {
		case pickPrev:
			if curPage > 1 {
				curPage--
			}
		case pickNext:
			if page.Info.HasNextPage {
				curPage++
			}
		default:
			n, err := strconv.Atoi(content)
			if err != nil {
				continue
			}
			if n < 1 || n > len(page.Media) {
				continue
			}
			_ = m.chat.Delete(ctx.ChannelID, listID)
			return &page.Media[n-1]
		}

		qctx, qcancel := context.WithTimeout(context.Background(), m.pickTimeout)
		next, err := m.searcher.Search(qctx, term, medium, curPage)
		qcancel()
		if err != nil {
			zlog.Warn().Err(err).Int("page", curPage).Msg("anime: pagination query failed")
			continue
		}
		page = next
		if err := m.chat.Edit(ctx.ChannelID, listID, renderPickList(page)); err != nil {
			zlog.Warn().Err(err).Msg("anime: failed to edit selection list")
		}
	}
}

func renderPickList(page *anilist.Page) string {
	var b strings.Builder
	b.WriteString("Which one are you talking about?\n")
	for i, m := range page.Media {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, m.DisplayTitle())
	}
	if page.Info.CurrentPage > 1 {
		b.WriteString("[..] Previous Page\n")
	}
	if page.Info.HasNextPage {
		b.WriteString("[...] Next Page\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
