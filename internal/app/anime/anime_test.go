package anime

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukina-bot/yukina/internal/app/command"
	"github.com/yukina-bot/yukina/internal/infra/anilist"
)

func media(id int, title string) anilist.Media {
	var m anilist.Media
	m.ID = id
	m.Title.Romaji = title
	return m
}

type fakeSearcher struct {
	pages map[int]*anilist.Page // keyed by requested page
	err   error
	calls []int
}

func (s *fakeSearcher) Search(_ context.Context, _ string, _ anilist.MediaType, page int) (*anilist.Page, error) {
	s.calls = append(s.calls, page)
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.pages[page]
	if !ok {
		return &anilist.Page{}, nil
	}
	return p, nil
}

type fakeChat struct {
	sent    []string
	edits   []string
	deleted []string
	replies []string // consumed in order by AwaitReply
	cards   []anilist.Media
	manga   []bool
}

func (c *fakeChat) Send(_, content string) (string, error) {
	c.sent = append(c.sent, content)
	return "list-msg", nil
}

func (c *fakeChat) Edit(_, _, content string) error {
	c.edits = append(c.edits, content)
	return nil
}

func (c *fakeChat) Delete(_, messageID string) error {
	c.deleted = append(c.deleted, messageID)
	return nil
}

func (c *fakeChat) AwaitReply(ctx context.Context, _, _ string) (string, string, error) {
	if len(c.replies) == 0 {
		<-ctx.Done()
		return "", "", ctx.Err()
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r, "reply-msg", nil
}

func (c *fakeChat) SendMedia(_ string, m anilist.Media, manga bool) error {
	c.cards = append(c.cards, m)
	c.manga = append(c.manga, manga)
	return nil
}

func testMessages() Messages {
	return Messages{
		QueryFailed: "Error querying Anilist! Please try again later.",
		NotFound:    "I couldn't find anything with that name!",
	}
}

func testCtx(replies *[]string) command.Context {
	return command.Context{
		GuildID:   "guild-1",
		ChannelID: "chan-1",
		AuthorID:  "user-1",
		Reply:     func(msg string) { *replies = append(*replies, msg) },
	}
}

func TestSearch_SingleResult(t *testing.T) {
	searcher := &fakeSearcher{pages: map[int]*anilist.Page{
		1: {Info: anilist.PageInfo{Total: 1, CurrentPage: 1}, Media: []anilist.Media{media(1, "Cowboy Bebop")}},
	}}
	chat := &fakeChat{}
	m := New(searcher, chat, testMessages())

	var replies []string
	m.search(testCtx(&replies), anilist.MediaAnime, "cowboy bebop")

	require.Len(t, chat.cards, 1)
	assert.Equal(t, 1, chat.cards[0].ID)
	assert.False(t, chat.manga[0])
	assert.Empty(t, chat.sent, "single result skips the picker")
	assert.Empty(t, replies)
}

func TestSearch_NotFound(t *testing.T) {
	searcher := &fakeSearcher{pages: map[int]*anilist.Page{
		1: {Info: anilist.PageInfo{Total: 0}},
	}}
	chat := &fakeChat{}
	m := New(searcher, chat, testMessages())

	var replies []string
	m.search(testCtx(&replies), anilist.MediaAnime, "zzzzz")

	require.Len(t, replies, 1)
	assert.Equal(t, "I couldn't find anything with that name!", replies[0])
	assert.Empty(t, chat.cards)
}

func TestSearch_QueryError(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("anilist down")}
	chat := &fakeChat{}
	m := New(searcher, chat, testMessages())

	var replies []string
	m.search(testCtx(&replies), anilist.MediaManga, "berserk")

	require.Len(t, replies, 1)
	assert.Equal(t, "Error querying Anilist! Please try again later.", replies[0])
}

func TestSearch_EmptyTerm(t *testing.T) {
	searcher := &fakeSearcher{}
	m := New(searcher, &fakeChat{}, testMessages())

	var replies []string
	m.search(testCtx(&replies), anilist.MediaAnime, "")

	assert.Empty(t, searcher.calls)
	assert.Empty(t, replies)
}

func TestSearch_PickerSelectsEntry(t *testing.T) {
	searcher := &fakeSearcher{pages: map[int]*anilist.Page{
		1: {
			Info:  anilist.PageInfo{Total: 2, CurrentPage: 1},
			Media: []anilist.Media{media(1, "Cowboy Bebop"), media(5, "Cowboy Bebop: The Movie")},
		},
	}}
	chat := &fakeChat{replies: []string{"2"}}
	m := New(searcher, chat, testMessages())

	var replies []string
	m.search(testCtx(&replies), anilist.MediaAnime, "cowboy bebop")

	require.Len(t, chat.sent, 1)
	assert.Contains(t, chat.sent[0], "[1] Cowboy Bebop")
	assert.Contains(t, chat.sent[0], "[2] Cowboy Bebop: The Movie")

	require.Len(t, chat.cards, 1)
	assert.Equal(t, 5, chat.cards[0].ID)
	assert.Contains(t, chat.deleted, "list-msg", "selection list is cleaned up")
	assert.Contains(t, chat.deleted, "reply-msg", "the pick reply is consumed")
}

func TestSearch_PickerPagination(t *testing.T) {
	searcher := &fakeSearcher{pages: map[int]*anilist.Page{
		1: {
			Info:  anilist.PageInfo{Total: 12, CurrentPage: 1, HasNextPage: true},
			Media: []anilist.Media{media(1, "Gundam"), media(2, "Gundam Wing")},
		},
		2: {
			Info:  anilist.PageInfo{Total: 12, CurrentPage: 2, HasNextPage: false},
			Media: []anilist.Media{media(11, "Turn A Gundam")},
		},
	}}
	chat := &fakeChat{replies: []string{"...", "1"}}
	m := New(searcher, chat, testMessages())

	var replies []string
	m.search(testCtx(&replies), anilist.MediaAnime, "gundam")

	assert.Equal(t, []int{1, 2}, searcher.calls)
	require.Len(t, chat.edits, 1)
	assert.Contains(t, chat.edits[0], "[1] Turn A Gundam")
	assert.Contains(t, chat.edits[0], "[..] Previous Page")
	assert.NotContains(t, chat.edits[0], "[...] Next Page")

	require.Len(t, chat.cards, 1)
	assert.Equal(t, 11, chat.cards[0].ID)
}

func TestSearch_PickerIgnoresInvalidPicks(t *testing.T) {
	page := &anilist.Page{
		Info:  anilist.PageInfo{Total: 2, CurrentPage: 1},
		Media: []anilist.Media{media(1, "A"), media(2, "B")},
	}
	searcher := &fakeSearcher{pages: map[int]*anilist.Page{1: page}}
	chat := &fakeChat{replies: []string{"nope", "7", "1"}}
	m := New(searcher, chat, testMessages())

	var replies []string
	m.search(testCtx(&replies), anilist.MediaAnime, "letters")

	require.Len(t, chat.cards, 1)
	assert.Equal(t, 1, chat.cards[0].ID)
}

func TestSearch_PickerTimeout(t *testing.T) {
	searcher := &fakeSearcher{pages: map[int]*anilist.Page{
		1: {
			Info:  anilist.PageInfo{Total: 2, CurrentPage: 1},
			Media: []anilist.Media{media(1, "A"), media(2, "B")},
		},
	}}
	chat := &fakeChat{} // no replies: AwaitReply waits out the context
	m := New(searcher, chat, testMessages())
	m.pickTimeout = 20 * time.Millisecond

	var replies []string
	m.search(testCtx(&replies), anilist.MediaAnime, "letters")

	assert.Empty(t, chat.cards)
	assert.Contains(t, chat.deleted, "list-msg", "abandoned picker is cleaned up")
}
