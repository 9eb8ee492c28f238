package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukina-bot/yukina/internal/app/command"
	"github.com/yukina-bot/yukina/internal/infra/store"
)

type allowAll struct{}

func (allowAll) HasPermissions(_, _ string, _ int64) bool { return true }

func newPrefixes(t *testing.T) *Prefixes {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	return NewPrefixes(st, "y.")
}

func testMessages() Messages {
	return Messages{PrefixUpdated: "Prefix updated to %s", DefaultError: "Something went wrong!"}
}

func TestPrefixes_FallbackAndOverride(t *testing.T) {
	p := newPrefixes(t)

	assert.Equal(t, "y.", p.Prefix("guild-1"))
	require.NoError(t, p.SetPrefix("guild-1", "!"))
	assert.Equal(t, "!", p.Prefix("guild-1"))
	assert.Equal(t, "y.", p.Prefix("guild-2"), "prefixes are per guild")
}

func TestSetPrefixCommand(t *testing.T) {
	p := newPrefixes(t)
	d := command.NewDispatcher(p, allowAll{})
	require.NoError(t, New(p, testMessages()).Register(d))

	var replies []string
	ctx := command.Context{
		GuildID: "guild-1",
		Reply:   func(msg string) { replies = append(replies, msg) },
	}

	d.Dispatch(ctx, "y.setprefix !")
	require.Equal(t, []string{"Prefix updated to !"}, replies)

	// The old prefix stops working, the new one takes over.
	d.Dispatch(ctx, "y.setprefix ??")
	d.Dispatch(ctx, "!setprefix ??")
	assert.Equal(t, "??", p.Prefix("guild-1"))
}

func TestSetPrefixCommand_InvalidArgs(t *testing.T) {
	p := newPrefixes(t)
	m := New(p, testMessages())

	var replies []string
	ctx := command.Context{
		GuildID: "guild-1",
		Reply:   func(msg string) { replies = append(replies, msg) },
	}

	m.setPrefix(ctx, nil)
	m.setPrefix(ctx, []string{"waytoolongprefix"})
	assert.Empty(t, replies)
	assert.Equal(t, "y.", p.Prefix("guild-1"))
}

func TestHelpCommand(t *testing.T) {
	p := newPrefixes(t)
	d := command.NewDispatcher(p, allowAll{})

	require.NoError(t, d.Register(command.Info{Name: "play", Module: "Music", Description: "Play a track"}, func(command.Context, []string) {}))
	require.NoError(t, New(p, testMessages()).Register(d))

	var replies []string
	ctx := command.Context{
		GuildID: "guild-1",
		Reply:   func(msg string) { replies = append(replies, msg) },
	}

	d.Dispatch(ctx, "y.help")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "**Music**: y.play")
	assert.Contains(t, replies[0], "y.help")

	replies = nil
	d.Dispatch(ctx, "y.help play")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "Play a track")
}
