// Package settings implements the general bot commands: help and the
// per-guild command prefix.
package settings

import (
	"fmt"
	"strings"

	zlog "github.com/rs/zerolog/log"

	"github.com/yukina-bot/yukina/internal/app/command"
	"github.com/yukina-bot/yukina/internal/infra/store"
)

// ManageGuild is the permission bit required for setprefix.
const ManageGuild int64 = 1 << 5

const maxPrefixLen = 8

// Prefixes resolves per-guild command prefixes from the store, falling
// back to the configured default.
type Prefixes struct {
	store    *store.Store
	fallback string
}

// NewPrefixes creates a store-backed prefix source.
func NewPrefixes(st *store.Store, fallback string) *Prefixes {
	return &Prefixes{store: st, fallback: fallback}
}

func prefixKey(guildID string) string {
	return "prefix:" + guildID
}

// Prefix implements command.PrefixSource.
func (p *Prefixes) Prefix(guildID string) string {
	return p.store.GetDefault(prefixKey(guildID), p.fallback)
}

// SetPrefix persists a guild's prefix.
func (p *Prefixes) SetPrefix(guildID, prefix string) error {
	return p.store.Set(prefixKey(guildID), prefix)
}

// Messages holds the module's reply strings.
type Messages struct {
	PrefixUpdated string // fmt string taking the new prefix
	DefaultError  string
}

// Module registers the help and setprefix commands.
type Module struct {
	prefixes *Prefixes
	msgs     Messages
}

// New creates the settings module.
func New(prefixes *Prefixes, msgs Messages) *Module {
	return &Module{prefixes: prefixes, msgs: msgs}
}

// Register adds the module's commands to the dispatcher. The help
// command renders from the dispatcher's own registry, so it should be
// registered after every other module.
func (m *Module) Register(d *command.Dispatcher) error {
	if err := d.Register(command.Info{
		Name:        "help",
		Module:      "General",
		Description: "Displays command usage",
		Usage:       "<command>",
	}, func(ctx command.Context, args []string) {
		m.help(d, ctx, args)
	}); err != nil {
		return err
	}
	return d.Register(command.Info{
		Name:        "setprefix",
		Module:      "General",
		Description: "Changes the command prefix for this server",
		Usage:       "<prefix>",
		Permissions: ManageGuild,
	}, m.setPrefix)
}

func (m *Module) help(d *command.Dispatcher, ctx command.Context, args []string) {
	if ctx.Reply == nil {
		return
	}
	if len(args) == 0 {
		ctx.Reply(d.Help(ctx.GuildID))
		return
	}
	if detail, ok := d.CommandHelp(ctx.GuildID, args[0]); ok {
		ctx.Reply(detail)
	}
}

func (m *Module) setPrefix(ctx command.Context, args []string) {
	if len(args) == 0 {
		return
	}
	prefix := strings.TrimSpace(args[0])
	if prefix == "" || len(prefix) > maxPrefixLen {
		return
	}

	if err := m.prefixes.SetPrefix(ctx.GuildID, prefix); err != nil {
		zlog.Error().Err(err).Str("guild", ctx.GuildID).Msg("settings: failed to persist prefix")
		if ctx.Reply != nil {
			ctx.Reply(m.msgs.DefaultError)
		}
		return
	}
	zlog.Info().Str("guild", ctx.GuildID).Str("prefix", prefix).Msg("settings: prefix changed")
	if ctx.Reply != nil {
		ctx.Reply(fmt.Sprintf(m.msgs.PrefixUpdated, prefix))
	}
}
