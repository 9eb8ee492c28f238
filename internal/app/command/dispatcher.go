// Package command implements prefix-based command dispatch: parsing
// inbound chat messages, alias lookup, permission gating and help text.
package command

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Context carries the chat message a command was invoked from.
type Context struct {
	GuildID    string
	ChannelID  string
	AuthorID   string
	AuthorName string
	Reply      func(string)
}

func (c Context) reply(msg string) {
	if c.Reply != nil {
		c.Reply(msg)
	}
}

// HandlerFunc runs a command with the arguments following its name.
type HandlerFunc func(ctx Context, args []string)

// Info describes a registered command.
type Info struct {
	Name        string
	Module      string
	Description string
	Usage       string
	Aliases     []string
	Permissions int64 // permission bits required, 0 for everyone
}

// PrefixSource resolves the command prefix for a guild.
type PrefixSource interface {
	Prefix(guildID string) string
}

// PermissionChecker reports whether a user holds the given permission
// bits in a channel.
type PermissionChecker interface {
	HasPermissions(channelID, userID string, permissions int64) bool
}

type entry struct {
	info Info
	fn   HandlerFunc
}

// Dispatcher routes prefixed messages to registered command handlers.
type Dispatcher struct {
	prefixes PrefixSource
	perms    PermissionChecker

	mu       sync.RWMutex
	commands map[string]*entry
	aliases  map[string]string
}

// NewDispatcher creates a dispatcher. perms may be nil, in which case
// commands requiring permissions are refused.
func NewDispatcher(prefixes PrefixSource, perms PermissionChecker) *Dispatcher {
	return &Dispatcher{
		prefixes: prefixes,
		perms:    perms,
		commands: make(map[string]*entry),
		aliases:  make(map[string]string),
	}
}

// Register adds a command. Name and alias collisions are errors.
func (d *Dispatcher) Register(info Info, fn HandlerFunc) error {
	if info.Name == "" {
		return errors.New("command name is required")
	}
	if fn == nil {
		return errors.Newf("command %s has no handler", info.Name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.commands[info.Name]; ok {
		return errors.Newf("command %s already registered", info.Name)
	}
	if owner, ok := d.aliases[info.Name]; ok {
		return errors.Newf("command %s collides with an alias of %s", info.Name, owner)
	}
	for _, alias := range info.Aliases {
		if _, ok := d.commands[alias]; ok {
			return errors.Newf("alias %s of %s collides with a command", alias, info.Name)
		}
		if owner, ok := d.aliases[alias]; ok {
			return errors.Newf("alias %s of %s already taken by %s", alias, info.Name, owner)
		}
	}

	d.commands[info.Name] = &entry{info: info, fn: fn}
	for _, alias := range info.Aliases {
		d.aliases[alias] = info.Name
	}
	zlog.Debug().Str("command", info.Name).Str("module", info.Module).Msg("command: registered")
	return nil
}

// Dispatch parses content and invokes the matching handler. Messages
// without the guild's prefix, unknown commands and permission failures
// are silently ignored.
func (d *Dispatcher) Dispatch(ctx Context, content string) {
	prefix := d.prefixes.Prefix(ctx.GuildID)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return
	}

	fields := strings.Fields(content[len(prefix):])
	if len(fields) == 0 {
		return
	}

	e, ok := d.lookup(fields[0])
	if !ok {
		return
	}
	if e.info.Permissions != 0 {
		if d.perms == nil || !d.perms.HasPermissions(ctx.ChannelID, ctx.AuthorID, e.info.Permissions) {
			return
		}
	}

	zlog.Debug().Str("command", e.info.Name).Str("guild", ctx.GuildID).Str("author", ctx.AuthorID).Msg("command: dispatching")
	e.fn(ctx, fields[1:])
}

func (d *Dispatcher) lookup(name string) (*entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if e, ok := d.commands[name]; ok {
		return e, true
	}
	if canonical, ok := d.aliases[name]; ok {
		return d.commands[canonical], true
	}
	return nil, false
}

// Help renders the command overview for a guild Prefix, grouped by
// module in alphabetical order.
func (d *Dispatcher) Help(guildID string) string {
	prefix := d.prefixes.Prefix(guildID)

	d.mu.RLock()
	byModule := make(map[string][]Info)
	for _, e := range d.commands {
		byModule[e.info.Module] = append(byModule[e.info.Module], e.info)
	}
	d.mu.RUnlock()

	modules := make([]string, 0, len(byModule))
	for m := range byModule {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	var b strings.Builder
	fmt.Fprintf(&b, "Use %shelp <command> for more info\n", prefix)
	for _, m := range modules {
		infos := byModule[m]
		sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
		names := make([]string, 0, len(infos))
		for _, info := range infos {
			names = append(names, prefix+info.Name)
		}
		fmt.Fprintf(&b, "**%s**: %s\n", m, strings.Join(names, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// CommandHelp renders detailed help for one command or alias.
func (d *Dispatcher) CommandHelp(guildID, name string) (string, bool) {
	e, ok := d.lookup(name)
	if !ok {
		return "", false
	}
	prefix := d.prefixes.Prefix(guildID)
	info := e.info

	var b strings.Builder
	fmt.Fprintf(&b, "**%s%s**\n%s", prefix, info.Name, info.Description)
	if len(info.Aliases) > 0 {
		fmt.Fprintf(&b, "\nAliases: %s", strings.Join(info.Aliases, ", "))
	}
	if info.Usage != "" {
		fmt.Fprintf(&b, "\nUsage: %s%s %s", prefix, info.Name, info.Usage)
	}
	return b.String(), true
}
