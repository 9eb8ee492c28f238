// Package moderation implements channel moderation commands.
package moderation

import (
	"fmt"
	"strconv"

	zlog "github.com/rs/zerolog/log"

	"github.com/yukina-bot/yukina/internal/app/command"
)

// ManageMessages is the permission bit required for prune.
const ManageMessages int64 = 1 << 13

// maxPrune keeps the fetch, one extra for the command message, within
// the API's 100-message bulk delete window.
const maxPrune = 99

// Pruner bulk-deletes recent messages from a channel, including the
// invoking command message.
type Pruner interface {
	Prune(channelID string, limit int) (int, error)
}

// Messages holds the module's reply strings.
type Messages struct {
	PruneDone    string // fmt string taking the deleted count
	DefaultError string
}

// Module registers moderation commands.
type Module struct {
	pruner Pruner
	msgs   Messages
}

// New creates the moderation module.
func New(pruner Pruner, msgs Messages) *Module {
	return &Module{pruner: pruner, msgs: msgs}
}

// Register adds the module's commands to the dispatcher.
func (m *Module) Register(d *command.Dispatcher) error {
	return d.Register(command.Info{
		Name:        "prune",
		Module:      "Moderation",
		Description: "Prunes the last # messages in a channel",
		Usage:       "<# of messages to prune>",
		Permissions: ManageMessages,
	}, m.prune)
}

func (m *Module) prune(ctx command.Context, args []string) {
	if len(args) == 0 {
		return
	}
	num, err := strconv.Atoi(args[0])
	if err != nil || num <= 0 {
		return
	}
	if num > maxPrune {
		num = maxPrune
	}

	// One extra to take the command message with it.
	deleted, err := m.pruner.Prune(ctx.ChannelID, num+1)
	if err != nil {
		zlog.Warn().Err(err).Str("channel", ctx.ChannelID).Msg("moderation: prune failed")
		if ctx.Reply != nil {
			ctx.Reply(m.msgs.DefaultError)
		}
		return
	}
	if ctx.Reply != nil && deleted > 0 {
		// The command message itself doesn't count.
		ctx.Reply(fmt.Sprintf(m.msgs.PruneDone, deleted-1))
	}
}
