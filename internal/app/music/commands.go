package music

import (
	"strings"

	"github.com/yukina-bot/yukina/internal/app/command"

	"github.com/yukina-bot/yukina/internal/domain/track"
)

// RegisterCommands adds the playback commands to the dispatcher.
func (c *Controller) RegisterCommands(d *command.Dispatcher) error {
	type cmd struct {
		info command.Info
		fn   func(Context, []string)
	}
	cmds := []cmd{
		{
			info: command.Info{Name: "join", Module: "Music", Description: "Joins your voice channel"},
			fn:   func(ctx Context, _ []string) { c.Join(ctx) },
		},
		{
			info: command.Info{Name: "leave", Module: "Music", Description: "Leaves the voice channel and clears the queue"},
			fn:   func(ctx Context, _ []string) { c.Leave(ctx) },
		},
		{
			info: command.Info{Name: "play", Module: "Music", Description: "Plays a track or queues it if one is playing", Usage: "<url or search>", Aliases: []string{"p"}},
			fn:   func(ctx Context, args []string) { c.Play(ctx, strings.Join(args, " ")) },
		},
		{
			info: command.Info{Name: "stop", Module: "Music", Description: "Stops playback and clears the queue"},
			fn:   func(ctx Context, _ []string) { c.Stop(ctx) },
		},
		{
			info: command.Info{Name: "skip", Module: "Music", Description: "Skips to the next queued track"},
			fn:   func(ctx Context, _ []string) { c.Skip(ctx) },
		},
		{
			info: command.Info{Name: "queue", Module: "Music", Description: "Shows the queued tracks", Aliases: []string{"q"}},
			fn:   func(ctx Context, _ []string) { c.CheckQueue(ctx) },
		},
		{
			info: command.Info{Name: "clearqueue", Module: "Music", Description: "Clears the queue without stopping playback"},
			fn:   func(ctx Context, _ []string) { c.ClearQueue(ctx) },
		},
	}

	for _, cm := range cmds {
		fn := cm.fn
		if err := d.Register(cm.info, func(ctx command.Context, args []string) {
			fn(contextFrom(ctx), args)
		}); err != nil {
			return err
		}
	}
	return nil
}

func contextFrom(ctx command.Context) Context {
	return Context{
		GuildID:       ctx.GuildID,
		TextChannelID: ctx.ChannelID,
		Requester: track.Requester{
			ID:          ctx.AuthorID,
			DisplayName: ctx.AuthorName,
		},
		Reply: ctx.Reply,
	}
}
