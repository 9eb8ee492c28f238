// Package ping implements the liveness check command.
package ping

import (
	"github.com/yukina-bot/yukina/internal/app/command"
)

// Module registers the ping command.
type Module struct{}

// New creates the ping module.
func New() *Module {
	return &Module{}
}

// Register adds the module's commands to the dispatcher.
func (m *Module) Register(d *command.Dispatcher) error {
	return d.Register(command.Info{
		Name:        "ping",
		Module:      "Ping",
		Description: "Checks that the bot is alive",
	}, func(ctx command.Context, _ []string) {
		if ctx.Reply != nil {
			ctx.Reply("Pong")
		}
	})
}
