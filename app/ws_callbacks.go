package parley

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/putto11262002/parley/core"
)

func (app *App) onUserConnected(ctx context.Context, username string) {
	app.presence.Connected(ctx, username)
}

// onConnectionOpened subscribes the connection to every chat of its user and
// tells it who among the co-members is online.
func (app *App) onConnectionOpened(ctx context.Context, c *core.Conn) {
	if err := app.chats.Subscribe(ctx, c); err != nil {
		if errors.Is(err, core.ErrConnClosed) {
			return
		}
		app.logger.Error(fmt.Sprintf("Subscribe: %v", err), slog.String("conn", c.ID))
	}
	app.presence.Bootstrap(ctx, c)
}

func (app *App) onConnectionClosed(_ context.Context, c *core.Conn, rooms []string) {
	app.calls.LeftCallRooms(c.User, rooms)
}

func (app *App) onUserDisconnected(ctx context.Context, username string) {
	app.presence.Disconnected(ctx, username)
}
