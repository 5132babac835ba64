package parley

import (
	"context"

	"github.com/putto11262002/parley/core"
)

func (app *App) registerEventHandlers() {
	app.events.On(core.JoinChatEvent, app.JoinChatHandler)
	app.events.On(core.LeaveChatEvent, app.LeaveChatHandler)
	app.events.On(core.NewMessageEvent, app.NewMessageHandler)
	app.events.On(core.TypingEvent, app.TypingHandler(true))
	app.events.On(core.StopTypingEvent, app.TypingHandler(false))
	app.events.On(core.MessageDeliveredEvent, app.MessageDeliveredHandler)
	app.events.On(core.MessageReadEvent, app.MessageReadHandler)
	app.events.On(core.MessageReactionEvent, app.MessageReactionHandler)
	app.events.On(core.UpdateStatusEvent, app.UpdateStatusHandler)

	app.events.On(core.CallUserEvent, decoded(app.calls.CallUser))
	app.events.On(core.AcceptCallEvent, decoded(app.calls.AcceptCall))
	app.events.On(core.RejectCallEvent, decoded(app.calls.RejectCall))
	app.events.On(core.EndCallEvent, decoded(app.calls.EndCall))
	app.events.On(core.JoinGroupCallEvent, decoded(app.calls.JoinGroupCall))
	app.events.On(core.LeaveGroupCallEvent, decoded(app.calls.LeaveGroupCall))
	app.events.On(core.NewPeerSignalEvent, decoded(app.calls.PeerSignal))
	app.events.On(core.ReturnPeerSignalEvent, decoded(app.calls.ReturnSignal))
}

// decoded adapts a handler taking a typed payload into an event handler.
func decoded[P any](h func(context.Context, *core.Conn, P) error) core.EventHandler {
	return func(ctx context.Context, c *core.Conn, e *core.Event) error {
		var payload P
		if err := core.DecodePayload(e, &payload); err != nil {
			return err
		}
		return h(ctx, c, payload)
	}
}

func (app *App) JoinChatHandler(ctx context.Context, c *core.Conn, e *core.Event) error {
	var payload core.ChatIDPayload
	if err := core.DecodePayload(e, &payload); err != nil {
		return err
	}
	return app.chats.JoinChat(ctx, c, payload.ChatID)
}

func (app *App) LeaveChatHandler(ctx context.Context, c *core.Conn, e *core.Event) error {
	var payload core.ChatIDPayload
	if err := core.DecodePayload(e, &payload); err != nil {
		return err
	}
	return app.chats.LeaveChat(ctx, c, payload.ChatID)
}

func (app *App) NewMessageHandler(ctx context.Context, c *core.Conn, e *core.Event) error {
	var input core.MessageCreateInput
	if err := core.DecodePayload(e, &input); err != nil {
		return err
	}
	_, err := app.pipeline.Send(ctx, c.User, input)
	return err
}

func (app *App) TypingHandler(typing bool) core.EventHandler {
	return func(ctx context.Context, c *core.Conn, e *core.Event) error {
		var payload core.ChatIDPayload
		if err := core.DecodePayload(e, &payload); err != nil {
			return err
		}
		return app.typing.Typing(ctx, c, payload.ChatID, typing)
	}
}

func (app *App) MessageDeliveredHandler(ctx context.Context, c *core.Conn, e *core.Event) error {
	var payload core.MessageIDPayload
	if err := core.DecodePayload(e, &payload); err != nil {
		return err
	}
	return app.receipts.MarkDelivered(ctx, c.User, payload.MessageID)
}

func (app *App) MessageReadHandler(ctx context.Context, c *core.Conn, e *core.Event) error {
	var payload core.MessageIDPayload
	if err := core.DecodePayload(e, &payload); err != nil {
		return err
	}
	return app.receipts.MarkRead(ctx, c.User, payload.MessageID)
}

func (app *App) MessageReactionHandler(ctx context.Context, c *core.Conn, e *core.Event) error {
	var payload core.ReactionPayload
	if err := core.DecodePayload(e, &payload); err != nil {
		return err
	}
	_, err := app.reactions.Toggle(ctx, c.User, payload)
	return err
}

func (app *App) UpdateStatusHandler(ctx context.Context, c *core.Conn, e *core.Event) error {
	var payload core.StatusPayload
	if err := core.DecodePayload(e, &payload); err != nil {
		return err
	}
	return app.presence.SetStatus(ctx, c.User, payload.Status)
}
