// Package telegram adapts Telegram updates to conversation events and
// renders the engine's screens back as messages with inline keyboards.
package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/vexa-ai/vexabot/bot/auth"
	"github.com/vexa-ai/vexabot/bot/dialogs"
	"github.com/vexa-ai/vexabot/core/dialog"
	"github.com/vexa-ai/vexabot/core/logger"
)

const fallbackReply = "Something went wrong. Please try again."

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// Adapter bridges Telebot updates into the conversation engine.
type Adapter struct {
	engine *dialog.Engine
	gate   *auth.Gate
}

// NewAdapter wires the engine behind the auth gate.
func NewAdapter(engine *dialog.Engine, gate *auth.Gate) *Adapter {
	return &Adapter{engine: engine, gate: gate}
}

// Routes returns the bot endpoints the adapter serves.
func (a *Adapter) Routes() []Route {
	return []Route{
		{Endpoint: dialogs.CmdStart, Handler: a.onText},
		{Endpoint: tele.OnText, Handler: a.onText},
		{Endpoint: tele.OnCallback, Handler: a.onCallback},
	}
}

func (a *Adapter) onText(c tele.Context) error {
	text := strings.TrimSpace(c.Text())
	if text == "" {
		return nil
	}
	var ev dialog.Event
	if strings.HasPrefix(text, "/") {
		command, _, _ := strings.Cut(text, " ")
		// Strip the @botname suffix used in group chats.
		command, _, _ = strings.Cut(command, "@")
		ev = dialog.CommandEvent(command)
	} else {
		ev = dialog.TextEvent(text)
	}
	return a.handle(c, ev)
}

func (a *Adapter) onCallback(c tele.Context) error {
	action, payload := parseCallback(c.Callback())
	if action == "" {
		return c.Respond(&tele.CallbackResponse{})
	}
	return a.handle(c, dialog.ActionEvent(action, payload))
}

func (a *Adapter) handle(c tele.Context, ev dialog.Event) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	ctx := requestContext(c)
	ctx = auth.WithSender(ctx, auth.Sender{
		ID:       sender.ID,
		Username: sender.Username,
		FullName: strings.TrimSpace(strings.TrimSpace(sender.FirstName) + " " + strings.TrimSpace(sender.LastName)),
	})

	decision, err := a.gate.Check(ctx, sender.ID, ev)
	if err != nil {
		logger.Error(ctx, "tg", "gate.fail",
			slog.Int64("user_id", sender.ID),
			slog.String("err", err.Error()),
		)
		return a.reply(c, &dialog.RenderRequest{Error: fallbackReply})
	}
	if !decision.Allowed() {
		active, err := a.engine.ActiveFlow(ctx, sender.ID)
		if err != nil {
			return a.failed(ctx, c, err)
		}
		if active != decision.RedirectTo {
			rr, err := a.engine.Start(ctx, sender.ID, decision.RedirectTo, nil)
			if err != nil {
				return a.failed(ctx, c, err)
			}
			return a.reply(c, rr)
		}
		// The user is already inside the redirect flow, e.g. typing their
		// email at the registration prompt. The event belongs to that flow.
	}
	if decision.Identity != nil {
		ctx = auth.WithIdentity(ctx, decision.Identity)
	}

	rr, err := a.engine.Dispatch(ctx, sender.ID, ev)
	if errors.Is(err, dialog.ErrEmptyStack) {
		// No active conversation for this event. Bootstrap the session
		// as /start would instead of surfacing an error.
		flow := dialogs.FlowAuth
		if decision.Identity != nil {
			flow = dialogs.FlowMainMenu
		}
		rr, err = a.engine.Start(ctx, sender.ID, flow, nil)
	}
	if err != nil {
		return a.failed(ctx, c, err)
	}
	if rr == nil {
		// Deliberately ignored input.
		return nil
	}
	return a.reply(c, rr)
}

func (a *Adapter) failed(ctx context.Context, c tele.Context, err error) error {
	logger.Error(ctx, "tg", "dispatch.fail",
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
	return a.reply(c, &dialog.RenderRequest{Error: fallbackReply})
}

// reply renders the screen. Callback updates edit the originating message in
// place; everything else sends a new one.
func (a *Adapter) reply(c tele.Context, rr *dialog.RenderRequest) error {
	text := formatMessage(rr)
	markup := buildKeyboard(rr.Actions)

	var opts []any
	if markup != nil {
		opts = append(opts, markup)
	}

	if c.Callback() != nil {
		_ = c.Respond(&tele.CallbackResponse{})
		return c.EditOrSend(text, opts...)
	}
	return c.Send(text, opts...)
}
