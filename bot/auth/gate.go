// Package auth decides, before dispatch, whether an inbound event may reach
// the conversation engine or must be redirected to the registration flow.
package auth

import (
	"context"
	"log/slog"

	"github.com/vexa-ai/vexabot/bot/users"
	"github.com/vexa-ai/vexabot/core/dialog"
	"github.com/vexa-ai/vexabot/core/logger"
)

// Resolver looks an identity up by Telegram user ID. (nil, nil) means the
// user is not registered.
type Resolver interface {
	Resolve(ctx context.Context, telegramID int64) (*users.Identity, error)
}

// Decision is the outcome of a gate check.
type Decision struct {
	// Identity is set when the user is registered. It is nil for exempt
	// commands handled before resolution and for redirected users.
	Identity *users.Identity

	// RedirectTo, when non-empty, names the flow the session must be reset
	// to instead of dispatching the original event.
	RedirectTo dialog.FlowID
}

// Allowed reports whether the event may proceed to dispatch.
func (d Decision) Allowed() bool { return d.RedirectTo == "" }

// Gate guards dispatch behind account resolution.
type Gate struct {
	resolver Resolver
	redirect dialog.FlowID
	exempt   map[string]struct{}
}

// NewGate builds a gate that redirects unresolved users to the given flow.
// Exempt commands bypass resolution entirely; the bootstrap command belongs
// here so a fresh user can always reach the bot.
func NewGate(resolver Resolver, redirect dialog.FlowID, exemptCommands ...string) *Gate {
	exempt := make(map[string]struct{}, len(exemptCommands))
	for _, cmd := range exemptCommands {
		exempt[cmd] = struct{}{}
	}
	return &Gate{resolver: resolver, redirect: redirect, exempt: exempt}
}

// Check resolves the sender and decides whether the event passes. Resolution
// failures are returned as errors: an unreachable database must not be
// mistaken for an unregistered user.
func (g *Gate) Check(ctx context.Context, telegramID int64, ev dialog.Event) (Decision, error) {
	if ev.Kind == dialog.EventCommand {
		if _, ok := g.exempt[ev.Command]; ok {
			return Decision{}, nil
		}
	}

	identity, err := g.resolver.Resolve(ctx, telegramID)
	if err != nil {
		return Decision{}, err
	}
	if identity == nil {
		logger.Debug(ctx, "auth", "gate.redirect",
			slog.Int64("telegram_id", telegramID),
			slog.String("flow", string(g.redirect)),
		)
		return Decision{RedirectTo: g.redirect}, nil
	}
	return Decision{Identity: identity}, nil
}
