package auth

import (
	"context"

	"github.com/vexa-ai/vexabot/bot/users"
)

type identityKey struct{}
type senderKey struct{}

// Sender is the transport-level profile of the event's author.
type Sender struct {
	ID       int64
	Username string
	FullName string
}

// WithIdentity stores the resolved identity for downstream handlers.
func WithIdentity(ctx context.Context, id *users.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the resolved identity, or nil when the event passed
// the gate without resolution.
func IdentityFrom(ctx context.Context) *users.Identity {
	id, _ := ctx.Value(identityKey{}).(*users.Identity)
	return id
}

// WithSender stores the event author's profile.
func WithSender(ctx context.Context, s Sender) context.Context {
	return context.WithValue(ctx, senderKey{}, s)
}

// SenderFrom returns the event author's profile, zero when absent.
func SenderFrom(ctx context.Context) Sender {
	s, _ := ctx.Value(senderKey{}).(Sender)
	return s
}
