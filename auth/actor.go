package auth

import (
	"context"

	"github.com/warp/bottle-ledger/ledger"
)

// Actor is the authenticated caller of a ledger operation.
type Actor struct {
	ID   string
	Role ledger.Role
	Name string
}

func (a Actor) IsAdmin() bool { return a.Role == ledger.RoleAdmin }

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the caller, if the request was authenticated.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}
