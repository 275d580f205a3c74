// Package authctx propagates the authenticated Identity through request contexts.
//
//	ctx = authctx.Set(ctx, identity)
//	id, ok := authctx.Get(ctx)
package authctx

import (
	"context"
	"errors"

	"github.com/kbukum/notify/auth"
)

// contextKey is an unexported type to prevent collisions with other packages.
type contextKey struct{}

var identityKey = contextKey{}

// ErrNoIdentity is returned when no identity is stored in the context.
var ErrNoIdentity = errors.New("authctx: no identity in context")

// Set stores the identity in the context.
func Set(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// Get retrieves the identity from the context.
func Get(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(auth.Identity)
	return id, ok
}

// GetOrError retrieves the identity or returns ErrNoIdentity.
func GetOrError(ctx context.Context) (auth.Identity, error) {
	id, ok := Get(ctx)
	if !ok {
		return auth.Identity{}, ErrNoIdentity
	}
	return id, nil
}

// MustGet retrieves the identity and panics when it is missing.
// Use in handlers behind the authentication middleware.
func MustGet(ctx context.Context) auth.Identity {
	id, ok := Get(ctx)
	if !ok {
		panic("authctx: identity not found in context")
	}
	return id
}
