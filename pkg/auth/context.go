package auth

import (
	"context"
)

// contextKey is an unexported type used for context keys in this package.
// Using a distinct type prevents collisions with keys from other packages.
type contextKey int

const (
	// identityKey stores the resolved identity in the context.
	identityKey contextKey = iota
)

// ContextWithIdentity returns a new context with the given identity
// attached. The identity can later be retrieved with [IdentityFromContext].
//
// This is typically called by the HTTP middleware and gRPC interceptors
// after successful authentication.
func ContextWithIdentity(ctx context.Context, identity *ResolvedIdentity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext retrieves the identity from the context. Returns the
// identity and true if present, or nil and false if no identity has been
// set. This function never returns a non-nil identity with false.
func IdentityFromContext(ctx context.Context) (*ResolvedIdentity, bool) {
	identity, ok := ctx.Value(identityKey).(*ResolvedIdentity)
	return identity, ok
}

// MustIdentityFromContext retrieves the identity from the context, panicking
// if none is present. Use only in code paths that run strictly after the
// authentication middleware.
func MustIdentityFromContext(ctx context.Context) *ResolvedIdentity {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		panic("auth: no identity in context; ensure authentication middleware is configured")
	}
	return identity
}
