package ports

import (
	"context"

	domainauth "github.com/target/mmk-console/internal/domain/auth"
)

// Session is the capability surface the session provider publishes to consumers.
// A published value is immutable; state changes publish a new value.
type Session interface {
	IsAuthenticated() bool
	// Token returns the session token, or "" when anonymous.
	Token() string
	// User returns the signed-in principal, or nil when anonymous.
	User() *domainauth.Principal
	SignIn(ctx context.Context, in domainauth.SignInRequest) error
	Register(ctx context.Context, in domainauth.RegisterRequest) (domainauth.Principal, error)
	SignOut(ctx context.Context) error
}

// GuardRouter holds the guard contexts a published Session must reach: the router's
// root context plus every current, pending, and cached match.
type GuardRouter interface {
	// SetSession replaces the session in the root context.
	SetSession(s Session)
	// MatchIDs lists the ids of all current, pending, and cached matches, deduplicated.
	MatchIDs() []string
	// UpdateMatch replaces the session of match id with the result of fn. Returning prev
	// leaves the match untouched.
	UpdateMatch(id string, fn func(prev Session) Session)
}

// Navigator performs full navigations that discard in-memory client state.
type Navigator interface {
	// Navigate replaces the current location with path.
	Navigate(path string)
}
