package navigation

import (
	"net/url"

	"github.com/target/mmk-console/internal/ports"
)

// Redirect tells the router to load another location instead.
type Redirect struct {
	To     string
	Search url.Values
}

// Href renders the redirect target with its query string.
func (r Redirect) Href() string {
	if len(r.Search) == 0 {
		return r.To
	}
	return r.To + "?" + r.Search.Encode()
}

// GuardInput is what a guard sees when a route is about to load.
type GuardInput struct {
	Session ports.Session
	// Href is the full location being loaded, including its query.
	Href string
}

// Guard returns a redirect to block the load, or nil to allow it.
type Guard func(in GuardInput) *Redirect

// RequireSession sends anonymous visitors to signInPath, remembering where they were going.
func RequireSession(signInPath string) Guard {
	return func(in GuardInput) *Redirect {
		if authenticated(in.Session) {
			return nil
		}
		return &Redirect{To: signInPath, Search: url.Values{"redirect": []string{in.Href}}}
	}
}

// RequireAnonymous sends visitors that already hold a token to homePath.
func RequireAnonymous(homePath string) Guard {
	return func(in GuardInput) *Redirect {
		if in.Session != nil && in.Session.Token() != "" {
			return &Redirect{To: homePath}
		}
		return nil
	}
}

// IndexRedirect always redirects: home with a session, sign-in without.
func IndexRedirect(homePath, signInPath string) Guard {
	return func(in GuardInput) *Redirect {
		if authenticated(in.Session) {
			return &Redirect{To: homePath}
		}
		return &Redirect{To: signInPath}
	}
}

func authenticated(s ports.Session) bool {
	return s != nil && s.IsAuthenticated()
}
