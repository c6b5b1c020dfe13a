// Package navigation keeps the guard contexts the session is published into and
// evaluates route guards when a location loads.
package navigation

import (
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	apperrors "github.com/target/mmk-console/internal/errors"
	"github.com/target/mmk-console/internal/ports"
)

// RootMatchID identifies the layout match present on every location.
const RootMatchID = "__root__"

const (
	maxRedirects   = 5
	maxCachedMatch = 16
)

// Route binds a path to an optional guard.
type Route struct {
	Path  string
	Guard Guard
}

// DefaultRoutes returns the console's route table.
func DefaultRoutes(signInPath, homePath string) []Route {
	session := RequireSession(signInPath)
	anonymous := RequireAnonymous(homePath)
	return []Route{
		{Path: "/", Guard: IndexRedirect(homePath, signInPath)},
		{Path: signInPath, Guard: anonymous},
		{Path: "/signup", Guard: anonymous},
		{Path: homePath, Guard: session},
		{Path: "/products", Guard: session},
		{Path: "/users", Guard: session},
		{Path: "/profile", Guard: session},
		{Path: "/admin/users", Guard: session},
		{Path: "/orders", Guard: session},
		{Path: "/analytics", Guard: session},
		{Path: "/analytics/overview", Guard: session},
		{Path: "/analytics/reports", Guard: session},
		{Path: "/analytics/realtime", Guard: session},
		{Path: "/settings", Guard: session},
		{Path: "/support", Guard: session},
	}
}

// Match is one loaded route and the session its guards and consumers read.
type Match struct {
	ID      string
	Path    string
	Session ports.Session
}

// RouterOptions groups dependencies for Router.
type RouterOptions struct {
	Routes []Route
	// Session seeds the root context before a provider publishes.
	Session ports.Session
	Logger  *slog.Logger
}

// Router is an in-memory route registry with current, pending, and cached matches.
type Router struct {
	logger *slog.Logger
	routes map[string]Route

	mu       sync.Mutex
	root     ports.Session
	location string
	current  []*Match
	pending  []*Match
	cached   []*Match
	updates  int
}

var (
	_ ports.GuardRouter = (*Router)(nil)
	_ ports.Navigator   = (*Router)(nil)
)

// NewRouter constructs a Router.
func NewRouter(opts RouterOptions) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	routes := make(map[string]Route, len(opts.Routes))
	for _, rt := range opts.Routes {
		routes[rt.Path] = rt
	}
	return &Router{
		logger: logger.With("component", "router"),
		routes: routes,
		root:   opts.Session,
	}
}

// SetSession replaces the root context's session.
func (r *Router) SetSession(s ports.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.root = s
}

// Session returns the root context's session.
func (r *Router) Session() ports.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.root
}

// MatchIDs lists current, pending, and cached match ids without duplicates.
func (r *Router) MatchIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{})
	var ids []string
	for _, set := range [][]*Match{r.current, r.pending, r.cached} {
		for _, m := range set {
			if _, ok := seen[m.ID]; ok {
				continue
			}
			seen[m.ID] = struct{}{}
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// UpdateMatch applies fn to every match with id. A match whose session fn returns
// unchanged is left alone.
func (r *Router) UpdateMatch(id string, fn func(prev ports.Session) ports.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, set := range [][]*Match{r.current, r.pending, r.cached} {
		for _, m := range set {
			if m.ID != id {
				continue
			}
			next := fn(m.Session)
			if next == m.Session {
				continue
			}
			m.Session = next
			r.updates++
		}
	}
}

// Updates counts match context replacements since construction.
func (r *Router) Updates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}

// Current returns copies of the current matches.
func (r *Router) Current() []Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Match, 0, len(r.current))
	for _, m := range r.current {
		out = append(out, *m)
	}
	return out
}

// Cached returns copies of the cached matches.
func (r *Router) Cached() []Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Match, 0, len(r.cached))
	for _, m := range r.cached {
		out = append(out, *m)
	}
	return out
}

// Location returns the href of the last committed load.
func (r *Router) Location() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location
}

// Load resolves href through route guards, following redirects, and commits the final
// location. It returns the committed href.
func (r *Router) Load(href string) (string, error) {
	for hop := 0; hop <= maxRedirects; hop++ {
		u, err := url.Parse(href)
		if err != nil {
			return "", apperrors.Wrapf(err, apperrors.ErrCodeValidation, "parse location %q", href)
		}
		route, ok := r.routes[u.Path]
		if !ok {
			return "", apperrors.NotFound(fmt.Sprintf("no route for %s", u.Path))
		}

		session := r.beginPending(route)
		if route.Guard != nil {
			if redirect := route.Guard(GuardInput{Session: session, Href: href}); redirect != nil {
				r.abortPending()
				r.logger.Debug("route redirected", "from", href, "to", redirect.To)
				href = redirect.Href()
				continue
			}
		}

		r.commit(href)
		return href, nil
	}
	r.abortPending()
	return "", apperrors.Internal(fmt.Sprintf("too many redirects loading %s", href))
}

// Navigate performs a full navigation: every match is discarded before path loads.
func (r *Router) Navigate(path string) {
	r.mu.Lock()
	r.current, r.pending, r.cached = nil, nil, nil
	r.mu.Unlock()

	if _, err := r.Load(path); err != nil {
		r.logger.Warn("navigation failed", "path", path, "error", err)
	}
}

func (r *Router) beginPending(route Route) ports.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = []*Match{
		{ID: RootMatchID, Path: "/", Session: r.root},
		{ID: route.Path, Path: route.Path, Session: r.root},
	}
	return r.root
}

func (r *Router) abortPending() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = nil
}

func (r *Router) commit(href string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.pending
	r.pending = nil

	keep := make(map[string]struct{}, len(next))
	for _, m := range next {
		keep[m.ID] = struct{}{}
	}
	previous := append(append([]*Match(nil), r.current...), r.cached...)
	var cached []*Match
	for _, m := range previous {
		if _, ok := keep[m.ID]; ok {
			continue
		}
		keep[m.ID] = struct{}{}
		cached = append(cached, m)
		if len(cached) == maxCachedMatch {
			break
		}
	}

	r.current = next
	r.cached = cached
	r.location = href
}
