package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	domainauth "github.com/target/mmk-console/internal/domain/auth"
	"github.com/target/mmk-console/internal/observability/metrics"
	"github.com/target/mmk-console/internal/observability/statsd"
	"github.com/target/mmk-console/internal/ports"
)

// ErrSessionNotInitialized is returned by the default capability's operations.
var ErrSessionNotInitialized = errors.New("auth context not initialized")

// Session transitions reported to metrics.
const (
	TransitionSignedIn  = "signed_in"
	TransitionSignedOut = "signed_out"
	TransitionExpired   = "expired"
)

// AuthClient calls the unauthenticated auth endpoints.
type AuthClient interface {
	SignIn(ctx context.Context, in domainauth.SignInRequest) (domainauth.SignInResponse, error)
	Register(ctx context.Context, in domainauth.RegisterRequest) (domainauth.Principal, error)
}

// Capability is an immutable snapshot of the session plus the operations that change it.
// A new Capability is built only when the token or principal changes.
type Capability struct {
	token    string
	user     *domainauth.Principal
	provider *SessionProvider
}

var _ ports.Session = (*Capability)(nil)

// DefaultCapability is the anonymous placeholder consumers see before a provider exists.
// Its operations fail with ErrSessionNotInitialized.
func DefaultCapability() *Capability { return &Capability{} }

func (c *Capability) IsAuthenticated() bool { return c.token != "" }

func (c *Capability) Token() string { return c.token }

func (c *Capability) User() *domainauth.Principal {
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

func (c *Capability) SignIn(ctx context.Context, in domainauth.SignInRequest) error {
	if c.provider == nil {
		return ErrSessionNotInitialized
	}
	return c.provider.SignIn(ctx, in)
}

func (c *Capability) Register(ctx context.Context, in domainauth.RegisterRequest) (domainauth.Principal, error) {
	if c.provider == nil {
		return domainauth.Principal{}, ErrSessionNotInitialized
	}
	return c.provider.Register(ctx, in)
}

func (c *Capability) SignOut(ctx context.Context) error {
	if c.provider == nil {
		return ErrSessionNotInitialized
	}
	return c.provider.SignOut(ctx)
}

// SessionProviderOptions groups dependencies for SessionProvider.
type SessionProviderOptions struct {
	Credentials *CredentialStore
	// Storage persists the principal under KeyAuthUser. Usually the store behind Credentials.
	Storage ports.KeyValueStore
	Auth    AuthClient
	// Router receives every published capability. Optional.
	Router ports.GuardRouter
	// Navigator performs the post sign-out navigation. Optional.
	Navigator  ports.Navigator
	SignInPath string
	Logger     *slog.Logger
	Metrics    statsd.Sink
}

// SessionProvider keeps the published Capability consistent with the CredentialStore,
// including token changes it did not initiate, and pushes it into every guard context.
type SessionProvider struct {
	creds      *CredentialStore
	storage    storageGuard
	auth       AuthClient
	router     ports.GuardRouter
	navigator  ports.Navigator
	signInPath string
	logger     *slog.Logger
	metrics    statsd.Sink

	mu      sync.Mutex
	current *Capability

	publishMu   sync.Mutex
	unsubscribe func()
}

// NewSessionProvider restores any persisted session, subscribes to the credential store,
// and publishes the initial capability. A persisted token without a principal (or the
// reverse) is discarded.
func NewSessionProvider(ctx context.Context, opts SessionProviderOptions) (*SessionProvider, error) {
	if opts.Credentials == nil {
		return nil, errors.New("credential store is required")
	}
	if opts.Auth == nil {
		return nil, errors.New("auth client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "session_provider")
	signInPath := opts.SignInPath
	if signInPath == "" {
		signInPath = "/signin"
	}

	p := &SessionProvider{
		creds:      opts.Credentials,
		storage:    storageGuard{kv: opts.Storage, logger: logger},
		auth:       opts.Auth,
		router:     opts.Router,
		navigator:  opts.Navigator,
		signInPath: signInPath,
		logger:     logger,
		metrics:    opts.Metrics,
	}

	p.current = p.restore(ctx)
	listenCtx := context.WithoutCancel(ctx)
	p.unsubscribe = p.creds.Subscribe(func(string, bool) {
		p.onTokenChange(listenCtx)
	})
	p.publish()
	return p, nil
}

func (p *SessionProvider) restore(ctx context.Context) *Capability {
	token, hasToken := p.creds.Get(ctx)
	user := p.loadPrincipal(ctx)

	switch {
	case hasToken && user != nil:
		return &Capability{token: token, user: user, provider: p}
	case hasToken:
		p.logger.InfoContext(ctx, "discarding persisted token without principal")
		p.creds.Clear(ctx)
	case user != nil:
		p.logger.InfoContext(ctx, "discarding persisted principal without token")
		p.storage.remove(ctx, KeyAuthUser)
	}
	return &Capability{provider: p}
}

func (p *SessionProvider) loadPrincipal(ctx context.Context) *domainauth.Principal {
	raw, ok := p.storage.get(ctx, KeyAuthUser)
	if !ok {
		return nil
	}
	var user domainauth.Principal
	if err := json.Unmarshal([]byte(raw), &user); err != nil || user.IsZero() {
		p.logger.DebugContext(ctx, "discarding malformed persisted principal")
		p.storage.remove(ctx, KeyAuthUser)
		return nil
	}
	return &user
}

// Capability returns the currently published capability.
func (p *SessionProvider) Capability() *Capability {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Close stops following credential store changes.
func (p *SessionProvider) Close() {
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
}

// SignIn authenticates and stores token and principal together. Legacy token keys are
// removed.
func (p *SessionProvider) SignIn(ctx context.Context, in domainauth.SignInRequest) error {
	res, err := p.auth.SignIn(ctx, in)
	if err != nil {
		return err
	}

	user := res.User
	encoded, err := json.Marshal(user)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.current = &Capability{token: res.Token, user: &user, provider: p}
	p.mu.Unlock()

	// Principal first so durable storage never holds a token without one.
	p.storage.set(ctx, KeyAuthUser, string(encoded))
	p.creds.Set(ctx, res.Token)
	p.storage.remove(ctx, KeyLegacyAccessToken)

	metrics.EmitSessionTransition(p.metrics, TransitionSignedIn)
	p.logger.InfoContext(ctx, "signed in", "user_id", user.ID)
	p.publish()
	return nil
}

// Register creates an account. It does not establish a session.
func (p *SessionProvider) Register(ctx context.Context, in domainauth.RegisterRequest) (domainauth.Principal, error) {
	return p.auth.Register(ctx, in)
}

// SignOut clears token and principal, then navigates to the sign-in entry point.
func (p *SessionProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.current = &Capability{provider: p}
	p.mu.Unlock()

	p.creds.Clear(ctx)
	p.storage.remove(ctx, KeyAuthUser)

	metrics.EmitSessionTransition(p.metrics, TransitionSignedOut)
	p.logger.InfoContext(ctx, "signed out")
	p.publish()

	if p.navigator != nil {
		p.navigator.Navigate(p.signInPath)
	}
	return nil
}

// onTokenChange follows store changes made elsewhere, such as by renewal. Concurrent
// writers may deliver notifications out of order, so the store's current value is
// read rather than the notified one.
func (p *SessionProvider) onTokenChange(ctx context.Context) {
	token, ok := p.creds.Get(ctx)

	p.mu.Lock()
	prev := p.current
	switch {
	case ok && token == prev.token:
		p.mu.Unlock()
		return
	case ok && prev.user == nil:
		p.mu.Unlock()
		p.logger.WarnContext(ctx, "token set without principal; clearing session")
		p.creds.Clear(ctx)
		return
	case ok:
		p.current = &Capability{token: token, user: prev.user, provider: p}
		p.mu.Unlock()
	case prev.token == "" && prev.user == nil:
		p.mu.Unlock()
		return
	default:
		p.current = &Capability{provider: p}
		p.mu.Unlock()
		p.storage.remove(ctx, KeyAuthUser)
		metrics.EmitSessionTransition(p.metrics, TransitionExpired)
		p.logger.InfoContext(ctx, "session cleared outside sign-out")
	}
	p.publish()
}

// publish pushes the current capability into the router's root context and every
// current, pending, and cached match. Matches already holding it are skipped.
func (p *SessionProvider) publish() {
	if p.router == nil {
		return
	}
	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	next := p.Capability()
	p.router.SetSession(next)
	for _, id := range p.router.MatchIDs() {
		p.router.UpdateMatch(id, func(prev ports.Session) ports.Session {
			if prev == ports.Session(next) {
				return prev
			}
			return next
		})
	}
}
