package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/target/mmk-console/internal/ports"
)

// Durable storage keys.
const (
	KeyAccessToken       = "accessToken"
	KeyLegacyAccessToken = "auth_token"
	KeyAuthenticated     = "isAuthenticated"
	KeyAuthUser          = "authUser"
)

// TokenListener receives the new token on Set (ok=true) and ok=false on Clear.
type TokenListener func(token string, ok bool)

// CredentialStoreOptions groups dependencies for CredentialStore.
type CredentialStoreOptions struct {
	Storage ports.KeyValueStore
	Logger  *slog.Logger
}

// CredentialStore is the single owner of the current session token. One instance is
// constructed per process and shared by reference.
type CredentialStore struct {
	storage storageGuard
	logger  *slog.Logger

	mu        sync.Mutex
	token     string
	loaded    bool
	nextID    uint64
	listeners []tokenSubscription
}

type tokenSubscription struct {
	id uint64
	fn TokenListener
}

// NewCredentialStore constructs a CredentialStore. A nil Storage keeps the token in memory only.
func NewCredentialStore(opts CredentialStoreOptions) *CredentialStore {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "credential_store")
	return &CredentialStore{
		storage: storageGuard{kv: opts.Storage, logger: logger},
		logger:  logger,
	}
}

// Get returns the current token, loading it from durable storage on first use. A token
// found only under the legacy key is moved to the current key.
func (s *CredentialStore) Get(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		s.token = s.load(ctx)
		s.loaded = true
	}
	return s.token, s.token != ""
}

// Token satisfies apiclient.TokenSource.
func (s *CredentialStore) Token(ctx context.Context) (string, bool) {
	return s.Get(ctx)
}

func (s *CredentialStore) load(ctx context.Context) string {
	if token, ok := s.storage.get(ctx, KeyAccessToken); ok {
		return token
	}
	legacy, ok := s.storage.get(ctx, KeyLegacyAccessToken)
	if !ok {
		return ""
	}
	s.storage.set(ctx, KeyAccessToken, legacy)
	s.storage.remove(ctx, KeyLegacyAccessToken)
	s.logger.DebugContext(ctx, "migrated legacy token key")
	return legacy
}

// Set stores token, marks the session authenticated, and notifies listeners. An empty
// token is treated as Clear.
func (s *CredentialStore) Set(ctx context.Context, token string) {
	if token == "" {
		s.Clear(ctx)
		return
	}

	s.mu.Lock()
	s.token = token
	s.loaded = true
	s.storage.set(ctx, KeyAccessToken, token)
	s.storage.set(ctx, KeyAuthenticated, "true")
	subs := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(ctx, subs, token, true)
}

// Clear removes the token and the authenticated flag and notifies listeners.
func (s *CredentialStore) Clear(ctx context.Context) {
	s.mu.Lock()
	s.token = ""
	s.loaded = true
	s.storage.remove(ctx, KeyAccessToken)
	s.storage.remove(ctx, KeyAuthenticated)
	subs := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(ctx, subs, "", false)
}

// Subscribe registers fn for every Set and Clear. The returned func unregisters it and
// is safe to call more than once.
func (s *CredentialStore) Subscribe(fn TokenListener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, tokenSubscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.listeners {
			if sub.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *CredentialStore) snapshotLocked() []tokenSubscription {
	if len(s.listeners) == 0 {
		return nil
	}
	return append([]tokenSubscription(nil), s.listeners...)
}

// notify runs listeners in registration order without holding the lock, so listeners
// may call back into the store.
func (s *CredentialStore) notify(ctx context.Context, subs []tokenSubscription, token string, ok bool) {
	for _, sub := range subs {
		s.invoke(ctx, sub, token, ok)
	}
}

func (s *CredentialStore) invoke(ctx context.Context, sub tokenSubscription, token string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WarnContext(ctx, "token listener panicked",
				"listener", sub.id,
				"error", fmt.Sprint(r))
		}
	}()
	sub.fn(token, ok)
}
