package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-console/internal/adapters/memstore"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	mockauth "github.com/target/mmk-console/internal/mocks/auth"
	"github.com/target/mmk-console/internal/navigation"
	"github.com/target/mmk-console/internal/ports"
)

type providerFixture struct {
	storage  *memstore.Store
	creds    *CredentialStore
	auth     *mockauth.MockAuthClient
	nav      *mockauth.RecordingNavigator
	router   *navigation.Router
	provider *SessionProvider
}

func newProviderFixture(t *testing.T, seed map[string]string) *providerFixture {
	t.Helper()

	f := &providerFixture{
		storage: memstore.New(seed),
		auth:    mockauth.NewMockAuthClient(),
		nav:     &mockauth.RecordingNavigator{},
		router: navigation.NewRouter(navigation.RouterOptions{
			Routes:  navigation.DefaultRoutes("/signin", "/dashboard"),
			Session: DefaultCapability(),
		}),
	}
	f.creds = NewCredentialStore(CredentialStoreOptions{Storage: f.storage})

	var err error
	f.provider, err = NewSessionProvider(context.Background(), SessionProviderOptions{
		Credentials: f.creds,
		Storage:     f.storage,
		Auth:        f.auth,
		Router:      f.router,
		Navigator:   f.nav,
	})
	require.NoError(t, err)
	t.Cleanup(f.provider.Close)
	return f
}

func encodedPrincipal(t *testing.T, p domainauth.Principal) string {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return string(raw)
}

// assertAtomic checks that token and principal are both present or both absent, in
// memory and in durable storage.
func assertAtomic(t *testing.T, f *providerFixture) {
	t.Helper()
	c := f.provider.Capability()
	assert.Equal(t, c.Token() != "", c.User() != nil, "published token and principal diverged")

	snap := f.storage.Snapshot()
	_, hasToken := snap[KeyAccessToken]
	_, hasUser := snap[KeyAuthUser]
	assert.Equal(t, hasToken, hasUser, "persisted token and principal diverged")
}

func TestNewSessionProvider_Validation(t *testing.T) {
	_, err := NewSessionProvider(context.Background(), SessionProviderOptions{})
	require.Error(t, err)
	_, err = NewSessionProvider(context.Background(), SessionProviderOptions{
		Credentials: NewCredentialStore(CredentialStoreOptions{}),
	})
	require.Error(t, err)
}

func TestDefaultCapability(t *testing.T) {
	c := DefaultCapability()
	ctx := context.Background()

	assert.False(t, c.IsAuthenticated())
	assert.Empty(t, c.Token())
	assert.Nil(t, c.User())
	assert.ErrorIs(t, c.SignIn(ctx, domainauth.SignInRequest{}), ErrSessionNotInitialized)
	_, err := c.Register(ctx, domainauth.RegisterRequest{})
	assert.ErrorIs(t, err, ErrSessionNotInitialized)
	assert.ErrorIs(t, c.SignOut(ctx), ErrSessionNotInitialized)
}

func TestSessionProvider_SignIn(t *testing.T) {
	f := newProviderFixture(t, map[string]string{KeyLegacyAccessToken: ""})
	ctx := context.Background()

	require.NoError(t, f.provider.Capability().SignIn(ctx, domainauth.SignInRequest{Email: "a@b.c", Password: "pw"}))

	c := f.provider.Capability()
	assert.True(t, c.IsAuthenticated())
	assert.Equal(t, "mock-token-1", c.Token())
	require.NotNil(t, c.User())
	assert.Equal(t, "mock-user-1", c.User().ID)

	snap := f.storage.Snapshot()
	assert.Equal(t, "mock-token-1", snap[KeyAccessToken])
	assert.Equal(t, "true", snap[KeyAuthenticated])
	assert.JSONEq(t, encodedPrincipal(t, f.auth.User), snap[KeyAuthUser])
	assert.NotContains(t, snap, KeyLegacyAccessToken)

	assert.Same(t, c, f.router.Session())
	assertAtomic(t, f)
}

func TestSessionProvider_SignInFailureKeepsAnonymous(t *testing.T) {
	f := newProviderFixture(t, nil)
	f.auth.SignInFunc = func(context.Context, domainauth.SignInRequest) (domainauth.SignInResponse, error) {
		return domainauth.SignInResponse{}, errors.New("bad creds")
	}

	err := f.provider.SignIn(context.Background(), domainauth.SignInRequest{Email: "a@b.c", Password: "x"})
	require.EqualError(t, err, "bad creds")
	assert.False(t, f.provider.Capability().IsAuthenticated())
	assert.Empty(t, f.storage.Snapshot())
}

func TestSessionProvider_RegisterDoesNotSignIn(t *testing.T) {
	f := newProviderFixture(t, nil)

	p, err := f.provider.Register(context.Background(), domainauth.RegisterRequest{Email: "n@b.c", Password: "pw", Name: "N"})
	require.NoError(t, err)
	assert.Equal(t, "n@b.c", p.Email)
	assert.False(t, f.provider.Capability().IsAuthenticated())
	assert.Zero(t, f.auth.SignInCalls())
}

func TestSessionProvider_SignOut(t *testing.T) {
	f := newProviderFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.provider.SignIn(ctx, domainauth.SignInRequest{Email: "a@b.c", Password: "pw"}))

	require.NoError(t, f.provider.Capability().SignOut(ctx))

	c := f.provider.Capability()
	assert.False(t, c.IsAuthenticated())
	assert.Nil(t, c.User())
	assert.Empty(t, f.storage.Snapshot())
	assert.Equal(t, []string{"/signin"}, f.nav.Paths())
	assertAtomic(t, f)
}

func TestSessionProvider_FollowsExternalTokenChange(t *testing.T) {
	f := newProviderFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.provider.SignIn(ctx, domainauth.SignInRequest{Email: "a@b.c", Password: "pw"}))
	user := f.provider.Capability().User()

	f.creds.Set(ctx, "renewed")

	c := f.provider.Capability()
	assert.Equal(t, "renewed", c.Token())
	assert.Equal(t, user, c.User())
	assert.Same(t, c, f.router.Session())
	assertAtomic(t, f)
}

func TestSessionProvider_IdempotentRepublication(t *testing.T) {
	f := newProviderFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.provider.SignIn(ctx, domainauth.SignInRequest{Email: "a@b.c", Password: "pw"}))
	_, err := f.router.Load("/products")
	require.NoError(t, err)

	before := f.provider.Capability()
	updates := f.router.Updates()

	f.creds.Set(ctx, before.Token())

	assert.Same(t, before, f.provider.Capability())
	assert.Equal(t, updates, f.router.Updates())
}

func TestSessionProvider_RepublishesIntoEveryMatch(t *testing.T) {
	f := newProviderFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.provider.SignIn(ctx, domainauth.SignInRequest{Email: "a@b.c", Password: "pw"}))

	_, err := f.router.Load("/products")
	require.NoError(t, err)
	_, err = f.router.Load("/users")
	require.NoError(t, err)
	require.NotEmpty(t, f.router.Cached())

	f.creds.Set(ctx, "renewed")
	published := f.provider.Capability()

	for _, m := range append(f.router.Current(), f.router.Cached()...) {
		assert.Same(t, published, m.Session.(*Capability), "match %s", m.ID)
	}

	// A second publish of the same capability touches nothing.
	updates := f.router.Updates()
	f.provider.publish()
	assert.Equal(t, updates, f.router.Updates())
}

func TestSessionProvider_ExternalClearDropsPrincipal(t *testing.T) {
	f := newProviderFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.provider.SignIn(ctx, domainauth.SignInRequest{Email: "a@b.c", Password: "pw"}))

	f.creds.Clear(ctx)

	c := f.provider.Capability()
	assert.False(t, c.IsAuthenticated())
	assert.Nil(t, c.User())
	assert.NotContains(t, f.storage.Snapshot(), KeyAuthUser)
	assert.Empty(t, f.nav.Paths())
	assertAtomic(t, f)
}

func TestSessionProvider_TokenWithoutPrincipalIsRejected(t *testing.T) {
	f := newProviderFixture(t, nil)
	ctx := context.Background()

	f.creds.Set(ctx, "orphan")

	_, ok := f.creds.Get(ctx)
	assert.False(t, ok)
	assert.False(t, f.provider.Capability().IsAuthenticated())
	assertAtomic(t, f)
}

func TestSessionProvider_Restore(t *testing.T) {
	principal := domainauth.Principal{ID: "u1", Email: "a@b.c", Name: "Ann"}

	t.Run("token and principal", func(t *testing.T) {
		f := newProviderFixture(t, map[string]string{
			KeyAccessToken: "tok",
			KeyAuthUser:    encodedPrincipal(t, principal),
		})
		c := f.provider.Capability()
		assert.Equal(t, "tok", c.Token())
		assert.Equal(t, &principal, c.User())
	})

	t.Run("legacy token and principal", func(t *testing.T) {
		f := newProviderFixture(t, map[string]string{
			KeyLegacyAccessToken: "old",
			KeyAuthUser:          encodedPrincipal(t, principal),
		})
		assert.Equal(t, "old", f.provider.Capability().Token())
		assert.Equal(t, "old", f.storage.Snapshot()[KeyAccessToken])
	})

	t.Run("token without principal", func(t *testing.T) {
		f := newProviderFixture(t, map[string]string{KeyAccessToken: "tok", KeyAuthenticated: "true"})
		assert.False(t, f.provider.Capability().IsAuthenticated())
		assert.Empty(t, f.storage.Snapshot())
	})

	t.Run("principal without token", func(t *testing.T) {
		f := newProviderFixture(t, map[string]string{KeyAuthUser: encodedPrincipal(t, principal)})
		assert.Nil(t, f.provider.Capability().User())
		assert.Empty(t, f.storage.Snapshot())
	})

	t.Run("malformed principal", func(t *testing.T) {
		f := newProviderFixture(t, map[string]string{KeyAccessToken: "tok", KeyAuthUser: "{not json"})
		assert.False(t, f.provider.Capability().IsAuthenticated())
		assert.Empty(t, f.storage.Snapshot())
	})
}

func TestSessionProvider_StorageFailuresDoNotFailSignIn(t *testing.T) {
	store := mockauth.NewFlakyStore(nil)
	store.SetFailures(true)
	creds := NewCredentialStore(CredentialStoreOptions{Storage: store})
	provider, err := NewSessionProvider(context.Background(), SessionProviderOptions{
		Credentials: creds,
		Storage:     store,
		Auth:        mockauth.NewMockAuthClient(),
	})
	require.NoError(t, err)
	defer provider.Close()

	require.NoError(t, provider.SignIn(context.Background(), domainauth.SignInRequest{Email: "a@b.c", Password: "pw"}))
	assert.True(t, provider.Capability().IsAuthenticated())
}

func TestSessionProvider_AtomicAcrossSequences(t *testing.T) {
	f := newProviderFixture(t, nil)
	ctx := context.Background()
	signIn := func() {
		require.NoError(t, f.provider.SignIn(ctx, domainauth.SignInRequest{Email: "a@b.c", Password: "pw"}))
	}

	steps := []func(){
		signIn,
		func() { f.creds.Set(ctx, "renewed-1") },
		func() { f.creds.Set(ctx, "renewed-1") },
		func() { require.NoError(t, f.provider.SignOut(ctx)) },
		func() { f.creds.Set(ctx, "stray") },
		signIn,
		func() { f.creds.Clear(ctx) },
		func() { f.creds.Clear(ctx) },
		signIn,
		func() { f.creds.Set(ctx, "renewed-2") },
	}
	for _, step := range steps {
		step()
		assertAtomic(t, f)
	}
	assert.Equal(t, "renewed-2", f.provider.Capability().Token())
}

func TestCapability_SatisfiesSession(t *testing.T) {
	var s ports.Session = DefaultCapability()
	assert.False(t, s.IsAuthenticated())
}
