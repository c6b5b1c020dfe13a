package bootstrap

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-console/config"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	"github.com/target/mmk-console/internal/domain/model"
	"github.com/target/mmk-console/internal/observability/statsd"
	"github.com/target/mmk-console/internal/service"
	"github.com/target/mmk-console/internal/testutil"
)

func consoleConfig(baseURL string, storage config.StorageConfig) config.AppConfig {
	cfg := config.AppConfig{
		API:     config.APIConfig{BaseURL: baseURL, Timeout: 5 * time.Second, UserAgent: "mmk-console-test"},
		Storage: storage,
	}
	cfg.Routes.Sanitize()
	return cfg
}

func newTestConsole(t *testing.T, cfg config.AppConfig) *Console {
	t.Helper()
	c, err := NewConsole(context.Background(), ConsoleOptions{Config: cfg, Metrics: &statsd.Recorder{}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewConsole_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	srv := testutil.NewAPIServer(t)
	srv.AddUser("ada@example.com", "secret", "Ada", domainauth.RoleUser)

	c := newTestConsole(t, consoleConfig(srv.URL, config.StorageConfig{Backend: config.StorageBackendMemory}))

	assert.False(t, c.Session.Capability().IsAuthenticated())
	loc, err := c.Router.Load("/dashboard")
	require.NoError(t, err)
	assert.Equal(t, "/signin?redirect=%2Fdashboard", loc)

	require.NoError(t, c.Session.Capability().SignIn(ctx, domainauth.SignInRequest{
		Email:    "ada@example.com",
		Password: "secret",
	}))

	capability := c.Session.Capability()
	require.True(t, capability.IsAuthenticated())
	require.NotNil(t, capability.User())
	assert.Equal(t, "ada@example.com", capability.User().Email)

	loc, err = c.Router.Load("/dashboard")
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", loc)

	// an expired token is renewed transparently by the authenticated executor
	srv.ExpireToken(capability.Token())
	products, err := c.Products.List(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, 1, srv.RenewCalls())
	assert.NotEqual(t, capability.Token(), c.Session.Capability().Token())

	require.NoError(t, c.Session.Capability().SignOut(ctx))
	assert.False(t, c.Session.Capability().IsAuthenticated())
	assert.Equal(t, "/signin", c.Router.Location())

	_, ok, err := c.Storage.Get(ctx, service.KeyAccessToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewConsole_FileSessionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	srv := testutil.NewAPIServer(t)
	srv.AddUser("grace@example.com", "hopper", "Grace", domainauth.RoleAdmin)

	cfg := consoleConfig(srv.URL, config.StorageConfig{
		Backend:  config.StorageBackendFile,
		FilePath: filepath.Join(t.TempDir(), "session.json"),
	})

	first, err := NewConsole(ctx, ConsoleOptions{Config: cfg, Metrics: &statsd.Recorder{}})
	require.NoError(t, err)
	require.NoError(t, first.Session.Capability().SignIn(ctx, domainauth.SignInRequest{
		Email:    "grace@example.com",
		Password: "hopper",
	}))
	token := first.Session.Capability().Token()
	require.NoError(t, first.Close())

	second := newTestConsole(t, cfg)
	restored := second.Session.Capability()
	assert.True(t, restored.IsAuthenticated())
	assert.Equal(t, token, restored.Token())
	require.NotNil(t, restored.User())
	assert.Equal(t, "Grace", restored.User().Name)

	users, err := second.Users.ListAdminUsers(ctx, model.UserListOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, users)
}

func TestNewConsole_StorageOverride(t *testing.T) {
	srv := testutil.NewAPIServer(t)
	kv, closeFn, err := OpenStorage(StorageOptions{Storage: config.StorageConfig{Backend: config.StorageBackendMemory}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })
	require.NoError(t, kv.Set(context.Background(), service.KeyLegacyAccessToken, srv.IssueToken("nobody@example.com")))

	c, err := NewConsole(context.Background(), ConsoleOptions{
		Config:  consoleConfig(srv.URL, config.StorageConfig{Backend: "ignored"}),
		Storage: kv,
		Metrics: &statsd.Recorder{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.Same(t, kv, c.Storage)
	// a token without a persisted principal is not a session
	assert.False(t, c.Session.Capability().IsAuthenticated())
}

func TestNewConsole_WiringFailure(t *testing.T) {
	cfg := consoleConfig("  ", config.StorageConfig{Backend: config.StorageBackendMemory})

	c, err := NewConsole(context.Background(), ConsoleOptions{Config: cfg, Metrics: &statsd.Recorder{}})
	require.Error(t, err)
	assert.Nil(t, c)
	assert.Contains(t, err.Error(), "build executor")
}

func TestConsole_AbortJoinsCloseErrors(t *testing.T) {
	var order []string
	c := &Console{closers: []func() error{
		func() error {
			order = append(order, "storage")
			return errors.New("close storage")
		},
		func() error {
			order = append(order, "metrics")
			return nil
		},
	}}

	err := c.abort(errors.New("build session provider"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build session provider")
	assert.Contains(t, err.Error(), "close storage")
	assert.Equal(t, []string{"metrics", "storage"}, order)
	assert.Empty(t, c.closers)

	// nothing left to release
	require.EqualError(t, c.abort(errors.New("again")), "again")
}

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "session.json")
		kv, closeFn, err := OpenStorage(StorageOptions{Storage: config.StorageConfig{
			Backend:  config.StorageBackendFile,
			FilePath: path,
		}})
		require.NoError(t, err)
		defer func() { _ = closeFn() }()

		require.NoError(t, kv.Set(ctx, "k", "v"))
		v, ok, err := kv.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v", v)
		assert.FileExists(t, path)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, _, err := OpenStorage(StorageOptions{Storage: config.StorageConfig{Backend: "floppy"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported storage backend")
	})
}

func TestNewHTTPClient(t *testing.T) {
	hc, err := NewHTTPClient(config.APIConfig{Timeout: 3 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, hc.Timeout)
	assert.NotNil(t, hc.Jar)
}
