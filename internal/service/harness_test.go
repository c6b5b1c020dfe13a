package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/target/mmk-console/internal/adapters/memstore"
	"github.com/target/mmk-console/internal/apiclient"
	"github.com/target/mmk-console/internal/navigation"
	"github.com/target/mmk-console/internal/observability/statsd"
	"github.com/target/mmk-console/internal/testutil"
)

// pipeline wires the session stack against a fake backend the way bootstrap does.
type pipeline struct {
	server   *testutil.APIServer
	storage  *memstore.Store
	creds    *CredentialStore
	renewer  *RenewalCoordinator
	exec     *apiclient.Executor
	router   *navigation.Router
	provider *SessionProvider
	metrics  *statsd.Recorder
}

func newPipeline(t *testing.T, seed map[string]string) *pipeline {
	t.Helper()

	p := &pipeline{
		server:  testutil.NewAPIServer(t),
		storage: memstore.New(seed),
		metrics: &statsd.Recorder{},
	}
	p.creds = NewCredentialStore(CredentialStoreOptions{Storage: p.storage})

	base, err := apiclient.NewExecutor(apiclient.Options{BaseURL: p.server.URL, Metrics: p.metrics})
	require.NoError(t, err)

	p.renewer, err = NewRenewalCoordinator(RenewalCoordinatorOptions{
		Credentials: p.creds,
		Doer:        base,
		Metrics:     p.metrics,
	})
	require.NoError(t, err)

	p.exec, err = apiclient.NewExecutor(apiclient.Options{
		BaseURL: p.server.URL,
		Tokens:  p.creds,
		Renewer: p.renewer,
		Metrics: p.metrics,
	})
	require.NoError(t, err)

	p.router = navigation.NewRouter(navigation.RouterOptions{
		Routes:  navigation.DefaultRoutes("/signin", "/dashboard"),
		Session: DefaultCapability(),
	})

	p.provider, err = NewSessionProvider(context.Background(), SessionProviderOptions{
		Credentials: p.creds,
		Storage:     p.storage,
		Auth:        apiclient.NewAuthAPI(base),
		Router:      p.router,
		Navigator:   p.router,
		SignInPath:  "/signin",
		Metrics:     p.metrics,
	})
	require.NoError(t, err)
	t.Cleanup(p.provider.Close)
	return p
}
