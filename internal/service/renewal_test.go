package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-console/internal/apiclient"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	"github.com/target/mmk-console/internal/observability/statsd"
)

// doerFunc adapts a function to apiclient.Doer.
type doerFunc func(ctx context.Context, req apiclient.Request) (*apiclient.Response, error)

func (f doerFunc) Do(ctx context.Context, req apiclient.Request) (*apiclient.Response, error) {
	return f(ctx, req)
}

func jsonResponse(raw string) *apiclient.Response {
	return &apiclient.Response{
		Status: http.StatusOK,
		Body:   apiclient.ParseBody(http.StatusOK, "application/json", []byte(raw)),
		Raw:    []byte(raw),
	}
}

func newTestCoordinator(t *testing.T, creds *CredentialStore, d apiclient.Doer) *RenewalCoordinator {
	t.Helper()
	c, err := NewRenewalCoordinator(RenewalCoordinatorOptions{Credentials: creds, Doer: d})
	require.NoError(t, err)
	return c
}

func TestNewRenewalCoordinator_Validation(t *testing.T) {
	_, err := NewRenewalCoordinator(RenewalCoordinatorOptions{})
	require.Error(t, err)
	_, err = NewRenewalCoordinator(RenewalCoordinatorOptions{Credentials: NewCredentialStore(CredentialStoreOptions{})})
	require.Error(t, err)
}

func TestRenewalCoordinator_NothingToRenew(t *testing.T) {
	var calls atomic.Int32
	creds := NewCredentialStore(CredentialStoreOptions{})
	c := newTestCoordinator(t, creds, doerFunc(func(context.Context, apiclient.Request) (*apiclient.Response, error) {
		calls.Add(1)
		return jsonResponse(`{"token":"x"}`), nil
	}))

	token, ok := c.Renew(context.Background())
	assert.False(t, ok)
	assert.Empty(t, token)
	assert.Zero(t, calls.Load())
}

func TestRenewalCoordinator_Success(t *testing.T) {
	creds := NewCredentialStore(CredentialStoreOptions{})
	ctx := context.Background()
	creds.Set(ctx, "stale")

	var seen apiclient.Request
	c := newTestCoordinator(t, creds, doerFunc(func(_ context.Context, req apiclient.Request) (*apiclient.Response, error) {
		seen = req
		return jsonResponse(`{"token":"fresh"}`), nil
	}))

	token, ok := c.Renew(ctx)
	require.True(t, ok)
	assert.Equal(t, "fresh", token)

	stored, _ := creds.Get(ctx)
	assert.Equal(t, "fresh", stored)

	assert.Equal(t, http.MethodPost, seen.Method)
	assert.Equal(t, apiclient.RenewPath, seen.Path)
	assert.Equal(t, "stale", seen.Token)
	assert.True(t, seen.SkipAuthRetry)
	assert.Nil(t, seen.Body)
}

func TestRenewalCoordinator_FailureClearsSession(t *testing.T) {
	tests := []struct {
		name string
		do   doerFunc
	}{
		{
			name: "network error",
			do: func(context.Context, apiclient.Request) (*apiclient.Response, error) {
				return nil, errors.New("connection refused")
			},
		},
		{
			name: "missing token field",
			do: func(context.Context, apiclient.Request) (*apiclient.Response, error) {
				return jsonResponse(`{"ok":true}`), nil
			},
		},
		{
			name: "non-string token",
			do: func(context.Context, apiclient.Request) (*apiclient.Response, error) {
				return jsonResponse(`{"token":42}`), nil
			},
		},
		{
			name: "empty body",
			do: func(context.Context, apiclient.Request) (*apiclient.Response, error) {
				return &apiclient.Response{Status: http.StatusNoContent}, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			creds := NewCredentialStore(CredentialStoreOptions{})
			creds.Set(ctx, "stale")

			var cleared atomic.Bool
			creds.Subscribe(func(_ string, ok bool) {
				if !ok {
					cleared.Store(true)
				}
			})

			token, ok := newTestCoordinator(t, creds, tt.do).Renew(ctx)
			assert.False(t, ok)
			assert.Empty(t, token)
			assert.True(t, cleared.Load())
			_, has := creds.Get(ctx)
			assert.False(t, has)
		})
	}
}

func TestRenewalCoordinator_SingleFlight(t *testing.T) {
	const callers = 8
	ctx := context.Background()
	creds := NewCredentialStore(CredentialStoreOptions{})
	creds.Set(ctx, "stale")

	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	c := newTestCoordinator(t, creds, doerFunc(func(context.Context, apiclient.Request) (*apiclient.Response, error) {
		if calls.Add(1) == 1 {
			close(entered)
		}
		<-release
		return jsonResponse(`{"token":"fresh"}`), nil
	}))

	var started sync.WaitGroup
	var wg sync.WaitGroup
	results := make([]string, callers)
	started.Add(callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			token, ok := c.Renew(ctx)
			if ok {
				results[i] = token
			}
		}(i)
	}

	<-entered
	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for _, got := range results {
		assert.Equal(t, "fresh", got)
	}
}

func TestRenewalCoordinator_ReleasesAfterSettling(t *testing.T) {
	ctx := context.Background()
	creds := NewCredentialStore(CredentialStoreOptions{})
	creds.Set(ctx, "t0")

	var calls atomic.Int32
	c := newTestCoordinator(t, creds, doerFunc(func(context.Context, apiclient.Request) (*apiclient.Response, error) {
		n := calls.Add(1)
		if n == 1 {
			return jsonResponse(`{"token":"t1"}`), nil
		}
		return jsonResponse(`{"token":"t2"}`), nil
	}))

	first, ok := c.Renew(ctx)
	require.True(t, ok)
	second, ok := c.Renew(ctx)
	require.True(t, ok)

	assert.Equal(t, "t1", first)
	assert.Equal(t, "t2", second)
	assert.EqualValues(t, 2, calls.Load())
}

func TestRenewalCoordinator_CallerCancelDoesNotAbortRenewal(t *testing.T) {
	creds := NewCredentialStore(CredentialStoreOptions{})
	creds.Set(context.Background(), "stale")

	release := make(chan struct{})
	var detachedLive atomic.Bool
	c := newTestCoordinator(t, creds, doerFunc(func(ctx context.Context, _ apiclient.Request) (*apiclient.Response, error) {
		<-release
		detachedLive.Store(ctx.Err() == nil)
		return jsonResponse(`{"token":"fresh"}`), nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		_, ok := c.Renew(ctx)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.False(t, <-done)

	close(release)
	require.Eventually(t, func() bool {
		token, _ := creds.Get(context.Background())
		return token == "fresh"
	}, time.Second, 5*time.Millisecond)
	assert.True(t, detachedLive.Load())
}

func TestRenewalCoordinator_Metrics(t *testing.T) {
	ctx := context.Background()
	rec := &statsd.Recorder{}
	creds := NewCredentialStore(CredentialStoreOptions{})
	creds.Set(ctx, "stale")

	c, err := NewRenewalCoordinator(RenewalCoordinatorOptions{
		Credentials: creds,
		Metrics:     rec,
		Doer: doerFunc(func(context.Context, apiclient.Request) (*apiclient.Response, error) {
			return jsonResponse(`{"token":"fresh"}`), nil
		}),
	})
	require.NoError(t, err)

	_, ok := c.Renew(ctx)
	require.True(t, ok)

	outcomes := rec.Counts("renewal.outcome")
	require.Len(t, outcomes, 1)
	assert.Equal(t, "success", outcomes[0].Tags["result"])
}

func TestRenewalCoordinator_AgainstBackend(t *testing.T) {
	p := newPipeline(t, nil)
	p.server.AddUser("ann@example.com", "pw", "Ann", domainauth.RoleUser)
	ctx := context.Background()

	require.NoError(t, p.provider.SignIn(ctx, domainauth.SignInRequest{Email: "ann@example.com", Password: "pw"}))
	before := p.provider.Capability().Token()

	token, ok := p.renewer.Renew(ctx)
	require.True(t, ok)
	assert.NotEqual(t, before, token)
	assert.Equal(t, 1, p.server.RenewCalls())
	assert.Equal(t, token, p.provider.Capability().Token())

	p.server.FailRenewals(true)
	_, ok = p.renewer.Renew(ctx)
	assert.False(t, ok)
	assert.False(t, p.provider.Capability().IsAuthenticated())
	assert.Nil(t, p.provider.Capability().User())
}
