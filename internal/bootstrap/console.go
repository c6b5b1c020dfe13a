package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"

	"github.com/target/mmk-console/config"
	"github.com/target/mmk-console/internal/apiclient"
	"github.com/target/mmk-console/internal/navigation"
	"github.com/target/mmk-console/internal/observability/statsd"
	"github.com/target/mmk-console/internal/ports"
	"github.com/target/mmk-console/internal/service"
	"golang.org/x/net/publicsuffix"
)

// ConsoleOptions groups dependencies for NewConsole.
type ConsoleOptions struct {
	Config config.AppConfig
	Logger *slog.Logger
	// Storage overrides the configured backend when set.
	Storage ports.KeyValueStore
	// HTTPClient overrides the default client when set.
	HTTPClient *http.Client
	// Metrics overrides the configured StatsD sink when set.
	Metrics statsd.Sink
}

// Console is the wired session pipeline.
type Console struct {
	Config      config.AppConfig
	Logger      *slog.Logger
	Storage     ports.KeyValueStore
	Credentials *service.CredentialStore
	Renewer     *service.RenewalCoordinator
	// API sends authenticated requests and renews expired sessions.
	API      *apiclient.Executor
	Auth     *apiclient.AuthAPI
	Users    *apiclient.UsersAPI
	Products *apiclient.ProductsAPI
	Router   *navigation.Router
	Session  *service.SessionProvider

	closers []func() error
}

// NewConsole builds the credential store, executors, renewal coordinator, router, and
// session provider, and restores any persisted session.
func NewConsole(ctx context.Context, opts ConsoleOptions) (*Console, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Console{Config: cfg, Logger: logger}

	storage := opts.Storage
	if storage == nil {
		kv, closeFn, err := OpenStorage(StorageOptions{Storage: cfg.Storage, Redis: cfg.Redis, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		storage = kv
		c.closers = append(c.closers, closeFn)
	}
	c.Storage = storage

	sink := opts.Metrics
	if sink == nil {
		client, err := statsd.NewClient(statsd.Config{
			Enabled:    cfg.Observability.Metrics.IsEnabled(),
			Address:    cfg.Observability.Metrics.StatsdAddress,
			Prefix:     cfg.Observability.Metrics.Prefix,
			Logger:     logger,
			GlobalTags: cfg.Observability.Metrics.Tags,
		})
		if err != nil {
			return nil, c.abort(fmt.Errorf("init metrics: %w", err))
		}
		sink = client
		c.closers = append(c.closers, client.Close)
	}

	hc := opts.HTTPClient
	if hc == nil {
		var err error
		hc, err = NewHTTPClient(cfg.API)
		if err != nil {
			return nil, c.abort(err)
		}
	}

	if err := c.wire(ctx, hc, sink); err != nil {
		return nil, c.abort(err)
	}
	return c, nil
}

func (c *Console) wire(ctx context.Context, hc *http.Client, sink statsd.Sink) error {
	c.Credentials = service.NewCredentialStore(service.CredentialStoreOptions{
		Storage: c.Storage,
		Logger:  c.Logger,
	})

	// base never renews; it carries sign-in, registration, and the renewal call itself.
	base, err := apiclient.NewExecutor(apiclient.Options{
		BaseURL:    c.Config.API.BaseURL,
		HTTPClient: hc,
		UserAgent:  c.Config.API.UserAgent,
		Logger:     c.Logger,
		Metrics:    sink,
	})
	if err != nil {
		return fmt.Errorf("build executor: %w", err)
	}

	c.Renewer, err = service.NewRenewalCoordinator(service.RenewalCoordinatorOptions{
		Credentials: c.Credentials,
		Doer:        base,
		Logger:      c.Logger,
		Metrics:     sink,
	})
	if err != nil {
		return fmt.Errorf("build renewal coordinator: %w", err)
	}

	c.API, err = apiclient.NewExecutor(apiclient.Options{
		BaseURL:    c.Config.API.BaseURL,
		HTTPClient: hc,
		Tokens:     c.Credentials,
		Renewer:    c.Renewer,
		UserAgent:  c.Config.API.UserAgent,
		Logger:     c.Logger,
		Metrics:    sink,
	})
	if err != nil {
		return fmt.Errorf("build executor: %w", err)
	}

	c.Auth = apiclient.NewAuthAPI(base)
	c.Users = apiclient.NewUsersAPI(c.API)
	c.Products = apiclient.NewProductsAPI(c.API)

	c.Router = navigation.NewRouter(navigation.RouterOptions{
		Routes:  navigation.DefaultRoutes(c.Config.Routes.SignInPath, c.Config.Routes.HomePath),
		Session: service.DefaultCapability(),
		Logger:  c.Logger,
	})

	c.Session, err = service.NewSessionProvider(ctx, service.SessionProviderOptions{
		Credentials: c.Credentials,
		Storage:     c.Storage,
		Auth:        c.Auth,
		Router:      c.Router,
		Navigator:   c.Router,
		SignInPath:  c.Config.Routes.SignInPath,
		Logger:      c.Logger,
		Metrics:     sink,
	})
	if err != nil {
		return fmt.Errorf("build session provider: %w", err)
	}
	c.closers = append(c.closers, func() error {
		c.Session.Close()
		return nil
	})
	return nil
}

// Close releases storage and metrics resources.
func (c *Console) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// abort releases whatever NewConsole opened before failing with err.
func (c *Console) abort(err error) error {
	return errors.Join(err, c.Close())
}

// NewHTTPClient returns the client shared by every executor. Its cookie jar scopes
// cookies by public suffix.
func NewHTTPClient(cfg config.APIConfig) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &http.Client{Timeout: cfg.Timeout, Jar: jar}, nil
}
