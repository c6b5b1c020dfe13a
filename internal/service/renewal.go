package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/mmk-console/internal/apiclient"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	"github.com/target/mmk-console/internal/observability/metrics"
	"github.com/target/mmk-console/internal/observability/statsd"
	"golang.org/x/sync/singleflight"
)

const renewFlightKey = "renew"

var errNothingToRenew = errors.New("no session token to renew")

// RenewalCoordinatorOptions groups dependencies for RenewalCoordinator.
type RenewalCoordinatorOptions struct {
	Credentials *CredentialStore
	// Doer sends the renewal call. It must not itself renew on 401.
	Doer    apiclient.Doer
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// RenewalCoordinator exchanges the current token for a fresh one. Overlapping Renew
// calls share a single in-flight network call and its outcome.
type RenewalCoordinator struct {
	creds   *CredentialStore
	doer    apiclient.Doer
	logger  *slog.Logger
	metrics statsd.Sink
	group   singleflight.Group
}

var _ apiclient.Renewer = (*RenewalCoordinator)(nil)

// NewRenewalCoordinator constructs a RenewalCoordinator.
func NewRenewalCoordinator(opts RenewalCoordinatorOptions) (*RenewalCoordinator, error) {
	if opts.Credentials == nil {
		return nil, errors.New("credential store is required")
	}
	if opts.Doer == nil {
		return nil, errors.New("renewal doer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RenewalCoordinator{
		creds:   opts.Credentials,
		doer:    opts.Doer,
		logger:  logger.With("component", "renewal_coordinator"),
		metrics: opts.Metrics,
	}, nil
}

// Renew returns a fresh token, or false when there was nothing to renew or renewal
// failed (the session has then been cleared). The network call runs to completion even
// if ctx is canceled; only this caller's wait is abandoned.
func (c *RenewalCoordinator) Renew(ctx context.Context) (string, bool) {
	start := time.Now()
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(renewFlightKey, func() (any, error) {
		return c.renew(detached)
	})

	select {
	case res := <-ch:
		token, _ := res.Val.(string)
		ok := res.Err == nil && token != ""
		metrics.EmitRenewal(c.metrics, metrics.RenewalMetric{
			Result:   renewalResult(ok, res.Err),
			Shared:   res.Shared,
			Duration: time.Since(start),
		})
		return token, ok
	case <-ctx.Done():
		return "", false
	}
}

func (c *RenewalCoordinator) renew(ctx context.Context) (string, error) {
	current, ok := c.creds.Get(ctx)
	if !ok {
		return "", errNothingToRenew
	}

	c.logger.DebugContext(ctx, "renewing session token")
	out, err := apiclient.DoJSON[domainauth.RenewResponse](ctx, c.doer, apiclient.Request{
		Method:        http.MethodPost,
		Path:          apiclient.RenewPath,
		Token:         current,
		Anonymous:     true,
		SkipAuthRetry: true,
	})
	if err == nil && out.Token == "" {
		err = errors.New("renewal response missing token")
	}
	if err != nil {
		c.logger.WarnContext(ctx, "session renewal failed; clearing session", "error", err)
		c.creds.Clear(ctx)
		return "", err
	}

	c.creds.Set(ctx, out.Token)
	c.logger.InfoContext(ctx, "session token renewed")
	return out.Token, nil
}

func renewalResult(ok bool, err error) string {
	switch {
	case ok:
		return metrics.ResultSuccess
	case errors.Is(err, errNothingToRenew):
		return metrics.ResultNoop
	default:
		return metrics.ResultError
	}
}
