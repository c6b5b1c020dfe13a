// Package apiclient issues HTTP calls against the console backend on behalf of a
// signed-in session. The Executor normalizes responses and transparently renews an
// expired session once before retrying the original call.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	apperrors "github.com/target/mmk-console/internal/errors"
	"github.com/target/mmk-console/internal/observability/metrics"
	"github.com/target/mmk-console/internal/observability/statsd"
	"golang.org/x/oauth2"
)

const (
	headerAccept        = "Accept"
	headerContentType   = "Content-Type"
	headerAuthorization = "Authorization"
	headerRequestID     = "X-Request-Id"
	headerUserAgent     = "User-Agent"

	contentTypeJSON = "application/json"

	// expiredTokenSignature is the backend's wording for an expired session. Renewal
	// only triggers on a 401 whose message contains it (case-insensitive).
	expiredTokenSignature = "invalid or expired token"

	maxResponseBytes = 10 << 20
)

// TokenSource owns the current session token. The Executor clears it when the backend
// rejects that token with a 401 that renewal cannot recover.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
	Clear(ctx context.Context)
}

// Renewer exchanges the current session token for a fresh one. It returns false when
// renewal failed and the session was cleared.
type Renewer interface {
	Renew(ctx context.Context) (string, bool)
}

// Doer executes one logical request.
type Doer interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// Request describes one outbound call.
type Request struct {
	Method string
	// Path is resolved against the base URL; absolute http(s) URLs pass through.
	Path string
	// Body is JSON-encoded when non-nil.
	Body   any
	Header http.Header
	// Token, when set, is sent as the bearer token instead of the stored one.
	Token string
	// Anonymous suppresses attaching the stored session token.
	Anonymous bool
	// SkipAuthRetry marks the request as ineligible for renewal-on-401.
	SkipAuthRetry bool
}

// Options groups dependencies for Executor.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	// Tokens supplies the bearer token for non-anonymous requests. Optional.
	Tokens TokenSource
	// Renewer enables the expired-session retry. Optional.
	Renewer   Renewer
	UserAgent string
	Logger    *slog.Logger
	Metrics   statsd.Sink
}

// Executor builds, sends, and normalizes HTTP calls. It is safe for concurrent use.
type Executor struct {
	baseURL   string
	client    *http.Client
	tokens    TokenSource
	renewer   Renewer
	userAgent string
	logger    *slog.Logger
	metrics   statsd.Sink
}

var _ Doer = (*Executor)(nil)

// NewExecutor constructs an Executor.
func NewExecutor(opts Options) (*Executor, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		baseURL:   baseURL,
		client:    hc,
		tokens:    opts.Tokens,
		renewer:   opts.Renewer,
		userAgent: opts.UserAgent,
		logger:    logger.With("component", "api_executor"),
		metrics:   opts.Metrics,
	}, nil
}

// BaseURL returns the address relative paths are resolved against.
func (e *Executor) BaseURL() string { return e.baseURL }

// Get issues a GET request.
func (e *Executor) Get(ctx context.Context, path string) (*Response, error) {
	return e.Do(ctx, Request{Method: http.MethodGet, Path: path})
}

// Post issues a POST request with an optional JSON body.
func (e *Executor) Post(ctx context.Context, path string, body any) (*Response, error) {
	return e.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put issues a PUT request with an optional JSON body.
func (e *Executor) Put(ctx context.Context, path string, body any) (*Response, error) {
	return e.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch issues a PATCH request with an optional JSON body.
func (e *Executor) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return e.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete issues a DELETE request with an optional JSON body.
func (e *Executor) Delete(ctx context.Context, path string, body any) (*Response, error) {
	return e.Do(ctx, Request{Method: http.MethodDelete, Path: path, Body: body})
}

// Do sends req. A 401 carrying the expired-token signature on an eligible request
// triggers one renewal and exactly one retry with the renewed token; the caller
// sees either the retry's outcome or, if renewal failed, the original 401.
func (e *Executor) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	req.Header = req.Header.Clone()
	if req.Header == nil {
		req.Header = http.Header{}
	}
	if req.Header.Get(headerRequestID) == "" {
		req.Header.Set(headerRequestID, uuid.NewString())
	}

	resp, sent, err := e.send(ctx, req, false)
	if err == nil {
		return resp, nil
	}
	if !e.eligibleForRenewal(req, sent != "", err) {
		e.dropRejectedToken(ctx, req, sent, err)
		return nil, err
	}

	token, ok := e.renewer.Renew(ctx)
	if !ok {
		e.logger.DebugContext(ctx, "renewal failed; surfacing original 401",
			"method", req.Method, "path", req.Path)
		return nil, err
	}

	retry := req
	retry.Header = req.Header.Clone()
	retry.Header.Del(headerAuthorization)
	retry.Token = token
	retry.SkipAuthRetry = true

	resp, sent, err = e.send(ctx, retry, true)
	if err != nil {
		e.dropRejectedToken(ctx, retry, sent, err)
		return nil, err
	}
	return resp, nil
}

// dropRejectedToken clears the session after a 401 for a request that carried the
// current token. A token replaced meanwhile (by a concurrent renewal or sign-in) is kept,
// as are failures of renewal calls, which the coordinator settles itself.
func (e *Executor) dropRejectedToken(ctx context.Context, req Request, sent string, err error) {
	if e.tokens == nil || sent == "" || apperrors.GetStatus(err) != http.StatusUnauthorized {
		return
	}
	if e.isRenewURL(req.Path) {
		return
	}
	if current, ok := e.tokens.Token(ctx); !ok || current != sent {
		return
	}
	e.logger.InfoContext(ctx, "session token rejected; clearing session",
		"method", req.Method, "path", req.Path)
	e.tokens.Clear(ctx)
}

func (e *Executor) eligibleForRenewal(req Request, sentAuth bool, err error) bool {
	if e.renewer == nil || req.SkipAuthRetry || !sentAuth {
		return false
	}
	var respErr *ResponseError
	if !errors.As(err, &respErr) || respErr.Status != http.StatusUnauthorized {
		return false
	}
	if e.isRenewURL(req.Path) {
		return false
	}
	return strings.Contains(strings.ToLower(respErr.Message()), expiredTokenSignature)
}

func (e *Executor) isRenewURL(pathOrURL string) bool {
	u, err := url.Parse(ResolveURL(e.baseURL, pathOrURL))
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.TrimRight(u.Path, "/"), RenewPath)
}

// send performs a single round trip. It returns the bearer token that was sent, if any.
func (e *Executor) send(ctx context.Context, req Request, retried bool) (*Response, string, error) {
	start := time.Now()
	target := ResolveURL(e.baseURL, req.Path)

	httpReq, err := e.buildHTTPRequest(ctx, req, target)
	if err != nil {
		return nil, "", err
	}
	sent := domainauth.BearerToken(httpReq.Header.Get(headerAuthorization))

	resp, err := e.roundTrip(httpReq)
	metrics.EmitRequest(e.metrics, metrics.RequestMetric{
		Method:   req.Method,
		Status:   statusOf(resp, err),
		Retried:  retried,
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		e.logger.DebugContext(ctx, "request failed",
			"method", req.Method,
			"url", target,
			"status", statusOf(resp, err),
			"request_id", httpReq.Header.Get(headerRequestID),
			"retried", retried,
			"error", err)
		return nil, sent, err
	}
	return resp, sent, nil
}

func (e *Executor) buildHTTPRequest(ctx context.Context, req Request, target string) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ErrCodeValidation, "encode %s %s body", req.Method, req.Path)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeValidation, "build %s %s", req.Method, req.Path)
	}

	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set(headerAccept, contentTypeJSON)
	if req.Body != nil && httpReq.Header.Get(headerContentType) == "" {
		httpReq.Header.Set(headerContentType, contentTypeJSON)
	}
	if e.userAgent != "" && httpReq.Header.Get(headerUserAgent) == "" {
		httpReq.Header.Set(headerUserAgent, e.userAgent)
	}

	if httpReq.Header.Get(headerAuthorization) == "" {
		if token := e.bearerFor(ctx, req); token != "" {
			(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(httpReq)
		}
	}
	return httpReq, nil
}

func (e *Executor) bearerFor(ctx context.Context, req Request) string {
	if req.Token != "" {
		return req.Token
	}
	if req.Anonymous || e.tokens == nil {
		return ""
	}
	token, ok := e.tokens.Token(ctx)
	if !ok {
		return ""
	}
	return token
}

func (e *Executor) roundTrip(httpReq *http.Request) (*Response, error) {
	httpResp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, transportError(httpReq, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(httpReq, err)
	}

	resp := &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   ParseBody(httpResp.StatusCode, httpResp.Header.Get(headerContentType), raw),
		Raw:    raw,
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return resp, newResponseError(resp)
	}
	return resp, nil
}

func transportError(httpReq *http.Request, err error) error {
	msg := fmt.Sprintf("%s %s failed", httpReq.Method, httpReq.URL.Redacted())
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(err, apperrors.ErrCodeTimeout, msg)
	case errors.Is(err, context.Canceled):
		return apperrors.Wrap(err, apperrors.ErrCodeCanceled, msg)
	default:
		return apperrors.Transport(err, msg)
	}
}

func statusOf(resp *Response, err error) int {
	if resp != nil {
		return resp.Status
	}
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return respErr.Status
	}
	return 0
}

// Decode unmarshals a response body into T.
func Decode[T any](resp *Response) (T, error) {
	var out T
	if err := resp.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

// DoJSON sends req through d and decodes the body into T.
func DoJSON[T any](ctx context.Context, d Doer, req Request) (T, error) {
	resp, err := d.Do(ctx, req)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](resp)
}
