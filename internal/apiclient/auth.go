package apiclient

import (
	"context"
	"net/http"
	"strings"

	domainauth "github.com/target/mmk-console/internal/domain/auth"
	apperrors "github.com/target/mmk-console/internal/errors"
)

// Backend auth endpoints.
const (
	LoginPath    = "/auth/login"
	RegisterPath = "/auth/register"
	RenewPath    = "/auth/renew"
)

// AuthAPI calls the unauthenticated sign-in and registration endpoints.
type AuthAPI struct {
	doer Doer
}

// NewAuthAPI constructs an AuthAPI on top of d.
func NewAuthAPI(d Doer) *AuthAPI {
	return &AuthAPI{doer: d}
}

// SignIn exchanges credentials for a session token and principal. A response missing
// either fails closed so a session is never half established.
func (a *AuthAPI) SignIn(ctx context.Context, in domainauth.SignInRequest) (domainauth.SignInResponse, error) {
	if strings.TrimSpace(in.Email) == "" {
		return domainauth.SignInResponse{}, apperrors.ValidationField("email", "email is required")
	}
	if in.Password == "" {
		return domainauth.SignInResponse{}, apperrors.ValidationField("password", "password is required")
	}

	out, err := DoJSON[domainauth.SignInResponse](ctx, a.doer, Request{
		Method:    http.MethodPost,
		Path:      LoginPath,
		Body:      in,
		Anonymous: true,
	})
	if err != nil {
		return domainauth.SignInResponse{}, err
	}
	if out.Token == "" {
		return domainauth.SignInResponse{}, apperrors.Decode("sign-in response missing token")
	}
	if out.User.IsZero() {
		return domainauth.SignInResponse{}, apperrors.Decode("sign-in response missing user")
	}
	return out, nil
}

// Register creates an account and returns its principal. It does not sign in.
func (a *AuthAPI) Register(ctx context.Context, in domainauth.RegisterRequest) (domainauth.Principal, error) {
	if strings.TrimSpace(in.Email) == "" {
		return domainauth.Principal{}, apperrors.ValidationField("email", "email is required")
	}
	if in.Password == "" {
		return domainauth.Principal{}, apperrors.ValidationField("password", "password is required")
	}

	out, err := DoJSON[domainauth.RegisterResponse](ctx, a.doer, Request{
		Method:    http.MethodPost,
		Path:      RegisterPath,
		Body:      in,
		Anonymous: true,
	})
	if err != nil {
		return domainauth.Principal{}, err
	}
	return out.User, nil
}
