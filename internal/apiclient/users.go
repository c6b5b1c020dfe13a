package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	jmespath "github.com/jmespath-community/go-jmespath"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	"github.com/target/mmk-console/internal/domain/model"
	apperrors "github.com/target/mmk-console/internal/errors"
)

// userListEnvelopes are the object keys a user list may arrive under.
var userListEnvelopes = []string{"users", "items", "data"} //nolint:gochecknoglobals // fixed probe order

// UsersAPI calls the authenticated user and admin-user endpoints.
type UsersAPI struct {
	doer Doer
}

// NewUsersAPI constructs a UsersAPI on top of d.
func NewUsersAPI(d Doer) *UsersAPI {
	return &UsersAPI{doer: d}
}

// MyRole returns the signed-in user's account record.
func (u *UsersAPI) MyRole(ctx context.Context) (domainauth.User, error) {
	return u.user(ctx, Request{Method: http.MethodGet, Path: "/users/me/role"})
}

// UpdateMyRole changes the signed-in user's role.
func (u *UsersAPI) UpdateMyRole(ctx context.Context, role domainauth.Role) (domainauth.User, error) {
	return u.user(ctx, Request{
		Method: http.MethodPatch,
		Path:   "/users/me/role",
		Body:   domainauth.UpdateRoleRequest{Role: role},
	})
}

// ChangePassword rotates the signed-in user's password.
func (u *UsersAPI) ChangePassword(ctx context.Context, in domainauth.ChangePasswordRequest) error {
	if in.CurrentPassword == "" || in.NewPassword == "" {
		return apperrors.Validation("current and new password are required")
	}
	_, err := u.doer.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/users/change-password",
		Body:   in,
	})
	return err
}

// ListAdminUsers lists accounts, optionally filtered.
func (u *UsersAPI) ListAdminUsers(ctx context.Context, opts model.UserListOptions) ([]domainauth.User, error) {
	resp, err := u.doer.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/admin/users" + adminUsersQuery(opts),
	})
	if err != nil {
		return nil, err
	}
	return NormalizeUserList(resp.Body)
}

// GetAdminUser fetches one account by id.
func (u *UsersAPI) GetAdminUser(ctx context.Context, id string) (domainauth.User, error) {
	if id == "" {
		return domainauth.User{}, apperrors.ValidationField("id", "user id is required")
	}
	return u.user(ctx, Request{Method: http.MethodGet, Path: "/admin/users/" + url.PathEscape(id)})
}

func (u *UsersAPI) user(ctx context.Context, req Request) (domainauth.User, error) {
	resp, err := u.doer.Do(ctx, req)
	if err != nil {
		return domainauth.User{}, err
	}
	return NormalizeUser(resp.Body)
}

func adminUsersQuery(opts model.UserListOptions) string {
	opts = opts.Normalize()
	q := url.Values{}
	if opts.Role != "" {
		q.Set("role", opts.Role)
	}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	if opts.Page != nil {
		q.Set("page", strconv.Itoa(*opts.Page))
	}
	if opts.Limit != nil {
		q.Set("limit", strconv.Itoa(*opts.Limit))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// NormalizeUser maps the user shapes the backend emits (snake_case, PascalCase, or
// wrapped in {"user": ...}) onto one User. Shapes without an id fail closed.
func NormalizeUser(raw any) (domainauth.User, error) {
	obj, ok := raw.(map[string]any)
	if !ok || obj == nil {
		return domainauth.User{}, apperrors.Decode("user payload missing from response")
	}
	if inner, wrapped := obj["user"].(map[string]any); wrapped {
		return NormalizeUser(inner)
	}

	id := firstString(obj, "id", "ID")
	if id == "" {
		return domainauth.User{}, apperrors.Decode("user payload has no id")
	}

	role := firstString(obj, "role", "Role")
	if role == "" {
		role = string(domainauth.RoleUser)
	}

	return domainauth.User{
		ID:           id,
		Email:        firstString(obj, "email", "Email"),
		Name:         firstString(obj, "name", "Name"),
		Role:         domainauth.Role(role),
		CreatedAt:    firstString(obj, "created_at", "CreatedAt"),
		UpdatedAt:    firstString(obj, "updated_at", "UpdatedAt"),
		PasswordHash: firstString(obj, "password_hash", "PasswordHash"),
	}, nil
}

// NormalizeUserList accepts a bare array or an object wrapping the array under
// users, items, or data. Anything else fails closed.
func NormalizeUserList(raw any) ([]domainauth.User, error) {
	items, ok := raw.([]any)
	if !ok {
		items, ok = probeList(raw)
	}
	if !ok {
		return nil, apperrors.Decode("user list payload has no recognised shape")
	}

	users := make([]domainauth.User, 0, len(items))
	for i, item := range items {
		user, err := NormalizeUser(item)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ErrCodeDecode, "user list item %d", i)
		}
		users = append(users, user)
	}
	return users, nil
}

func probeList(raw any) ([]any, bool) {
	if _, isObj := raw.(map[string]any); !isObj {
		return nil, false
	}
	for _, key := range userListEnvelopes {
		v, err := jmespath.Search(key, raw)
		if err != nil {
			continue
		}
		if list, ok := v.([]any); ok {
			return list, true
		}
	}
	return nil, false
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
