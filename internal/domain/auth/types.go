package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role represents an application's authorization role.
// The backend only issues admin and user today; other values pass through unchanged.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Principal is the signed-in identity persisted alongside the session token.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// IsZero reports whether the principal carries no identity.
func (p Principal) IsZero() bool {
	return p.ID == "" && p.Email == "" && p.Name == ""
}

// User is the full account record returned by the users endpoints.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         Role   `json:"role"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	PasswordHash string `json:"password_hash,omitempty"`
}

// IsAdmin returns true if the user holds the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// SignInRequest is the body of POST /auth/login.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInResponse is the body returned by POST /auth/login.
type SignInResponse struct {
	Token string    `json:"token"`
	User  Principal `json:"user"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// RegisterResponse is the body returned by POST /auth/register.
type RegisterResponse struct {
	User Principal `json:"user"`
}

// RenewResponse is the body returned by POST /auth/renew.
type RenewResponse struct {
	Token string `json:"token"`
}

// ChangePasswordRequest is the body of POST /users/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UpdateRoleRequest is the body of the role update endpoints.
type UpdateRoleRequest struct {
	Role Role `json:"role"`
}

// BearerPrefix is the Authorization scheme used for session tokens.
const BearerPrefix = "Bearer "

// BearerToken strips the Bearer scheme from an Authorization header value.
// It returns "" when the header carries no bearer token.
func BearerToken(header string) string {
	if len(header) < len(BearerPrefix) || !strings.EqualFold(header[:len(BearerPrefix)], BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(BearerPrefix):])
}

// TokenExpiry reads the exp claim of a JWT-shaped session token without verifying it.
// Session tokens are opaque to the console; this is informational only.
func TokenExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
