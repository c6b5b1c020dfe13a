package config

import "strings"

// RoutesConfig names the navigation entry points the session layer redirects to.
type RoutesConfig struct {
	// SignInPath is where sign-out and failed guards send the user.
	SignInPath string `env:"SIGNIN_PATH" envDefault:"/signin"`

	// HomePath is the landing page for an authenticated session.
	HomePath string `env:"HOME_PATH" envDefault:"/dashboard"`
}

// Sanitize guarantees both paths are rooted.
func (r *RoutesConfig) Sanitize() {
	r.SignInPath = rootPath(r.SignInPath, "/signin")
	r.HomePath = rootPath(r.HomePath, "/dashboard")
}

func rootPath(p, fallback string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return fallback
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
