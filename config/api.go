package config

import (
	"strings"
	"time"
)

// DefaultAPIBaseURL is used when neither a build-time nor a runtime base URL is set.
const DefaultAPIBaseURL = "http://localhost:8080"

// BuildAPIBaseURL is injected at build time:
//
//	go build -ldflags "-X github.com/target/mmk-console/config.BuildAPIBaseURL=https://api.example.com"
//
// When set it wins over the runtime environment.
var BuildAPIBaseURL string //nolint:gochecknoglobals // populated by the linker

// APIConfig contains backend API client configuration.
type APIConfig struct {
	// BaseURL is the backend address all relative request paths are resolved against.
	BaseURL string `env:"API_BASE_URL"`

	// LegacyBaseURL is honoured for deployments still exporting the frontend build variable.
	LegacyBaseURL string `env:"VITE_API_BASE_URL"`

	// Timeout bounds a single HTTP round trip.
	Timeout time.Duration `env:"API_TIMEOUT" envDefault:"30s"`

	// UserAgent is sent on every outbound request.
	UserAgent string `env:"API_USER_AGENT" envDefault:"mmk-console"`
}

// Sanitize resolves the effective base URL and clamps the timeout.
func (a *APIConfig) Sanitize() {
	a.BaseURL = ResolveBaseURL(BuildAPIBaseURL, a.BaseURL, a.LegacyBaseURL)
	if a.Timeout <= 0 {
		a.Timeout = 30 * time.Second
	}
	a.UserAgent = strings.TrimSpace(a.UserAgent)
}

// ResolveBaseURL returns the first candidate that is non-blank after trimming
// whitespace and trailing slashes, falling back to DefaultAPIBaseURL.
func ResolveBaseURL(candidates ...string) string {
	for _, candidate := range candidates {
		if v := normalizeBaseURL(candidate); v != "" {
			return v
		}
	}
	return DefaultAPIBaseURL
}

func normalizeBaseURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}
