// Package testutil provides test helpers: a fake console backend and Redis setup.
package testutil

import (
	"os"
	"strconv"
	"strings"
)

// TestingTB is the subset of testing.TB the helpers need.
type TestingTB interface {
	Helper()
	Skipf(format string, args ...any)
	Fatalf(format string, args ...any)
	Logf(format string, args ...any)
}

// requireRedis turns a missing Redis into a failure instead of a skip (CI).
func requireRedis() bool {
	for _, key := range []string{"TEST_REQUIRE_REDIS", "TEST_REQUIRE_INFRA"} {
		if on, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key))); err == nil && on {
			return true
		}
	}
	return false
}

func registerCleanup(t TestingTB, fn func()) {
	if tc, ok := t.(interface{ Cleanup(func()) }); ok {
		tc.Cleanup(fn)
	}
}
