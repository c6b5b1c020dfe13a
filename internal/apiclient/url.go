package apiclient

import "strings"

// ResolveURL joins pathOrURL onto baseURL. Absolute http(s) URLs pass through unchanged
// and a missing leading slash is inserted.
func ResolveURL(baseURL, pathOrURL string) string {
	if isAbsoluteURL(pathOrURL) {
		return pathOrURL
	}
	path := pathOrURL
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(baseURL, "/") + path
}

func isAbsoluteURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
