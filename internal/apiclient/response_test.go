package apiclient

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractErrorMessage(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		status int
		want   string
	}{
		{name: "message field", body: map[string]any{"message": "bad creds"}, status: 401, want: "bad creds"},
		{name: "error field", body: map[string]any{"error": "nope"}, status: 403, want: "nope"},
		{name: "detail field", body: map[string]any{"detail": "x"}, status: 422, want: "x"},
		{name: "message wins over error", body: map[string]any{"error": "second", "message": "first"}, status: 400, want: "first"},
		{name: "blank message falls through", body: map[string]any{"message": "  ", "error": "real"}, status: 400, want: "real"},
		{name: "non-string message ignored", body: map[string]any{"message": 12, "detail": "d"}, status: 400, want: "d"},
		{name: "text body", body: "oops", status: 502, want: "oops"},
		{name: "empty body", body: nil, status: 500, want: "Request failed with status 500"},
		{name: "blank text body", body: "   ", status: 503, want: "Request failed with status 503"},
		{name: "object without known fields", body: map[string]any{"code": "E1"}, status: 400, want: "Request failed with status 400"},
		{name: "array body", body: []any{"a"}, status: 418, want: "Request failed with status 418"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractErrorMessage(tt.body, tt.status))
		})
	}
}

func TestParseBody(t *testing.T) {
	t.Run("no content", func(t *testing.T) {
		assert.Nil(t, ParseBody(http.StatusNoContent, "application/json", []byte(`{"a":1}`)))
	})

	t.Run("empty body", func(t *testing.T) {
		assert.Nil(t, ParseBody(http.StatusOK, "application/json", nil))
	})

	t.Run("json object", func(t *testing.T) {
		got := ParseBody(http.StatusOK, "application/json; charset=utf-8", []byte(`{"a":1}`))
		assert.Equal(t, map[string]any{"a": float64(1)}, got)
	})

	t.Run("problem json", func(t *testing.T) {
		got := ParseBody(http.StatusBadRequest, "application/problem+json", []byte(`{"detail":"x"}`))
		assert.Equal(t, map[string]any{"detail": "x"}, got)
	})

	t.Run("malformed json falls back to text", func(t *testing.T) {
		assert.Equal(t, "{not json", ParseBody(http.StatusOK, "application/json", []byte("{not json")))
	})

	t.Run("text", func(t *testing.T) {
		assert.Equal(t, "hello", ParseBody(http.StatusOK, "text/plain", []byte("hello")))
	})

	t.Run("missing content type is text", func(t *testing.T) {
		assert.Equal(t, `{"a":1}`, ParseBody(http.StatusOK, "", []byte(`{"a":1}`)))
	})
}

func TestResponseDecode(t *testing.T) {
	resp := &Response{Status: 200, Body: map[string]any{"token": "t"}, Raw: []byte(`{"token":"t"}`)}

	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, resp.Decode(&out))
	assert.Equal(t, "t", out.Token)

	empty := &Response{Status: 204}
	assert.True(t, empty.NoContent())
	require.Error(t, empty.Decode(&out))
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		path string
		want string
	}{
		{name: "leading slash", base: "http://api.local", path: "/products", want: "http://api.local/products"},
		{name: "missing slash", base: "http://api.local", path: "products", want: "http://api.local/products"},
		{name: "trailing base slash", base: "http://api.local/", path: "/products", want: "http://api.local/products"},
		{name: "absolute http", base: "http://api.local", path: "http://other/x", want: "http://other/x"},
		{name: "absolute https", base: "http://api.local", path: "HTTPS://other/x", want: "HTTPS://other/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveURL(tt.base, tt.path))
		})
	}
}
