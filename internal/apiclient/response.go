package apiclient

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
	apperrors "github.com/target/mmk-console/internal/errors"
)

// errorMessageFields are probed in order on structured error bodies.
var errorMessageFields = []string{"message", "error", "detail"} //nolint:gochecknoglobals // fixed probe order

// Response is a completed 2xx exchange.
type Response struct {
	Status int
	Header http.Header
	// Body is the parsed payload: nil for no content, a decoded JSON value
	// (map[string]any, []any, string, float64, bool) for JSON, or the raw text otherwise.
	Body any
	// Raw holds the undecoded bytes.
	Raw []byte
}

// NoContent reports whether the response carried no body.
func (r *Response) NoContent() bool {
	return r == nil || r.Body == nil
}

// Decode unmarshals the raw JSON body into v.
func (r *Response) Decode(v any) error {
	if r.NoContent() {
		return apperrors.Decode("response has no content")
	}
	if err := json.Unmarshal(r.Raw, v); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDecode, "decode response body")
	}
	return nil
}

// ResponseError is returned for non-2xx responses. Its text is the message extracted
// from the body; Unwrap exposes the coded AppError.
type ResponseError struct {
	Status int
	Header http.Header
	Body   any
	err    *apperrors.AppError
}

func newResponseError(resp *Response) *ResponseError {
	return &ResponseError{
		Status: resp.Status,
		Header: resp.Header,
		Body:   resp.Body,
		err:    apperrors.API(resp.Status, ExtractErrorMessage(resp.Body, resp.Status)),
	}
}

func (e *ResponseError) Error() string { return e.err.Message }

// Message returns the human-readable message extracted from the body.
func (e *ResponseError) Message() string { return e.err.Message }

func (e *ResponseError) Unwrap() error { return e.err }

// ParseBody converts a raw body into its uniform shape. Empty bodies (204, zero length)
// parse to nil; JSON content types decode as JSON and fall back to text on failure;
// everything else is returned as text.
func ParseBody(status int, contentType string, raw []byte) any {
	if status == http.StatusNoContent || len(raw) == 0 {
		return nil
	}
	if isJSONContentType(contentType) {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return string(raw)
}

func isJSONContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// ExtractErrorMessage picks the human-readable message out of an error body: the first
// non-empty string among message, error and detail; else a non-empty text body; else a
// synthesized "Request failed with status N".
func ExtractErrorMessage(body any, status int) string {
	switch b := body.(type) {
	case map[string]any:
		for _, field := range errorMessageFields {
			v, err := jmespath.Search(field, b)
			if err != nil {
				continue
			}
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	case string:
		if strings.TrimSpace(b) != "" {
			return b
		}
	}
	return fmt.Sprintf("Request failed with status %d", status)
}
