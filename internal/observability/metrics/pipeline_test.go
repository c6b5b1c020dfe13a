package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/target/mmk-console/internal/errors"
	"github.com/target/mmk-console/internal/observability/statsd"
)

func TestEmitRequest(t *testing.T) {
	rec := &statsd.Recorder{}

	EmitRequest(rec, RequestMetric{Method: "GET", Status: 200, Duration: 10 * time.Millisecond})
	EmitRequest(rec, RequestMetric{Method: "GET", Status: 401, Retried: true, Err: apperrors.API(401, "nope")})
	EmitRequest(rec, RequestMetric{Method: "POST", Err: apperrors.Transport(assert.AnError, "POST")})

	counts := rec.Counts("request.total")
	require.Len(t, counts, 3)
	assert.Equal(t, "success", counts[0].Tags["result"])
	assert.Equal(t, "200", counts[0].Tags["status"])
	assert.Equal(t, "true", counts[1].Tags["retried"])
	assert.Equal(t, "error", counts[1].Tags["result"])
	assert.NotEmpty(t, counts[1].Tags["error_class"])
	assert.Equal(t, "none", counts[2].Tags["status"])

	assert.Len(t, rec.Timings("request.duration"), 1)
}

func TestEmitRenewal(t *testing.T) {
	rec := &statsd.Recorder{}
	EmitRenewal(rec, RenewalMetric{Result: ResultSuccess, Duration: time.Millisecond})
	EmitRenewal(rec, RenewalMetric{Result: ResultNoop})

	counts := rec.Counts("renewal.outcome")
	require.Len(t, counts, 2)
	assert.Equal(t, ResultNoop, counts[1].Tags["result"])
	assert.Len(t, rec.Timings("renewal.duration"), 1)
}

func TestEmitNilSink(t *testing.T) {
	EmitRequest(nil, RequestMetric{})
	EmitRenewal(nil, RenewalMetric{})
	EmitSessionTransition(nil, "signed_in")
}

func TestEmitSessionTransition(t *testing.T) {
	rec := &statsd.Recorder{}
	EmitSessionTransition(rec, "expired")
	counts := rec.Counts("session.transition")
	require.Len(t, counts, 1)
	assert.Equal(t, "expired", counts[0].Tags["transition"])
}

func TestCloneTags(t *testing.T) {
	assert.Nil(t, CloneTags(nil))
	src := map[string]string{"a": "1"}
	cp := CloneTags(src)
	cp["a"] = "2"
	assert.Equal(t, "1", src["a"])
}
