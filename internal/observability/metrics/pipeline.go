package metrics

import (
	"strconv"
	"time"

	obserrors "github.com/target/mmk-console/internal/observability/errors"
	"github.com/target/mmk-console/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// RequestMetric captures one executor round trip.
type RequestMetric struct {
	Method   string
	Status   int
	Retried  bool
	Duration time.Duration
	Err      error
}

// EmitRequest emits request.total and request.duration.
func EmitRequest(sink statsd.Sink, in RequestMetric) {
	if sink == nil {
		return
	}

	result := ResultSuccess
	if in.Err != nil {
		result = ResultError
	}
	tags := map[string]string{
		"method":  in.Method,
		"status":  statusTag(in.Status),
		"retried": strconv.FormatBool(in.Retried),
		"result":  result,
	}
	if in.Err != nil {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("request.total", 1, tags)
	if in.Duration > 0 {
		sink.Timing("request.duration", in.Duration, CloneTags(tags))
	}
}

// RenewalMetric captures one settled renewal.
type RenewalMetric struct {
	// Result is ResultSuccess, ResultError, or ResultNoop when there was no token to renew.
	Result   string
	Shared   bool
	Duration time.Duration
}

// EmitRenewal emits renewal.outcome and renewal.duration.
func EmitRenewal(sink statsd.Sink, in RenewalMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"result": in.Result,
		"shared": strconv.FormatBool(in.Shared),
	}
	sink.Count("renewal.outcome", 1, tags)
	if in.Duration > 0 {
		sink.Timing("renewal.duration", in.Duration, CloneTags(tags))
	}
}

// EmitSessionTransition counts session state changes (signed_in, signed_out, expired).
func EmitSessionTransition(sink statsd.Sink, transition string) {
	if sink == nil {
		return
	}
	sink.Count("session.transition", 1, map[string]string{"transition": transition})
}

func statusTag(status int) string {
	if status <= 0 {
		return "none"
	}
	return strconv.Itoa(status)
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
