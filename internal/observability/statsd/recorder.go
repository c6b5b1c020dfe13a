package statsd

import (
	"maps"
	"sync"
	"time"
)

// Metric is one observation captured by a Recorder.
type Metric struct {
	Name     string
	Value    int64
	Duration time.Duration
	Tags     map[string]string
}

// Recorder is an in-memory Sink for tests and dry runs.
type Recorder struct {
	mu      sync.Mutex
	counts  []Metric
	timings []Metric
}

var _ Sink = (*Recorder)(nil)

func (r *Recorder) Count(name string, value int64, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = append(r.counts, Metric{Name: name, Value: value, Tags: cloneTags(tags)})
}

func (r *Recorder) Timing(name string, value time.Duration, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timings = append(r.timings, Metric{Name: name, Duration: value, Tags: cloneTags(tags)})
}

// Counts returns the recorded counters named name.
func (r *Recorder) Counts(name string) []Metric {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Metric
	for _, m := range r.counts {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// Timings returns the recorded timings named name.
func (r *Recorder) Timings(name string) []Metric {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Metric
	for _, m := range r.timings {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// cloneTags copies tags so later writes by the caller do not reach recorded metrics.
func cloneTags(tags map[string]string) map[string]string {
	return maps.Clone(tags)
}
