//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package metrics accumulates in-memory request counters and pipeline
// timing samples. State lives for the process lifetime; there is no
// persistence and no reset other than restart (and the test-only Reset).
package metrics

import (
	"math"
	"sort"
	"sync"
)

// TimingBufferSize is the number of recent timing samples retained for
// percentile computation. Older samples are dropped from the buffer but
// remain reflected in the running sums used for all-time averages.
const TimingBufferSize = 20

// Sample holds the four stage durations of one pipeline run, in
// milliseconds. The same shape carries averages and percentiles in a
// snapshot.
type Sample struct {
	RetrieveMS float64 `json:"retrieve_ms"`
	WebMS      float64 `json:"web_ms"`
	GenerateMS float64 `json:"generate_ms"`
	TotalMS    float64 `json:"total_ms"`
}

// TimingStats summarizes the recorded samples.
type TimingStats struct {
	AverageMS Sample `json:"average_ms"`
	P50MS     Sample `json:"p50_ms"`
	P95MS     Sample `json:"p95_ms"`
}

// Snapshot is a point-in-time, immutable copy of all metrics.
type Snapshot struct {
	RequestsByPath map[string]uint64 `json:"requests_by_path"`
	ErrorsByPath   map[string]uint64 `json:"errors_by_path"`
	Timings        TimingStats       `json:"timings"`
	SampleCount    uint64            `json:"sample_count"`
	Samples        []Sample          `json:"samples"`
}

// Aggregator accumulates counters and timing samples. All mutation happens
// under a single lock; Snapshot copies under the lock and derives averages
// and percentiles outside it.
type Aggregator struct {
	mu       sync.Mutex
	requests map[string]uint64
	errors   map[string]uint64
	samples  []Sample
	sums     Sample
	count    uint64
}

// NewAggregator creates an empty metrics aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		requests: make(map[string]uint64),
		errors:   make(map[string]uint64),
		samples:  make([]Sample, 0, TimingBufferSize),
	}
}

// RecordRequest counts one request for path, and one error when isError.
func (a *Aggregator) RecordRequest(path string, isError bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests[path]++
	if isError {
		a.errors[path]++
	}
}

// RecordTimings appends a timing sample. The ring buffer drops the oldest
// sample beyond TimingBufferSize; the running sums and count track every
// sample ever recorded.
func (a *Aggregator) RecordTimings(s Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.samples = append(a.samples, s)
	if len(a.samples) > TimingBufferSize {
		a.samples = a.samples[1:]
	}

	a.sums.RetrieveMS += s.RetrieveMS
	a.sums.WebMS += s.WebMS
	a.sums.GenerateMS += s.GenerateMS
	a.sums.TotalMS += s.TotalMS
	a.count++
}

// Snapshot returns a consistent copy of all counters plus derived timing
// statistics. With zero samples all averages and percentiles are 0.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	requests := make(map[string]uint64, len(a.requests))
	for path, n := range a.requests {
		requests[path] = n
	}
	errors := make(map[string]uint64, len(a.errors))
	for path, n := range a.errors {
		errors[path] = n
	}
	samples := make([]Sample, len(a.samples))
	copy(samples, a.samples)
	sums := a.sums
	count := a.count
	a.mu.Unlock()

	snap := Snapshot{
		RequestsByPath: requests,
		ErrorsByPath:   errors,
		SampleCount:    count,
		Samples:        samples,
	}

	if count > 0 {
		n := float64(count)
		snap.Timings.AverageMS = Sample{
			RetrieveMS: sums.RetrieveMS / n,
			WebMS:      sums.WebMS / n,
			GenerateMS: sums.GenerateMS / n,
			TotalMS:    sums.TotalMS / n,
		}
	}

	if len(samples) > 0 {
		snap.Timings.P50MS = percentileSample(samples, 50)
		snap.Timings.P95MS = percentileSample(samples, 95)
	}

	return snap
}

// Reset clears all counters and samples. Intended for tests.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = make(map[string]uint64)
	a.errors = make(map[string]uint64)
	a.samples = a.samples[:0]
	a.sums = Sample{}
	a.count = 0
}

// percentileSample computes the per-field nearest-rank percentile over the
// buffered samples.
func percentileSample(samples []Sample, p float64) Sample {
	extract := func(get func(Sample) float64) float64 {
		values := make([]float64, len(samples))
		for i, s := range samples {
			values[i] = get(s)
		}
		return percentile(values, p)
	}

	return Sample{
		RetrieveMS: extract(func(s Sample) float64 { return s.RetrieveMS }),
		WebMS:      extract(func(s Sample) float64 { return s.WebMS }),
		GenerateMS: extract(func(s Sample) float64 { return s.GenerateMS }),
		TotalMS:    extract(func(s Sample) float64 { return s.TotalMS }),
	}
}

// percentile selects the nearest-rank value:
// index = clamp(round(p/100 * (len-1)), 0, len-1) on ascending values.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := int(math.Round(p / 100.0 * float64(len(sorted)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
