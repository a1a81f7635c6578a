// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// LatencyRecorder accumulates per-message latency samples for one worker.
// The exact running sum and max feed the producer metrics; the histogram
// backs the percentiles written to the per-worker artifact.
//
// It is not safe for concurrent use: the worker's reducer goroutine is the
// only writer.
type LatencyRecorder struct {
	hist  *hdrhistogram.Histogram
	sumMs float64
	maxMs float64
	count int64
}

// NewLatencyRecorder tracks latencies from 1µs to 10min at 3 significant
// figures.
func NewLatencyRecorder() *LatencyRecorder {
	return &LatencyRecorder{
		hist: hdrhistogram.New(1, int64(10*time.Minute/time.Microsecond), 3),
	}
}

// Record adds one latency sample in milliseconds.
func (r *LatencyRecorder) Record(ms float64) {
	if ms < 0 {
		ms = 0
	}
	r.sumMs += ms
	if ms > r.maxMs {
		r.maxMs = ms
	}
	r.count++
	// Out-of-range values are clamped by the histogram bounds; the exact
	// sum/max above are unaffected.
	_ = r.hist.RecordValue(int64(ms * 1000))
}

// Count returns the number of recorded samples.
func (r *LatencyRecorder) Count() int64 {
	return r.count
}

// AvgMs returns the mean latency, or zero when nothing was recorded.
func (r *LatencyRecorder) AvgMs() float64 {
	if r.count == 0 {
		return 0
	}
	return r.sumMs / float64(r.count)
}

// MaxMs returns the maximum latency seen.
func (r *LatencyRecorder) MaxMs() float64 {
	return r.maxMs
}

// QuantileMs returns the latency at quantile q (0..100) in milliseconds.
func (r *LatencyRecorder) QuantileMs(q float64) float64 {
	return float64(r.hist.ValueAtQuantile(q)) / 1000
}
