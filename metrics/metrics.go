// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package metrics holds the per-producer measurements, their scenario-level
// aggregation, and the scenario result model.
package metrics

import (
	"github.com/absmach/fluxbench/scenario"
)

// ProducerMetrics is the measurement record produced by exactly one worker.
// The worker owns it until it is handed to the aggregator; it is read-only
// afterwards.
type ProducerMetrics struct {
	// Throughput is the achieved rate in records/sec.
	Throughput float64

	// AvgLatencyMs is the mean acknowledgment latency in milliseconds.
	AvgLatencyMs float64

	// MaxLatencyMs is the maximum acknowledgment latency in milliseconds.
	MaxLatencyMs float64

	// DurationSeconds is the actual wall-clock run time.
	DurationSeconds float64

	// RecordCount is the number of acknowledged sends.
	RecordCount int64

	// RecordSizeBytes is the payload size used by the worker.
	RecordSizeBytes int
}

// Aggregates is the scenario-level fold of a set of producer metrics.
type Aggregates struct {
	TotalThroughput float64
	AvgLatencyMs    float64
	MaxLatencyMs    float64
}

// Aggregate folds per-producer metrics into scenario aggregates. Throughput
// is summed since producers are independent. The average latency is the
// unweighted mean of the per-producer averages, which under-weights producers
// that sent more records; the definition is kept for compatibility with the
// summary format consumers. The input must be non-empty.
func Aggregate(producers []ProducerMetrics) Aggregates {
	var agg Aggregates
	for _, m := range producers {
		agg.TotalThroughput += m.Throughput
		agg.AvgLatencyMs += m.AvgLatencyMs
		if m.MaxLatencyMs > agg.MaxLatencyMs {
			agg.MaxLatencyMs = m.MaxLatencyMs
		}
	}
	agg.AvgLatencyMs /= float64(len(producers))
	return agg
}

// Result is the outcome of one scenario: the originating spec, the ordered
// per-producer metrics (index order equals worker index), and the derived
// aggregates.
type Result struct {
	Spec      scenario.Spec
	Producers []ProducerMetrics

	TotalThroughput float64
	AvgLatencyMs    float64
	MaxLatencyMs    float64
}

// NewResult builds a Result and computes its aggregates. producers must be
// non-empty.
func NewResult(spec scenario.Spec, producers []ProducerMetrics) *Result {
	agg := Aggregate(producers)
	return &Result{
		Spec:            spec,
		Producers:       producers,
		TotalThroughput: agg.TotalThroughput,
		AvgLatencyMs:    agg.AvgLatencyMs,
		MaxLatencyMs:    agg.MaxLatencyMs,
	}
}

// Success reports whether the scenario produced any records: true iff at
// least one producer acknowledged at least one record.
func (r *Result) Success() bool {
	for _, m := range r.Producers {
		if m.RecordCount > 0 {
			return true
		}
	}
	return false
}

// ThroughputMBPerSec converts the total record rate to MB/s using the
// scenario message size.
func (r *Result) ThroughputMBPerSec() float64 {
	return r.TotalThroughput * float64(r.Spec.MessageSize) / (1024 * 1024)
}
