// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package engine executes benchmark scenarios: it fans a scenario out over
// concurrent producer workers, collects their measurements, and runs a list
// of scenarios as a fail-fast pipeline with incremental reporting.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/absmach/fluxbench/broker"
	"github.com/absmach/fluxbench/metrics"
	"github.com/absmach/fluxbench/scenario"
)

// abandonWindow bounds how long the orchestrator waits for workers after
// cancelling them. A worker stuck in a backend call past this point is
// abandoned and counted as failed.
const abandonWindow = 2 * time.Second

// Orchestrator runs one scenario across N concurrent workers.
type Orchestrator struct {
	Client broker.Client

	// Stagger separates worker launches.
	Stagger time.Duration

	// Grace is how long workers may run past the scenario duration before
	// they are cancelled.
	Grace time.Duration

	// BatchSize is the pacing batch size handed to each worker.
	BatchSize int

	Logger *slog.Logger
}

type workerOutcome struct {
	m   metrics.ProducerMetrics
	err error
}

type indexedOutcome struct {
	workerOutcome
	idx int
}

// Run executes spec against topic with spec.Producers concurrent workers and
// returns their metrics in worker index order. The slice always has length
// spec.Producers; entries for failed workers are zero-valued. The error
// classifies worker failures: nil when all succeeded, ErrAllProducersFailed
// or ErrPartialProducerFailure otherwise.
func (o *Orchestrator) Run(ctx context.Context, spec scenario.Spec, topic, outputDir string) ([]metrics.ProducerMetrics, error) {
	n := spec.Producers
	o.Logger.Info("scenario started",
		slog.String("scenario", spec.Name),
		slog.String("topic", topic),
		slog.Int("producers", n),
		slog.Int("duration", spec.Duration),
	)

	// Workers get the scenario duration, the grace period, and the launch
	// stagger of the last worker; past that they are cancelled.
	limit := time.Duration(spec.Duration)*time.Second + o.Grace + time.Duration(n-1)*o.Stagger
	runCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	outcomes := make(chan indexedOutcome, n)
	for i := 0; i < n; i++ {
		if i > 0 && o.Stagger > 0 {
			select {
			case <-time.After(o.Stagger):
			case <-ctx.Done():
			}
		}

		go func(idx int) {
			outcomes <- indexedOutcome{idx: idx, workerOutcome: o.runWorker(runCtx, spec, topic, outputDir, idx)}
		}(i)
	}

	results := make([]metrics.ProducerMetrics, n)
	collected := make([]bool, n)
	deadline := time.After(limit + abandonWindow)
	var failures int
	for got := 0; got < n; got++ {
		var out indexedOutcome
		select {
		case out = <-outcomes:
		case <-deadline:
			// Stuck workers are abandoned; their missing outcomes read as
			// failures below.
			o.Logger.Error("workers did not stop in time, abandoning",
				slog.String("scenario", spec.Name),
				slog.Int("missing", n-got))
			got = n
			continue
		}

		results[out.idx] = out.m
		collected[out.idx] = true
		if out.err != nil {
			o.Logger.Error("producer failed",
				slog.String("scenario", spec.Name),
				slog.Int("producer", out.idx+1),
				slog.Any("error", out.err),
			)
		}
	}

	for i := range results {
		if !collected[i] || results[i].RecordCount == 0 {
			failures++
		}
	}

	switch {
	case failures == n:
		return results, ErrAllProducersFailed
	case failures > 0:
		return results, fmt.Errorf("%w: %d of %d", ErrPartialProducerFailure, failures, n)
	default:
		return results, nil
	}
}

// runWorker constructs a producer session and drives one worker with it.
// Construction failure is a worker failure, not a scenario abort.
func (o *Orchestrator) runWorker(ctx context.Context, spec scenario.Spec, topic, outputDir string, idx int) workerOutcome {
	id := idx + 1
	clientID := fmt.Sprintf("%s-producer-%d", spec.Name, id)

	p, err := o.Client.NewProducer(ctx, clientID)
	if err != nil {
		return workerOutcome{err: fmt.Errorf("producer %d: connect: %w", id, err)}
	}
	defer p.Close()

	w := &Worker{
		ID:        id,
		Spec:      spec,
		Topic:     topic,
		BatchSize: o.BatchSize,
		OutputDir: outputDir,
		Logger:    o.Logger,
	}
	m, err := w.Run(ctx, p)
	return workerOutcome{m: m, err: err}
}
