// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/absmach/fluxbench/broker"
	"github.com/absmach/fluxbench/config"
	"github.com/absmach/fluxbench/metrics"
	"github.com/absmach/fluxbench/report"
	"github.com/absmach/fluxbench/scenario"
)

// State is the pipeline lifecycle state.
type State int

const (
	Pending State = iota
	Running
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Pipeline runs a list of scenarios in order and stops at the first failure.
// Artifacts are written incrementally, so an aborted run keeps the results of
// every scenario that finished, plus the failed one.
type Pipeline struct {
	client broker.Client
	run    config.RunConfig
	writer *report.Writer
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	results []*metrics.Result
}

// NewPipeline builds a pipeline over the given broker client.
func NewPipeline(client broker.Client, run config.RunConfig, writer *report.Writer, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		client: client,
		run:    run,
		writer: writer,
		logger: logger,
		state:  Pending,
	}
}

// State returns the current lifecycle state.
func (pl *Pipeline) State() State {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.state
}

// Results returns the results collected so far, in execution order. A failed
// scenario's result is included when its workers ran.
func (pl *Pipeline) Results() []*metrics.Result {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return append([]*metrics.Result(nil), pl.results...)
}

// Run executes the scenarios in order. A scenario that has started always
// runs to completion; cancellation takes effect at scenario boundaries. On
// the first scenario failure the pipeline aborts, keeping all artifacts
// written so far, and returns an error wrapping ErrScenarioFailed.
func (pl *Pipeline) Run(ctx context.Context, specs []scenario.Spec) error {
	if len(specs) == 0 {
		return ErrNoScenarios
	}

	pl.setState(Running)
	if err := pl.writer.Init(); err != nil {
		pl.setState(Aborted)
		return fmt.Errorf("initialize report: %w", err)
	}

	for i, spec := range specs {
		if err := ctx.Err(); err != nil {
			pl.setState(Aborted)
			return fmt.Errorf("run cancelled before %q: %w", spec.Name, err)
		}

		if i > 0 && pl.run.Cooldown > 0 {
			pl.logger.Info("cooldown before next scenario",
				slog.Duration("cooldown", pl.run.Cooldown))
			select {
			case <-time.After(pl.run.Cooldown):
			case <-ctx.Done():
				pl.setState(Aborted)
				return fmt.Errorf("run cancelled before %q: %w", spec.Name, ctx.Err())
			}
		}

		// The scenario is atomic once started: it runs on a context that
		// survives cancellation, bounded by the orchestrator's own cap.
		res, err := pl.runScenario(context.WithoutCancel(ctx), spec)
		if res != nil {
			pl.appendResult(res)
			pl.report(res)
		}
		if err != nil {
			pl.setState(Aborted)
			pl.logger.Error("scenario failed, aborting remaining scenarios",
				slog.String("scenario", spec.Name),
				slog.Int("remaining", len(specs)-i-1),
				slog.Any("error", err),
			)
			return fmt.Errorf("%w: %s: %w", ErrScenarioFailed, spec.Name, err)
		}
	}

	pl.setState(Completed)
	return nil
}

// runScenario provisions the topic, orchestrates the workers, and tears the
// topic down. The result is non-nil whenever the workers ran, including on
// classification errors, so the caller can still report partial measurements.
func (pl *Pipeline) runScenario(ctx context.Context, spec scenario.Spec) (*metrics.Result, error) {
	topic := fmt.Sprintf("%s-%s", pl.run.TopicPrefix, spec.Name)
	partitions := spec.Partitions()

	pl.logger.Info("creating topic",
		slog.String("topic", topic),
		slog.Int("partitions", partitions))
	if err := pl.client.CreateTopic(ctx, topic, partitions); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTopicCreation, topic, err)
	}
	if !pl.run.KeepTopics {
		defer func() {
			if err := pl.client.DeleteTopic(ctx, topic); err != nil {
				pl.logger.Warn("topic not deleted", slog.String("topic", topic), slog.Any("error", err))
			}
		}()
	}

	orch := &Orchestrator{
		Client:    pl.client,
		Stagger:   pl.run.StaggerDelay,
		Grace:     pl.run.GracePeriod,
		BatchSize: pl.run.BatchSize,
		Logger:    pl.logger,
	}
	outputDir := filepath.Join(pl.run.ResultsDir, spec.Name)
	producerMetrics, err := orch.Run(ctx, spec, topic, outputDir)

	res := metrics.NewResult(spec, producerMetrics)
	if werr := pl.writer.WriteScenarioCSV(toReportResult(res)); werr != nil {
		pl.logger.Warn("scenario csv not written",
			slog.String("scenario", spec.Name), slog.Any("error", werr))
	}

	// Any producer failure is fatal to the scenario: a broken worker usually
	// means a shared resource problem that would skew later measurements. The
	// partial result is still returned so it reaches the artifacts.
	if err != nil {
		return res, err
	}

	pl.logger.Info("scenario completed",
		slog.String("scenario", spec.Name),
		slog.Float64("throughput", res.TotalThroughput),
		slog.Float64("throughput_mb", res.ThroughputMBPerSec()),
		slog.Float64("avg_latency_ms", res.AvgLatencyMs),
	)
	return res, nil
}

// report appends the scenario to the summary and regenerates the HTML view.
// Report write failures never fail the run.
func (pl *Pipeline) report(res *metrics.Result) {
	if err := pl.writer.AppendSummary(toReportResult(res)); err != nil {
		pl.logger.Warn("summary not updated",
			slog.String("scenario", res.Spec.Name), slog.Any("error", err))
		return
	}
	if err := pl.writer.RenderHTML(); err != nil {
		pl.logger.Warn("html report not updated",
			slog.String("scenario", res.Spec.Name), slog.Any("error", err))
	}
}

func (pl *Pipeline) setState(s State) {
	pl.mu.Lock()
	pl.state = s
	pl.mu.Unlock()
}

func (pl *Pipeline) appendResult(res *metrics.Result) {
	pl.mu.Lock()
	pl.results = append(pl.results, res)
	pl.mu.Unlock()
}

func toReportResult(res *metrics.Result) *report.Result {
	workers := make([]report.WorkerRow, len(res.Producers))
	for i, m := range res.Producers {
		workers[i] = report.WorkerRow{
			Throughput:      m.Throughput,
			AvgLatencyMs:    m.AvgLatencyMs,
			MaxLatencyMs:    m.MaxLatencyMs,
			DurationSeconds: m.DurationSeconds,
			MessageSize:     m.RecordSizeBytes,
		}
	}
	return &report.Result{
		Scenario:        res.Spec.Name,
		MessageSize:     res.Spec.MessageSize,
		ThroughputLimit: res.Spec.Throughput,
		Duration:        res.Spec.Duration,
		Producers:       res.Spec.Producers,
		TotalThroughput: res.TotalThroughput,
		AvgLatencyMs:    res.AvgLatencyMs,
		MaxLatencyMs:    res.MaxLatencyMs,
		Workers:         workers,
	}
}
