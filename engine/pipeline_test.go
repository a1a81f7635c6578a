// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/absmach/fluxbench/config"
	"github.com/absmach/fluxbench/report"
	"github.com/absmach/fluxbench/scenario"
	"github.com/absmach/fluxbench/testutil"
)

func pipelineSpecs(names ...string) []scenario.Spec {
	specs := make([]scenario.Spec, len(names))
	for i, name := range names {
		specs[i] = scenario.Spec{
			Name:        name,
			MessageSize: 32,
			Throughput:  1000,
			Duration:    1,
			Producers:   1,
		}
	}
	return specs
}

func newPipeline(t *testing.T, fb *testutil.FakeBroker, modify func(*config.RunConfig)) (*Pipeline, string) {
	t.Helper()
	dir := t.TempDir()
	run := config.RunConfig{
		TopicPrefix:  "bench",
		ResultsDir:   dir,
		Cooldown:     0,
		StaggerDelay: 0,
		GracePeriod:  2 * time.Second,
		BatchSize:    100,
	}
	if modify != nil {
		modify(&run)
	}
	w := report.NewWriter(dir, "fake:9092", testLogger())
	return NewPipeline(fb, run, w, testLogger()), dir
}

func TestPipelineRunsAllScenarios(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	fb := &testutil.FakeBroker{}
	pl, dir := newPipeline(t, fb, nil)

	if err := pl.Run(context.Background(), pipelineSpecs("first", "second")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pl.State() != Completed {
		t.Errorf("state = %v, want completed", pl.State())
	}
	if got := len(pl.Results()); got != 2 {
		t.Fatalf("expected 2 results, got %d", got)
	}

	// Topics are provisioned per scenario and torn down afterwards.
	if fb.CreateCalls() != 2 || fb.DeleteCalls() != 2 {
		t.Errorf("create/delete calls = %d/%d, want 2/2", fb.CreateCalls(), fb.DeleteCalls())
	}

	for _, path := range []string{
		filepath.Join(dir, "summary.csv"),
		filepath.Join(dir, "report.html"),
		filepath.Join(dir, "first", "results.csv"),
		filepath.Join(dir, "first", "producer_1.txt"),
		filepath.Join(dir, "second", "results.csv"),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing artifact %s: %v", path, err)
		}
	}
}

func TestPipelineTopicPartitions(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	fb := &testutil.FakeBroker{}
	pl, _ := newPipeline(t, fb, nil)

	specs := pipelineSpecs("wide")
	specs[0].Producers = 4
	if err := pl.Run(context.Background(), specs); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Partition count is recorded before the deferred delete removes the
	// topic, so check create behavior through a keep-topics run instead.
	fb2 := &testutil.FakeBroker{}
	pl2, _ := newPipeline(t, fb2, func(r *config.RunConfig) { r.KeepTopics = true })
	if err := pl2.Run(context.Background(), specs); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := fb2.Partitions("bench-wide"); got != 8 {
		t.Errorf("partitions = %d, want 8", got)
	}
	if fb2.DeleteCalls() != 0 {
		t.Errorf("keep-topics run deleted topics: %d calls", fb2.DeleteCalls())
	}
}

func TestPipelineFailFast(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	fb := &testutil.FakeBroker{
		SendErr: map[string]error{"broken-producer-1": errors.New("broker unavailable")},
	}
	pl, dir := newPipeline(t, fb, nil)

	err := pl.Run(context.Background(), pipelineSpecs("good", "broken", "never"))
	if !errors.Is(err, ErrScenarioFailed) {
		t.Fatalf("expected ErrScenarioFailed, got %v", err)
	}
	if pl.State() != Aborted {
		t.Errorf("state = %v, want aborted", pl.State())
	}

	// The failed scenario still contributes a result; the third never runs.
	results := pl.Results()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[1].Spec.Name != "broken" || results[1].Success() {
		t.Errorf("unexpected failed result: %+v", results[1])
	}
	if fb.CreateCalls() != 2 {
		t.Errorf("create calls = %d, want 2 (third scenario must not run)", fb.CreateCalls())
	}

	// Partial artifacts survive the abort.
	if _, err := os.Stat(filepath.Join(dir, "good", "results.csv")); err != nil {
		t.Errorf("missing completed scenario artifact: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "report.html")); err != nil {
		t.Errorf("missing partial report: %v", err)
	}
}

func TestPipelinePartialFailureAborts(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	// One of two producers in the first scenario cannot connect. The
	// scenario still produced records, but a failed worker is fatal: the
	// run must abort without starting the second scenario.
	fb := &testutil.FakeBroker{
		ProducerErr: map[string]error{"partial-producer-2": errors.New("connection refused")},
	}
	pl, dir := newPipeline(t, fb, nil)

	specs := pipelineSpecs("partial", "after")
	specs[0].Producers = 2

	err := pl.Run(context.Background(), specs)
	if !errors.Is(err, ErrScenarioFailed) {
		t.Fatalf("expected ErrScenarioFailed, got %v", err)
	}
	if !errors.Is(err, ErrPartialProducerFailure) {
		t.Fatalf("expected ErrPartialProducerFailure in chain, got %v", err)
	}
	if pl.State() != Aborted {
		t.Errorf("state = %v, want aborted", pl.State())
	}

	results := pl.Results()
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !results[0].Success() {
		t.Error("partial scenario should still report its records")
	}
	if fb.CreateCalls() != 1 {
		t.Errorf("create calls = %d, want 1 (second scenario must not run)", fb.CreateCalls())
	}

	// The partial scenario's artifacts are still written.
	if _, err := os.Stat(filepath.Join(dir, "partial", "results.csv")); err != nil {
		t.Errorf("missing scenario artifact: %v", err)
	}
}

func TestPipelineTopicCreationFailure(t *testing.T) {
	fb := &testutil.FakeBroker{CreateErr: errors.New("authorization failed")}
	pl, _ := newPipeline(t, fb, nil)

	err := pl.Run(context.Background(), pipelineSpecs("denied"))
	if !errors.Is(err, ErrScenarioFailed) {
		t.Fatalf("expected ErrScenarioFailed, got %v", err)
	}
	if len(pl.Results()) != 0 {
		t.Error("topic creation failure must not produce a result")
	}
}

func TestPipelineNoScenarios(t *testing.T) {
	fb := &testutil.FakeBroker{}
	pl, _ := newPipeline(t, fb, nil)
	if err := pl.Run(context.Background(), nil); !errors.Is(err, ErrNoScenarios) {
		t.Fatalf("expected ErrNoScenarios, got %v", err)
	}
}

func TestPipelineCancelledBetweenScenarios(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	fb := &testutil.FakeBroker{}
	pl, _ := newPipeline(t, fb, func(r *config.RunConfig) { r.Cooldown = 10 * time.Second })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// Cancel during the cooldown after the first scenario.
		time.Sleep(1500 * time.Millisecond)
		cancel()
	}()

	err := pl.Run(ctx, pipelineSpecs("first", "second"))
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if got := len(pl.Results()); got != 1 {
		t.Errorf("expected 1 result before cancellation, got %d", got)
	}
	if fb.CreateCalls() != 1 {
		t.Errorf("create calls = %d, want 1", fb.CreateCalls())
	}
}
