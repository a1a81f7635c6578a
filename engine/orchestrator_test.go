// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/absmach/fluxbench/scenario"
	"github.com/absmach/fluxbench/testutil"
)

func orchSpec(producers int) scenario.Spec {
	return scenario.Spec{
		Name:        "orch",
		MessageSize: 32,
		Throughput:  1000,
		Duration:    1,
		Producers:   producers,
	}
}

func newOrchestrator(fb *testutil.FakeBroker) *Orchestrator {
	return &Orchestrator{
		Client:    fb,
		Stagger:   10 * time.Millisecond,
		Grace:     2 * time.Second,
		BatchSize: 100,
		Logger:    testLogger(),
	}
}

func TestOrchestratorAllSucceed(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	fb := &testutil.FakeBroker{}
	o := newOrchestrator(fb)

	results, err := o.Run(context.Background(), orchSpec(3), "orch-topic", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 worker results, got %d", len(results))
	}
	for i, m := range results {
		if m.RecordCount == 0 {
			t.Errorf("worker %d produced nothing", i+1)
		}
	}
	for _, p := range fb.Producers() {
		if !p.Closed() {
			t.Errorf("producer %s not closed", p.ClientID)
		}
	}
}

func TestOrchestratorPartialFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	fb := &testutil.FakeBroker{
		ProducerErr: map[string]error{"orch-producer-2": errors.New("connection refused")},
	}
	o := newOrchestrator(fb)

	results, err := o.Run(context.Background(), orchSpec(2), "orch-topic", "")
	if !errors.Is(err, ErrPartialProducerFailure) {
		t.Fatalf("expected ErrPartialProducerFailure, got %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 worker results, got %d", len(results))
	}
	if results[0].RecordCount == 0 {
		t.Error("healthy worker produced nothing")
	}
	if results[1].RecordCount != 0 {
		t.Error("failed worker reported records")
	}
}

func TestOrchestratorAllFail(t *testing.T) {
	fb := &testutil.FakeBroker{
		ProducerErr: map[string]error{"": errors.New("connection refused")},
	}
	o := newOrchestrator(fb)

	results, err := o.Run(context.Background(), orchSpec(2), "orch-topic", "")
	if !errors.Is(err, ErrAllProducersFailed) {
		t.Fatalf("expected ErrAllProducersFailed, got %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 worker results, got %d", len(results))
	}
}
