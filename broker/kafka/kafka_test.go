// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package kafka

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/absmach/fluxbench/broker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}, testLogger()); err != broker.ErrNoServers {
		t.Fatalf("expected ErrNoServers, got %v", err)
	}
}

func TestPromiseAckTime(t *testing.T) {
	// A create-time topic echoes the producer-set record timestamp, so the
	// ack must carry the acknowledgment arrival, not the record timestamp.
	sent := time.Now().Add(-20 * time.Millisecond)
	rec := &kgo.Record{Topic: "t", Timestamp: sent}

	var got broker.Ack
	promise(func(a broker.Ack) { got = a })(rec, nil)

	if got.Err != nil {
		t.Fatalf("unexpected ack error: %v", got.Err)
	}
	if !got.BrokerTime.After(sent) {
		t.Errorf("ack time %v not after send time %v", got.BrokerTime, sent)
	}

	promise(func(a broker.Ack) { got = a })(rec, errors.New("broker unavailable"))
	if got.Err == nil {
		t.Error("expected send error to surface on the ack")
	}
}

func TestReplicationDefault(t *testing.T) {
	// kgo connects lazily, so construction succeeds without a broker.
	c, err := NewClient(Config{SeedBrokers: []string{"localhost:9092"}}, testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	if c.replication != -1 {
		t.Errorf("replication = %d, want -1 (broker default)", c.replication)
	}
}
