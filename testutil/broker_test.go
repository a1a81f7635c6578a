// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/absmach/fluxbench/broker"
)

func TestCreateTopicIdempotent(t *testing.T) {
	fb := &FakeBroker{}
	ctx := context.Background()

	if err := fb.CreateTopic(ctx, "t", 4); err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	// The second create must succeed and leave the topic unmodified.
	if err := fb.CreateTopic(ctx, "t", 8); err != nil {
		t.Fatalf("second CreateTopic: %v", err)
	}
	if got := fb.Partitions("t"); got != 4 {
		t.Errorf("partitions = %d, want 4 (existing topic unmodified)", got)
	}
	if fb.CreateCalls() != 2 {
		t.Errorf("create calls = %d, want 2", fb.CreateCalls())
	}
}

func TestDeleteTopic(t *testing.T) {
	fb := &FakeBroker{}
	ctx := context.Background()

	if err := fb.CreateTopic(ctx, "t", 3); err != nil {
		t.Fatal(err)
	}
	if err := fb.DeleteTopic(ctx, "t"); err != nil {
		t.Fatalf("DeleteTopic: %v", err)
	}
	names, err := fb.ListTopics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Errorf("topics remain after delete: %v", names)
	}
}

func TestProducerFailureInjection(t *testing.T) {
	fb := &FakeBroker{
		ProducerErr: map[string]error{"down": errors.New("refused")},
		SendErr:     map[string]error{"flaky": errors.New("timeout")},
	}
	ctx := context.Background()

	if _, err := fb.NewProducer(ctx, "down"); err == nil {
		t.Error("expected injected producer error")
	}

	p, err := fb.NewProducer(ctx, "flaky")
	if err != nil {
		t.Fatal(err)
	}
	var got broker.Ack
	p.Send(ctx, "t", []byte("x"), time.Now(), func(a broker.Ack) { got = a })
	if got.Err == nil {
		t.Error("expected injected send error")
	}

	ok, err := fb.NewProducer(ctx, "healthy")
	if err != nil {
		t.Fatal(err)
	}
	sent := time.Now()
	ok.Send(ctx, "t", []byte("x"), sent, func(a broker.Ack) { got = a })
	if got.Err != nil || !got.BrokerTime.Equal(sent) {
		t.Errorf("unexpected ack: %+v", got)
	}
}
