// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides an in-memory broker implementation with failure
// injection for engine tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/absmach/fluxbench/broker"
)

// FakeBroker implements broker.Client in memory. The zero value is usable;
// set the failure-injection fields before handing it to the engine.
type FakeBroker struct {
	mu     sync.Mutex
	topics map[string]int

	// CreateErr, when set, fails every CreateTopic call.
	CreateErr error

	// ProducerErr fails NewProducer for client IDs present in the map, or
	// for all client IDs under the "" key.
	ProducerErr map[string]error

	// SendErr fails every send on producers whose client ID is present.
	SendErr map[string]error

	// AckLatency delays the reported broker timestamp, simulating broker
	// processing time.
	AckLatency time.Duration

	createCalls int
	deleteCalls int
	producers   []*FakeProducer
}

// CreateCalls reports how many times CreateTopic was invoked.
func (b *FakeBroker) CreateCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createCalls
}

// DeleteCalls reports how many times DeleteTopic was invoked.
func (b *FakeBroker) DeleteCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deleteCalls
}

// Partitions returns the partition count of a created topic, or zero.
func (b *FakeBroker) Partitions(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.topics[name]
}

// Producers returns every producer handed out so far.
func (b *FakeBroker) Producers() []*FakeProducer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*FakeProducer(nil), b.producers...)
}

func (b *FakeBroker) CreateTopic(ctx context.Context, name string, partitions int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.createCalls++
	if b.CreateErr != nil {
		return b.CreateErr
	}
	if b.topics == nil {
		b.topics = make(map[string]int)
	}
	if _, ok := b.topics[name]; !ok {
		b.topics[name] = partitions
	}
	return nil
}

func (b *FakeBroker) DeleteTopic(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleteCalls++
	delete(b.topics, name)
	return nil
}

func (b *FakeBroker) ListTopics(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.topics))
	for name := range b.topics {
		names = append(names, name)
	}
	return names, nil
}

func (b *FakeBroker) NewProducer(ctx context.Context, clientID string) (broker.Producer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ProducerErr[clientID]; err != nil {
		return nil, err
	}
	if err := b.ProducerErr[""]; err != nil {
		return nil, err
	}
	p := &FakeProducer{
		ClientID:   clientID,
		sendErr:    b.SendErr[clientID],
		ackLatency: b.AckLatency,
	}
	b.producers = append(b.producers, p)
	return p, nil
}

func (b *FakeBroker) Close() error { return nil }

// FakeProducer records every payload it is asked to send and acknowledges
// synchronously.
type FakeProducer struct {
	ClientID string

	mu         sync.Mutex
	sendErr    error
	ackLatency time.Duration
	sent       int
	sizes      []int
	closed     bool
	flushed    int
}

// Sent reports the number of Send calls.
func (p *FakeProducer) Sent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent
}

// Flushes reports the number of Flush calls.
func (p *FakeProducer) Flushes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushed
}

// Closed reports whether Close was called.
func (p *FakeProducer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *FakeProducer) Send(ctx context.Context, topic string, payload []byte, sent time.Time, ack broker.AckFunc) {
	p.mu.Lock()
	p.sent++
	p.sizes = append(p.sizes, len(payload))
	err := p.sendErr
	lat := p.ackLatency
	p.mu.Unlock()

	if err != nil {
		ack(broker.Ack{Err: err})
		return
	}
	ack(broker.Ack{BrokerTime: sent.Add(lat)})
}

func (p *FakeProducer) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushed++
	return nil
}

func (p *FakeProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
