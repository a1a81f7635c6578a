// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package broker defines the capability surface the benchmark engine needs
// from a publish/subscribe broker: topic administration and asynchronous
// publishing. The engine depends only on these interfaces; the concrete
// backend (native Kafka client, native MQTT client, or external CLI tools)
// is selected once at construction.
package broker

import (
	"context"
	"time"
)

// Ack is the acknowledgment for one sent message.
type Ack struct {
	// BrokerTime is the server-observed timestamp for the message when the
	// backend reports one, or the client-side receive time otherwise.
	BrokerTime time.Time

	// Err is non-nil when the send failed.
	Err error
}

// AckFunc receives the acknowledgment for one send. It is invoked exactly
// once per Send, possibly from the backend's network goroutine.
type AckFunc func(Ack)

// Producer is one independent publishing session. A producer is owned by a
// single worker and is not safe for concurrent use.
type Producer interface {
	// Send publishes payload to topic with the given send timestamp. It is
	// asynchronous: ack is invoked when the broker acknowledges or rejects
	// the message. Send may block briefly on backpressure.
	Send(ctx context.Context, topic string, payload []byte, sent time.Time, ack AckFunc)

	// Flush blocks until every outstanding send has been acknowledged or
	// the context expires.
	Flush(ctx context.Context) error

	// Close releases the session. Pending acknowledgments may be dropped.
	Close() error
}

// Client is the shared broker handle for a run.
type Client interface {
	// CreateTopic creates a topic with the given partition count. It is
	// idempotent: an existing topic is left unmodified and reported as
	// success.
	CreateTopic(ctx context.Context, name string, partitions int) error

	// DeleteTopic removes a topic. Failures are best-effort: callers log
	// and continue.
	DeleteTopic(ctx context.Context, name string) error

	// ListTopics returns the topic names known to the broker.
	ListTopics(ctx context.Context) ([]string, error)

	// NewProducer opens an independent publishing session identified by
	// clientID.
	NewProducer(ctx context.Context, clientID string) (Producer, error)

	// Close releases the client and all broker connections it owns.
	Close() error
}
