// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package kafka implements the broker capability on the native franz-go
// client: kadm for topic administration and one kgo producer per worker.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/absmach/fluxbench/broker"
)

// Config holds Kafka backend settings.
type Config struct {
	// SeedBrokers is the bootstrap server list.
	SeedBrokers []string

	// ReplicationFactor for created topics; -1 uses the broker default.
	ReplicationFactor int
}

// Client is the Kafka-backed broker client.
type Client struct {
	conn        *kgo.Client
	admin       *kadm.Client
	seeds       []string
	replication int16
	logger      *slog.Logger
}

// NewClient connects to the cluster given by cfg.SeedBrokers.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if len(cfg.SeedBrokers) == 0 {
		return nil, broker.ErrNoServers
	}

	conn, err := kgo.NewClient(kgo.SeedBrokers(cfg.SeedBrokers...))
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	replication := int16(cfg.ReplicationFactor)
	if cfg.ReplicationFactor == 0 {
		replication = -1
	}

	return &Client{
		conn:        conn,
		admin:       kadm.NewClient(conn),
		seeds:       cfg.SeedBrokers,
		replication: replication,
		logger:      logger,
	}, nil
}

// CreateTopic creates the topic with the given partition count. An already
// existing topic is success.
func (c *Client) CreateTopic(ctx context.Context, name string, partitions int) error {
	_, err := c.admin.CreateTopic(ctx, int32(partitions), c.replication, nil, name)
	if err != nil {
		if errors.Is(err, kerr.TopicAlreadyExists) {
			c.logger.Info("topic already exists", "topic", name)
			return nil
		}
		return fmt.Errorf("create topic %s: %w", name, err)
	}
	c.logger.Info("topic created", "topic", name, "partitions", partitions)
	return nil
}

// DeleteTopic removes the topic. A missing topic is success.
func (c *Client) DeleteTopic(ctx context.Context, name string) error {
	_, err := c.admin.DeleteTopic(ctx, name)
	if err != nil {
		if errors.Is(err, kerr.UnknownTopicOrPartition) {
			c.logger.Info("topic does not exist", "topic", name)
			return nil
		}
		return fmt.Errorf("delete topic %s: %w", name, err)
	}
	c.logger.Info("topic deleted", "topic", name)
	return nil
}

// ListTopics returns all topic names in the cluster.
func (c *Client) ListTopics(ctx context.Context) ([]string, error) {
	details, err := c.admin.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return details.Names(), nil
}

// NewProducer opens a dedicated kgo client for one worker. A separate
// connection per worker keeps producer batching and backpressure independent
// across workers.
func (c *Client) NewProducer(_ context.Context, clientID string) (broker.Producer, error) {
	if clientID == "" {
		return nil, broker.ErrEmptyClientID
	}

	conn, err := kgo.NewClient(
		kgo.SeedBrokers(c.seeds...),
		kgo.ClientID(clientID),
	)
	if err != nil {
		return nil, fmt.Errorf("create producer %s: %w", clientID, err)
	}
	return &producer{conn: conn}, nil
}

// Close shuts down the admin connection.
func (c *Client) Close() error {
	c.conn.Close()
	return nil
}

type producer struct {
	conn *kgo.Client
}

func (p *producer) Send(ctx context.Context, topic string, payload []byte, sent time.Time, ack broker.AckFunc) {
	rec := &kgo.Record{
		Topic:     topic,
		Value:     payload,
		Timestamp: sent,
	}
	p.conn.Produce(ctx, rec, promise(ack))
}

// promise adapts an AckFunc into a kgo produce callback. The record timestamp
// is only rewritten by the broker when the topic uses log-append time; under
// the default create-time policy it still holds the producer-set send time,
// which would measure a zero latency. The ack therefore carries the
// acknowledgment arrival time.
func promise(ack broker.AckFunc) func(*kgo.Record, error) {
	return func(_ *kgo.Record, err error) {
		if err != nil {
			ack(broker.Ack{Err: err})
			return
		}
		ack(broker.Ack{BrokerTime: time.Now()})
	}
}

func (p *producer) Flush(ctx context.Context) error {
	return p.conn.Flush(ctx)
}

func (p *producer) Close() error {
	p.conn.Close()
	return nil
}
