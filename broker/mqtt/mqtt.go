// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package mqtt implements the broker capability on the Eclipse Paho MQTT
// client. MQTT topics are implicit, so topic administration is a no-op and
// only publishing carries real work.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/absmach/fluxbench/broker"
)

// Config holds MQTT backend settings.
type Config struct {
	// BrokerURL is the broker address, e.g. "tcp://localhost:1883".
	BrokerURL string

	// Username and Password are optional credentials.
	Username string
	Password string

	// QoS is the publish QoS level (0, 1, or 2). QoS 1 gives per-message
	// acknowledgments, which the latency measurement depends on.
	QoS byte

	// ConnectTimeout bounds the initial connect of each producer.
	ConnectTimeout time.Duration
}

// Client is the MQTT-backed broker client.
type Client struct {
	cfg    Config
	logger *slog.Logger
}

// NewClient validates cfg. Connections are opened per producer.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BrokerURL == "" {
		return nil, broker.ErrNoServers
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("invalid QoS %d", cfg.QoS)
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	return &Client{cfg: cfg, logger: logger}, nil
}

// CreateTopic succeeds without broker interaction: MQTT topics exist as soon
// as something publishes to them, and there is no partition concept to set
// up.
func (c *Client) CreateTopic(_ context.Context, name string, partitions int) error {
	c.logger.Debug("mqtt topics are implicit, create is a no-op",
		"topic", name, "partitions", partitions)
	return nil
}

// DeleteTopic succeeds without broker interaction.
func (c *Client) DeleteTopic(_ context.Context, name string) error {
	c.logger.Debug("mqtt topics are implicit, delete is a no-op", "topic", name)
	return nil
}

// ListTopics is not available over the MQTT protocol.
func (c *Client) ListTopics(context.Context) ([]string, error) {
	return nil, broker.ErrNotSupported
}

// NewProducer connects one MQTT session for a worker. The session ID gets a
// random suffix so reruns never collide with stale sessions the broker still
// holds for a previous run.
func (c *Client) NewProducer(_ context.Context, clientID string) (broker.Producer, error) {
	if clientID == "" {
		return nil, broker.ErrEmptyClientID
	}
	sessionID := clientID + "-" + uuid.NewString()[:8]

	opts := paho.NewClientOptions()
	opts.AddBroker(c.cfg.BrokerURL)
	opts.SetClientID(sessionID)
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(c.cfg.ConnectTimeout)
	opts.SetWriteTimeout(c.cfg.ConnectTimeout)
	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	conn := paho.NewClient(opts)
	token := conn.Connect()
	if !token.WaitTimeout(c.cfg.ConnectTimeout) {
		return nil, fmt.Errorf("connect %s: %w", clientID, broker.ErrClientClosed)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", clientID, err)
	}

	return &producer{conn: conn, qos: c.cfg.QoS}, nil
}

// Close releases the client. Producer connections are closed individually.
func (c *Client) Close() error {
	return nil
}

type producer struct {
	conn    paho.Client
	qos     byte
	pending sync.WaitGroup
}

// Send publishes and resolves the ack from the Paho token. The token only
// completes asynchronously, so a goroutine bridges it onto the AckFunc; the
// broker does not echo a timestamp, so the ack carries the client-side
// completion time.
func (p *producer) Send(ctx context.Context, topic string, payload []byte, _ time.Time, ack broker.AckFunc) {
	token := p.conn.Publish(topic, p.qos, false, payload)

	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		select {
		case <-token.Done():
			if err := token.Error(); err != nil {
				ack(broker.Ack{Err: err})
				return
			}
			ack(broker.Ack{BrokerTime: time.Now()})
		case <-ctx.Done():
			ack(broker.Ack{Err: ctx.Err()})
		}
	}()
}

func (p *producer) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *producer) Close() error {
	p.conn.Disconnect(250)
	return nil
}
