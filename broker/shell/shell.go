// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package shell implements the broker capability by driving the standard
// Kafka command-line tools: kafka-topics for administration and one
// long-lived kafka-console-producer process per worker, fed over stdin.
//
// The console producer reports no per-message acknowledgment, so the ack
// latency is the pipe-accept latency: an approximation, useful for relative
// comparisons only.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/absmach/fluxbench/broker"
)

// Config holds the external-tool backend settings.
type Config struct {
	// BootstrapServers is the comma-separated broker list passed to the
	// tools.
	BootstrapServers string

	// ClientConfigFile is passed as --command-config / --producer.config
	// when set.
	ClientConfigFile string

	// TopicsCommand is the admin tool name; defaults to "kafka-topics".
	TopicsCommand string

	// ProducerCommand is the producer tool name; defaults to
	// "kafka-console-producer".
	ProducerCommand string
}

func (c *Config) applyDefaults() {
	if c.TopicsCommand == "" {
		c.TopicsCommand = "kafka-topics"
	}
	if c.ProducerCommand == "" {
		c.ProducerCommand = "kafka-console-producer"
	}
}

// Client is the CLI-tool-backed broker client.
type Client struct {
	cfg    Config
	logger *slog.Logger
}

// NewClient validates cfg. No process is started until an operation runs.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BootstrapServers == "" {
		return nil, broker.ErrNoServers
	}
	cfg.applyDefaults()
	return &Client{cfg: cfg, logger: logger}, nil
}

func (c *Client) adminArgs(extra ...string) []string {
	args := []string{"--bootstrap-server", c.cfg.BootstrapServers}
	if c.cfg.ClientConfigFile != "" {
		args = append(args, "--command-config", c.cfg.ClientConfigFile)
	}
	return append(args, extra...)
}

func (c *Client) runAdmin(ctx context.Context, extra ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.cfg.TopicsCommand, c.adminArgs(extra...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s %s: %w: %s",
			c.cfg.TopicsCommand, strings.Join(extra, " "), err, bytes.TrimSpace(out))
	}
	return string(out), nil
}

// CreateTopic creates the topic via kafka-topics --create. An existing topic
// is success.
func (c *Client) CreateTopic(ctx context.Context, name string, partitions int) error {
	existing, err := c.ListTopics(ctx)
	if err != nil {
		return err
	}
	for _, t := range existing {
		if t == name {
			c.logger.Info("topic already exists", "topic", name)
			return nil
		}
	}

	if _, err := c.runAdmin(ctx, "--create", "--topic", name,
		"--partitions", strconv.Itoa(partitions)); err != nil {
		return fmt.Errorf("create topic %s: %w", name, err)
	}
	c.logger.Info("topic created", "topic", name, "partitions", partitions)
	return nil
}

// DeleteTopic removes the topic via kafka-topics --delete. A missing topic
// is success.
func (c *Client) DeleteTopic(ctx context.Context, name string) error {
	existing, err := c.ListTopics(ctx)
	if err != nil {
		return err
	}
	found := false
	for _, t := range existing {
		if t == name {
			found = true
			break
		}
	}
	if !found {
		c.logger.Info("topic does not exist", "topic", name)
		return nil
	}

	if _, err := c.runAdmin(ctx, "--delete", "--topic", name); err != nil {
		return fmt.Errorf("delete topic %s: %w", name, err)
	}
	c.logger.Info("topic deleted", "topic", name)
	return nil
}

// ListTopics runs kafka-topics --list.
func (c *Client) ListTopics(ctx context.Context) ([]string, error) {
	out, err := c.runAdmin(ctx, "--list")
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	var topics []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			topics = append(topics, line)
		}
	}
	return topics, nil
}

// NewProducer prepares a console-producer session. The subprocess starts
// lazily on the first Send, once the topic is known.
func (c *Client) NewProducer(_ context.Context, clientID string) (broker.Producer, error) {
	if clientID == "" {
		return nil, broker.ErrEmptyClientID
	}
	return &producer{cfg: c.cfg, clientID: clientID, logger: c.logger}, nil
}

// Close releases the client; producer subprocesses are owned by the workers.
func (c *Client) Close() error {
	return nil
}

type producer struct {
	cfg      Config
	clientID string
	logger   *slog.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	topic  string
	closed bool
}

func (p *producer) start(topic string) error {
	args := []string{
		"--bootstrap-server", p.cfg.BootstrapServers,
		"--topic", topic,
	}
	if p.cfg.ClientConfigFile != "" {
		args = append(args, "--producer.config", p.cfg.ClientConfigFile)
	}

	cmd := exec.Command(p.cfg.ProducerCommand, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("producer stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.cfg.ProducerCommand, err)
	}
	p.logger.Debug("console producer started",
		"client_id", p.clientID, "topic", topic, "pid", cmd.Process.Pid)

	p.cmd = cmd
	p.stdin = stdin
	p.topic = topic
	return nil
}

// Send writes one line to the console producer. The payload must not contain
// newlines (the benchmark payloads never do). The ack resolves as soon as
// the pipe accepts the line.
func (p *producer) Send(_ context.Context, topic string, payload []byte, _ time.Time, ack broker.AckFunc) {
	if p.closed {
		ack(broker.Ack{Err: broker.ErrProducerClosed})
		return
	}
	if p.cmd == nil {
		if err := p.start(topic); err != nil {
			ack(broker.Ack{Err: err})
			return
		}
	}
	if topic != p.topic {
		ack(broker.Ack{Err: broker.ErrTopicMismatch})
		return
	}

	line := make([]byte, 0, len(payload)+1)
	line = append(line, payload...)
	line = append(line, '\n')
	if _, err := p.stdin.Write(line); err != nil {
		ack(broker.Ack{Err: err})
		return
	}
	ack(broker.Ack{BrokerTime: time.Now()})
}

// Flush has nothing to wait for: writes are synchronous and the console
// producer buffers internally.
func (p *producer) Flush(context.Context) error {
	return nil
}

// Close ends the subprocess by closing its stdin and waiting briefly before
// killing it.
func (p *producer) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if p.cmd == nil {
		return nil
	}

	_ = p.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		_ = p.cmd.Process.Kill()
		<-done
		return fmt.Errorf("%s did not exit, killed", p.cfg.ProducerCommand)
	}
}
