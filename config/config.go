// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package config holds the harness configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the benchmark harness.
type Config struct {
	Broker BrokerConfig `yaml:"broker"`
	Run    RunConfig    `yaml:"run"`
	Log    LogConfig    `yaml:"log"`
}

// BrokerConfig selects and configures the broker backend.
type BrokerConfig struct {
	// Backend is one of "kafka", "mqtt", "shell".
	Backend string `yaml:"backend"`

	// ClientConfigFile is an optional broker client config file
	// (Java properties or YAML); its bootstrap servers override the
	// per-backend server settings.
	ClientConfigFile string `yaml:"client_config_file"`

	Kafka KafkaConfig `yaml:"kafka"`
	MQTT  MQTTConfig  `yaml:"mqtt"`
	Shell ShellConfig `yaml:"shell"`
}

// KafkaConfig holds native Kafka client settings.
type KafkaConfig struct {
	Servers []string `yaml:"servers"`

	// ReplicationFactor for created topics; -1 uses the broker default.
	ReplicationFactor int `yaml:"replication_factor"`
}

// MQTTConfig holds native MQTT client settings.
type MQTTConfig struct {
	URL            string        `yaml:"url"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	QoS            int           `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// ShellConfig holds settings for the external CLI-tool backend.
type ShellConfig struct {
	Servers         string `yaml:"servers"`
	TopicsCommand   string `yaml:"topics_command"`
	ProducerCommand string `yaml:"producer_command"`
}

// RunConfig holds scenario execution settings.
type RunConfig struct {
	// TopicPrefix is prepended to scenario names to form topic names.
	TopicPrefix string `yaml:"topic_prefix"`

	// ResultsDir receives summary.csv, report.html and the per-scenario
	// artifact directories.
	ResultsDir string `yaml:"results_dir"`

	// KeepTopics skips topic deletion after each scenario.
	KeepTopics bool `yaml:"keep_topics"`

	// Cooldown is the pause between scenarios, letting the cluster settle
	// before the next measurement.
	Cooldown time.Duration `yaml:"cooldown"`

	// StaggerDelay separates worker launches so their trace output stays
	// readable. It is not a ramp-up mechanism.
	StaggerDelay time.Duration `yaml:"stagger_delay"`

	// GracePeriod is how long workers may run past the scenario duration
	// before they are cancelled.
	GracePeriod time.Duration `yaml:"grace_period"`

	// BatchSize is the number of sends between throttle checkpoints.
	BatchSize int `yaml:"batch_size"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			Backend: "kafka",
			Kafka: KafkaConfig{
				Servers:           []string{"localhost:9092"},
				ReplicationFactor: -1,
			},
			MQTT: MQTTConfig{
				URL:            "tcp://localhost:1883",
				QoS:            1,
				ConnectTimeout: 5 * time.Second,
			},
			Shell: ShellConfig{
				Servers:         "localhost:9092",
				TopicsCommand:   "kafka-topics",
				ProducerCommand: "kafka-console-producer",
			},
		},
		Run: RunConfig{
			TopicPrefix:  "fluxbench",
			ResultsDir:   "./results",
			KeepTopics:   false,
			Cooldown:     15 * time.Second,
			StaggerDelay: 500 * time.Millisecond,
			GracePeriod:  5 * time.Second,
			BatchSize:    100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist,
// returns default configuration.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Broker.Backend {
	case "kafka":
		if len(c.Broker.Kafka.Servers) == 0 && c.Broker.ClientConfigFile == "" {
			return fmt.Errorf("broker.kafka.servers required for the kafka backend")
		}
	case "mqtt":
		if c.Broker.MQTT.URL == "" {
			return fmt.Errorf("broker.mqtt.url required for the mqtt backend")
		}
		if c.Broker.MQTT.QoS < 0 || c.Broker.MQTT.QoS > 2 {
			return fmt.Errorf("broker.mqtt.qos must be 0, 1, or 2")
		}
	case "shell":
		if c.Broker.Shell.Servers == "" && c.Broker.ClientConfigFile == "" {
			return fmt.Errorf("broker.shell.servers required for the shell backend")
		}
	default:
		return fmt.Errorf("broker.backend must be one of: kafka, mqtt, shell")
	}

	if c.Run.TopicPrefix == "" {
		return fmt.Errorf("run.topic_prefix cannot be empty")
	}
	if c.Run.ResultsDir == "" {
		return fmt.Errorf("run.results_dir cannot be empty")
	}
	if c.Run.Cooldown < 0 {
		return fmt.Errorf("run.cooldown cannot be negative")
	}
	if c.Run.StaggerDelay < 0 {
		return fmt.Errorf("run.stagger_delay cannot be negative")
	}
	if c.Run.GracePeriod < time.Second {
		return fmt.Errorf("run.grace_period must be at least 1 second")
	}
	if c.Run.BatchSize < 1 {
		return fmt.Errorf("run.batch_size must be at least 1")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: text, json")
	}

	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
