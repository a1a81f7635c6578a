// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/absmach/fluxbench/broker"
	"github.com/absmach/fluxbench/broker/kafka"
	"github.com/absmach/fluxbench/broker/mqtt"
	"github.com/absmach/fluxbench/broker/shell"
	"github.com/absmach/fluxbench/config"
	"github.com/absmach/fluxbench/engine"
	"github.com/absmach/fluxbench/metrics"
	"github.com/absmach/fluxbench/report"
	"github.com/absmach/fluxbench/scenario"
)

var (
	cfgFile          string
	scenariosFile    string
	clientConfigFile string
	backend          string
	topicPrefix      string
	resultsDir       string
	keepTopics       bool
)

var rootCmd = &cobra.Command{
	Use:   "fluxbench",
	Short: "Publish/subscribe broker benchmark harness",
	Long: `fluxbench measures broker producer performance: it runs scenarios of
concurrent throttled producers against Kafka or MQTT brokers and writes
CSV and HTML reports.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every scenario from a scenario file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		specs, err := scenario.LoadFile(scenariosFile, logger)
		if err != nil {
			return err
		}
		return execute(cmd.Context(), cfg, logger, specs)
	},
}

var runSingleCmd = &cobra.Command{
	Use:   "run-single <scenario-line>",
	Short: "Run one scenario given as a scenario line",
	Long: `Runs a single scenario given in scenario-file line format:

  name,message_size,throughput,duration,producers

Throughput, duration and producers may be left empty for their defaults.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		spec, err := scenario.Parse(args[0])
		if err != nil {
			return err
		}
		return execute(cmd.Context(), cfg, logger, []scenario.Spec{spec})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&clientConfigFile, "client-config", "", "broker client config file (Java properties or YAML)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "broker backend: kafka, mqtt, or shell")
	rootCmd.PersistentFlags().StringVar(&topicPrefix, "topic-prefix", "", "prefix for scenario topics")
	rootCmd.PersistentFlags().StringVar(&resultsDir, "results-dir", "", "directory for result artifacts")
	rootCmd.PersistentFlags().BoolVar(&keepTopics, "keep-topics", false, "keep scenario topics after the run")

	runCmd.Flags().StringVar(&scenariosFile, "scenarios", "scenarios.csv", "scenario file to run")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runSingleCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration, applies flag overrides, and builds the
// logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	if clientConfigFile != "" {
		cfg.Broker.ClientConfigFile = clientConfigFile
	}
	if backend != "" {
		cfg.Broker.Backend = backend
	}
	if topicPrefix != "" {
		cfg.Run.TopicPrefix = topicPrefix
	}
	if resultsDir != "" {
		cfg.Run.ResultsDir = resultsDir
	}
	if keepTopics {
		cfg.Run.KeepTopics = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	return cfg, logger, nil
}

// execute runs the scenario pipeline end to end and prints the per-scenario
// verdict lines.
func execute(ctx context.Context, cfg *config.Config, logger *slog.Logger, specs []scenario.Spec) error {
	client, addr, err := buildClient(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	logger.Info("starting benchmark run",
		"backend", cfg.Broker.Backend,
		"broker", addr,
		"scenarios", len(specs),
		"results_dir", cfg.Run.ResultsDir,
	)

	writer := report.NewWriter(cfg.Run.ResultsDir, addr, logger)
	pipeline := engine.NewPipeline(client, cfg.Run, writer, logger)

	runErr := pipeline.Run(ctx, specs)

	for _, res := range pipeline.Results() {
		printVerdict(res)
	}
	if runErr != nil {
		return runErr
	}

	logger.Info("benchmark run completed",
		"scenarios", len(specs),
		"report", writer.ReportPath(),
	)
	return nil
}

func printVerdict(res *metrics.Result) {
	verdict := "PASS"
	if !res.Success() {
		verdict = "FAIL"
	}
	fmt.Printf("%s: %s - Throughput: %.2f records/sec (%.2f MB/sec), Avg Latency: %.2f ms\n",
		res.Spec.Name, verdict, res.TotalThroughput, res.ThroughputMBPerSec(), res.AvgLatencyMs)
}

// buildClient constructs the configured broker backend. It returns the
// client and the broker address used in the report header.
func buildClient(cfg *config.Config, logger *slog.Logger) (broker.Client, string, error) {
	// A client config file overrides the per-backend server settings.
	var fileServers string
	if cfg.Broker.ClientConfigFile != "" {
		props, err := config.LoadClientProperties(cfg.Broker.ClientConfigFile)
		if err != nil {
			return nil, "", err
		}
		fileServers, err = props.BootstrapServers()
		if err != nil {
			return nil, "", err
		}
	}

	switch cfg.Broker.Backend {
	case "kafka":
		seeds := cfg.Broker.Kafka.Servers
		if fileServers != "" {
			seeds = strings.Split(fileServers, ",")
		}
		client, err := kafka.NewClient(kafka.Config{
			SeedBrokers:       seeds,
			ReplicationFactor: cfg.Broker.Kafka.ReplicationFactor,
		}, logger)
		return client, strings.Join(seeds, ","), err

	case "mqtt":
		client, err := mqtt.NewClient(mqtt.Config{
			BrokerURL:      cfg.Broker.MQTT.URL,
			Username:       cfg.Broker.MQTT.Username,
			Password:       cfg.Broker.MQTT.Password,
			QoS:            byte(cfg.Broker.MQTT.QoS),
			ConnectTimeout: cfg.Broker.MQTT.ConnectTimeout,
		}, logger)
		return client, cfg.Broker.MQTT.URL, err

	case "shell":
		servers := cfg.Broker.Shell.Servers
		if fileServers != "" {
			servers = fileServers
		}
		client, err := shell.NewClient(shell.Config{
			BootstrapServers: servers,
			ClientConfigFile: cfg.Broker.ClientConfigFile,
			TopicsCommand:    cfg.Broker.Shell.TopicsCommand,
			ProducerCommand:  cfg.Broker.Shell.ProducerCommand,
		}, logger)
		return client, servers, err

	default:
		return nil, "", errors.New("unknown broker backend: " + cfg.Broker.Backend)
	}
}
