// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/absmach/fluxbench/broker"
	"github.com/absmach/fluxbench/metrics"
	"github.com/absmach/fluxbench/scenario"
	"github.com/absmach/fluxbench/throttle"
)

// Worker drives one producer for the length of a scenario. It owns its
// latency recorder; acknowledgment callbacks arrive on backend goroutines
// and are funneled through a channel into a single reducer, so no sample
// state is shared.
type Worker struct {
	ID        int
	Spec      scenario.Spec
	Topic     string
	BatchSize int

	// OutputDir, when non-empty, receives a producer_<id>.txt artifact with
	// the worker's final measurements.
	OutputDir string

	Logger *slog.Logger
}

type ackSample struct {
	latencyMs float64
	err       error
}

// Run publishes to the worker's topic until the scenario duration elapses or
// ctx is cancelled, then flushes and returns the measurements. The returned
// metrics are valid even on error; a worker that acknowledged nothing reports
// a zero RecordCount.
func (w *Worker) Run(ctx context.Context, p broker.Producer) (metrics.ProducerMetrics, error) {
	payload := bytes.Repeat([]byte{'X'}, w.Spec.MessageSize)

	// The scenario throughput limit applies per producer, not in total.
	var targetRate float64
	if !w.Spec.Unlimited() {
		targetRate = float64(w.Spec.Throughput)
	}
	th := throttle.New(targetRate, w.BatchSize)

	rec := metrics.NewLatencyRecorder()
	samples := make(chan ackSample, 4*w.BatchSize)
	reduced := make(chan struct{})

	// pending tracks outstanding acknowledgments. Every Send gets exactly
	// one ack, so waiting on it before closing the sample channel is safe.
	var pending sync.WaitGroup

	var acked, failed int64
	go func() {
		defer close(reduced)
		for s := range samples {
			if s.err != nil {
				failed++
				continue
			}
			acked++
			rec.Record(s.latencyMs)
		}
	}()

	w.Logger.Info("producer started",
		slog.Int("producer", w.ID),
		slog.String("topic", w.Topic),
		slog.Int("message_size", w.Spec.MessageSize),
		slog.Float64("rate", targetRate),
	)

	start := time.Now()
	deadline := start.Add(time.Duration(w.Spec.Duration) * time.Second)

	var sent int64
	var runErr error

loop:
	for time.Now().Before(deadline) {
		batch := w.BatchSize
		if !w.Spec.Unlimited() {
			if err := th.Wait(ctx, batch); err != nil {
				runErr = err
				break
			}
		}

		for i := 0; i < batch; i++ {
			if !time.Now().Before(deadline) {
				break loop
			}
			select {
			case <-ctx.Done():
				runErr = ctx.Err()
				break loop
			default:
			}

			sendTime := time.Now()
			pending.Add(1)
			p.Send(ctx, w.Topic, payload, sendTime, func(a broker.Ack) {
				defer pending.Done()
				s := ackSample{err: a.Err}
				if a.Err == nil {
					s.latencyMs = float64(a.BrokerTime.Sub(sendTime)) / float64(time.Millisecond)
				}
				samples <- s
			})
			sent++
		}
	}

	// Drain outstanding acknowledgments before reading the recorder. The
	// flush context survives cancellation so the samples already in flight
	// still count.
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := p.Flush(flushCtx); err != nil {
		w.Logger.Warn("flush incomplete", slog.Int("producer", w.ID), slog.Any("error", err))
	}
	pending.Wait()
	close(samples)
	<-reduced

	elapsed := time.Since(start).Seconds()
	m := metrics.ProducerMetrics{
		AvgLatencyMs:    rec.AvgMs(),
		MaxLatencyMs:    rec.MaxMs(),
		DurationSeconds: elapsed,
		RecordCount:     acked,
		RecordSizeBytes: w.Spec.MessageSize,
	}
	if elapsed > 0 {
		m.Throughput = float64(acked) / elapsed
	}

	if failed > 0 {
		w.Logger.Warn("sends failed",
			slog.Int("producer", w.ID),
			slog.Int64("failed", failed),
			slog.Int64("acknowledged", acked),
		)
	}
	w.Logger.Info("producer finished",
		slog.Int("producer", w.ID),
		slog.Int64("records", acked),
		slog.Float64("throughput", m.Throughput),
		slog.Float64("avg_latency_ms", m.AvgLatencyMs),
	)

	if w.OutputDir != "" {
		if err := w.writeArtifact(m, rec, sent, failed); err != nil {
			w.Logger.Warn("producer artifact not written", slog.Int("producer", w.ID), slog.Any("error", err))
		}
	}

	if runErr == nil && acked == 0 {
		runErr = fmt.Errorf("producer %d: no records acknowledged", w.ID)
	}
	return m, runErr
}

func (w *Worker) writeArtifact(m metrics.ProducerMetrics, rec *metrics.LatencyRecorder, sent, failed int64) error {
	if err := os.MkdirAll(w.OutputDir, 0o755); err != nil {
		return err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "producer: %d\n", w.ID)
	fmt.Fprintf(&buf, "topic: %s\n", w.Topic)
	fmt.Fprintf(&buf, "sent: %d\n", sent)
	fmt.Fprintf(&buf, "acknowledged: %d\n", m.RecordCount)
	fmt.Fprintf(&buf, "failed: %d\n", failed)
	fmt.Fprintf(&buf, "duration_seconds: %.2f\n", m.DurationSeconds)
	fmt.Fprintf(&buf, "throughput_records_per_sec: %.2f\n", m.Throughput)
	fmt.Fprintf(&buf, "avg_latency_ms: %.2f\n", m.AvgLatencyMs)
	fmt.Fprintf(&buf, "max_latency_ms: %.2f\n", m.MaxLatencyMs)
	fmt.Fprintf(&buf, "p50_latency_ms: %.2f\n", rec.QuantileMs(50))
	fmt.Fprintf(&buf, "p95_latency_ms: %.2f\n", rec.QuantileMs(95))
	fmt.Fprintf(&buf, "p99_latency_ms: %.2f\n", rec.QuantileMs(99))

	path := filepath.Join(w.OutputDir, fmt.Sprintf("producer_%d.txt", w.ID))
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
