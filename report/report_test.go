// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleResult() *Result {
	return &Result{
		Scenario:        "baseline",
		MessageSize:     1024,
		ThroughputLimit: -1,
		Duration:        60,
		Producers:       2,
		TotalThroughput: 2500.5,
		AvgLatencyMs:    12.34,
		MaxLatencyMs:    98.76,
		Workers: []WorkerRow{
			{Throughput: 1300.25, AvgLatencyMs: 11, MaxLatencyMs: 98.76, DurationSeconds: 60.1, MessageSize: 1024},
			{Throughput: 1200.25, AvgLatencyMs: 13.68, MaxLatencyMs: 80, DurationSeconds: 60.2, MessageSize: 1024},
		},
	}
}

func TestInitTruncatesSummary(t *testing.T) {
	w := NewWriter(t.TempDir(), "localhost:9092", testLogger())
	if err := w.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := w.AppendSummary(sampleResult()); err != nil {
		t.Fatalf("AppendSummary: %v", err)
	}
	if err := w.Init(); err != nil {
		t.Fatalf("second Init: %v", err)
	}

	rows := readCSV(t, w.SummaryPath())
	if len(rows) != 1 {
		t.Fatalf("expected header only after re-init, got %d rows", len(rows))
	}
	if rows[0][0] != "scenario" || rows[0][5] != "total_throughput" {
		t.Errorf("unexpected header: %v", rows[0])
	}
}

func TestAppendSummary(t *testing.T) {
	w := NewWriter(t.TempDir(), "localhost:9092", testLogger())
	if err := w.Init(); err != nil {
		t.Fatal(err)
	}
	if err := w.AppendSummary(sampleResult()); err != nil {
		t.Fatalf("AppendSummary: %v", err)
	}

	rows := readCSV(t, w.SummaryPath())
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(rows))
	}
	want := []string{"baseline", "1024", "-1", "60", "2", "2500.50", "12.34", "98.76"}
	for i, v := range want {
		if rows[1][i] != v {
			t.Errorf("summary[%d] = %q, want %q", i, rows[1][i], v)
		}
	}
}

func TestWriteScenarioCSV(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "localhost:9092", testLogger())
	if err := w.WriteScenarioCSV(sampleResult()); err != nil {
		t.Fatalf("WriteScenarioCSV: %v", err)
	}

	rows := readCSV(t, filepath.Join(dir, "baseline", "results.csv"))
	if len(rows) != 4 { // header, 2 workers, TOTAL
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[1][0] != "1" || rows[2][0] != "2" {
		t.Errorf("worker rows not 1-indexed: %v %v", rows[1], rows[2])
	}
	if rows[3][0] != "TOTAL" || rows[3][1] != "2500.50" {
		t.Errorf("unexpected total row: %v", rows[3])
	}
}

func TestRenderHTML(t *testing.T) {
	w := NewWriter(t.TempDir(), "broker-1:9092", testLogger())
	if err := w.Init(); err != nil {
		t.Fatal(err)
	}
	if err := w.AppendSummary(sampleResult()); err != nil {
		t.Fatal(err)
	}
	if err := w.RenderHTML(); err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}

	data, err := os.ReadFile(w.ReportPath())
	if err != nil {
		t.Fatal(err)
	}
	html := string(data)
	for _, want := range []string{"broker-1:9092", "baseline", "2500.50", "Broker Performance Test Results"} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestRenderHTMLWithoutSummary(t *testing.T) {
	w := NewWriter(t.TempDir(), "b", testLogger())
	if err := w.RenderHTML(); err == nil {
		t.Fatal("expected error when summary is absent")
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}
