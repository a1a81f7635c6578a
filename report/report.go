// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package report writes the per-run artifacts: the incremental summary CSV,
// the per-scenario worker CSV, and the HTML report rendered from the
// summary. Write failures are returned to the caller, which treats them as
// non-fatal.
package report

import (
	"encoding/csv"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// summaryHeader is the column set of summary.csv. One row is appended per
// completed scenario so a partial run is still inspectable.
var summaryHeader = []string{
	"scenario",
	"message_size",
	"throughput_limit",
	"duration",
	"producers",
	"total_throughput",
	"avg_latency",
	"max_latency",
}

// Writer produces the artifacts for one run under a results directory.
type Writer struct {
	dir        string
	brokerAddr string
	logger     *slog.Logger
}

// NewWriter writes artifacts under dir. brokerAddr only appears in the HTML
// report header.
func NewWriter(dir, brokerAddr string, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, brokerAddr: brokerAddr, logger: logger}
}

// SummaryPath returns the summary CSV location.
func (w *Writer) SummaryPath() string {
	return filepath.Join(w.dir, "summary.csv")
}

// ReportPath returns the HTML report location.
func (w *Writer) ReportPath() string {
	return filepath.Join(w.dir, "report.html")
}

// Init creates the results directory and writes the summary header,
// truncating any previous summary.
func (w *Writer) Init() error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}

	f, err := os.Create(w.SummaryPath())
	if err != nil {
		return fmt.Errorf("create summary: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(summaryHeader); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// AppendSummary adds one row for a completed scenario.
func (w *Writer) AppendSummary(res *Result) error {
	f, err := os.OpenFile(w.SummaryPath(), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open summary: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	row := []string{
		res.Scenario,
		strconv.Itoa(res.MessageSize),
		strconv.Itoa(res.ThroughputLimit),
		strconv.Itoa(res.Duration),
		strconv.Itoa(res.Producers),
		fmt.Sprintf("%.2f", res.TotalThroughput),
		fmt.Sprintf("%.2f", res.AvgLatencyMs),
		fmt.Sprintf("%.2f", res.MaxLatencyMs),
	}
	if err := cw.Write(row); err != nil {
		return fmt.Errorf("append summary row: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// Result is the summary view of one scenario handed to the report writer.
type Result struct {
	Scenario        string
	MessageSize     int
	ThroughputLimit int
	Duration        int
	Producers       int
	TotalThroughput float64
	AvgLatencyMs    float64
	MaxLatencyMs    float64

	// Workers holds the per-worker rows for the scenario CSV, in worker
	// index order.
	Workers []WorkerRow
}

// WorkerRow is one producer's line in the per-scenario CSV.
type WorkerRow struct {
	Throughput      float64
	AvgLatencyMs    float64
	MaxLatencyMs    float64
	DurationSeconds float64
	MessageSize     int
}

// WriteScenarioCSV writes results/<scenario>/results.csv with one row per
// worker and a trailing TOTAL row.
func (w *Writer) WriteScenarioCSV(res *Result) error {
	dir := filepath.Join(w.dir, res.Scenario)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create scenario dir: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, "results.csv"))
	if err != nil {
		return fmt.Errorf("create scenario results: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	header := []string{"producer", "throughput", "avg_latency", "max_latency", "duration", "message_size", "throughput_limit"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write scenario header: %w", err)
	}

	for i, wr := range res.Workers {
		row := []string{
			strconv.Itoa(i + 1),
			fmt.Sprintf("%.2f", wr.Throughput),
			fmt.Sprintf("%.2f", wr.AvgLatencyMs),
			fmt.Sprintf("%.2f", wr.MaxLatencyMs),
			fmt.Sprintf("%.2f", wr.DurationSeconds),
			strconv.Itoa(wr.MessageSize),
			strconv.Itoa(res.ThroughputLimit),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write scenario row: %w", err)
		}
	}

	total := []string{
		"TOTAL",
		fmt.Sprintf("%.2f", res.TotalThroughput),
		fmt.Sprintf("%.2f", res.AvgLatencyMs),
		fmt.Sprintf("%.2f", res.MaxLatencyMs),
		strconv.Itoa(res.Duration),
		strconv.Itoa(res.MessageSize),
		strconv.Itoa(res.ThroughputLimit),
	}
	if err := cw.Write(total); err != nil {
		return fmt.Errorf("write total row: %w", err)
	}

	cw.Flush()
	return cw.Error()
}

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
  <title>Broker Performance Test Results</title>
  <style>
    body { font-family: Arial, sans-serif; margin: 20px; }
    h1 { color: #333; }
    table { border-collapse: collapse; width: 100%; margin-top: 20px; }
    th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
    th { background-color: #f2f2f2; }
    tr:nth-child(even) { background-color: #f9f9f9; }
  </style>
</head>
<body>
  <h1>Broker Performance Test Results</h1>
  <p>Test Date: {{.Date}}</p>
  <p>Broker: {{.Broker}}</p>

  <h2>Summary Results</h2>
  <table>
    <tr>
      <th>Scenario</th>
      <th>Message Size (bytes)</th>
      <th>Throughput Limit</th>
      <th>Duration (s)</th>
      <th>Producers</th>
      <th>Total Throughput (rec/s)</th>
      <th>Avg Latency (ms)</th>
      <th>Max Latency (ms)</th>
    </tr>
{{- range .Rows}}
    <tr>
{{- range .}}
      <td>{{.}}</td>
{{- end}}
    </tr>
{{- end}}
  </table>
</body>
</html>
`

var reportTemplate = template.Must(template.New("report").Parse(htmlTemplate))

// RenderHTML regenerates report.html from the current summary CSV. It is
// called after every scenario so an aborted run still has a viewable report.
func (w *Writer) RenderHTML() error {
	rows, err := w.readSummaryRows()
	if err != nil {
		return err
	}

	f, err := os.Create(w.ReportPath())
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	data := struct {
		Date   string
		Broker string
		Rows   [][]string
	}{
		Date:   time.Now().Format("2006-01-02 15:04:05"),
		Broker: w.brokerAddr,
		Rows:   rows,
	}
	if err := reportTemplate.Execute(f, data); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	w.logger.Info("html report generated", "path", w.ReportPath())
	return nil
}

func (w *Writer) readSummaryRows() ([][]string, error) {
	f, err := os.Open(w.SummaryPath())
	if err != nil {
		return nil, fmt.Errorf("open summary: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	if _, err := cr.Read(); err != nil && err != io.EOF { // header
		return nil, fmt.Errorf("read summary header: %w", err)
	}

	var rows [][]string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read summary: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
