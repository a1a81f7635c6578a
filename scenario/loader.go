// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// LoadFile reads scenarios from a file, one per line. Blank lines and
// comment-only lines are skipped. A malformed line is logged with its line
// number and content and does not abort loading of the rest of the file.
func LoadFile(path string, logger *slog.Logger) ([]Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario file: %w", err)
	}
	defer f.Close()

	var specs []Spec
	lineNo := 0

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		s, err := Parse(line)
		if err != nil {
			logger.Error("skipping malformed scenario",
				"line", lineNo,
				"content", line,
				"error", err)
			continue
		}

		logger.Info("loaded scenario",
			"name", s.Name,
			"message_size", s.MessageSize,
			"throughput", s.Throughput,
			"duration", s.Duration,
			"producers", s.Producers)
		specs = append(specs, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	if len(specs) == 0 {
		logger.Warn("no valid scenarios found", "file", path)
	}

	return specs, nil
}
