// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package scenario defines the load-scenario model and its text format.
//
// A scenario file holds one scenario per line:
//
//	name,message_size,throughput,duration,producers
//
// Trailing fields are optional; '#' starts a comment.
package scenario

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// UnlimitedThroughput disables per-producer rate limiting.
	UnlimitedThroughput = -1

	// DefaultDuration is the scenario duration in seconds when omitted.
	DefaultDuration = 60

	// DefaultProducers is the producer count when omitted.
	DefaultProducers = 1
)

// Spec describes one load scenario. It is constructed once from text and
// never mutated afterwards.
type Spec struct {
	// Name identifies the scenario; unique within a run.
	Name string

	// MessageSize is the payload size in bytes.
	MessageSize int

	// Throughput is the target rate in messages/sec, applied per producer.
	// UnlimitedThroughput means no rate limit.
	Throughput int

	// Duration is the scenario duration in seconds.
	Duration int

	// Producers is the number of concurrent producers.
	Producers int
}

// Parse builds a Spec from one scenario line. A '#' and everything after it
// is ignored. At least name, message size and throughput must be present;
// duration and producer count fall back to their defaults.
func Parse(line string) (Spec, error) {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)

	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if len(parts) < 3 {
		return Spec{}, fmt.Errorf("invalid scenario %q: expected at least name,message_size,throughput", line)
	}

	s := Spec{
		Name:       parts[0],
		Throughput: UnlimitedThroughput,
		Duration:   DefaultDuration,
		Producers:  DefaultProducers,
	}
	if s.Name == "" {
		return Spec{}, fmt.Errorf("invalid scenario %q: empty name", line)
	}

	var err error
	if s.MessageSize, err = strconv.Atoi(parts[1]); err != nil {
		return Spec{}, fmt.Errorf("invalid scenario %q: message size: %w", line, err)
	}
	if parts[2] != "" {
		if s.Throughput, err = strconv.Atoi(parts[2]); err != nil {
			return Spec{}, fmt.Errorf("invalid scenario %q: throughput: %w", line, err)
		}
	}
	if len(parts) > 3 && parts[3] != "" {
		if s.Duration, err = strconv.Atoi(parts[3]); err != nil {
			return Spec{}, fmt.Errorf("invalid scenario %q: duration: %w", line, err)
		}
	}
	if len(parts) > 4 && parts[4] != "" {
		if s.Producers, err = strconv.Atoi(parts[4]); err != nil {
			return Spec{}, fmt.Errorf("invalid scenario %q: producers: %w", line, err)
		}
	}

	if s.MessageSize <= 0 {
		return Spec{}, fmt.Errorf("invalid scenario %q: message size must be positive", line)
	}
	if s.Duration <= 0 {
		return Spec{}, fmt.Errorf("invalid scenario %q: duration must be positive", line)
	}
	if s.Producers < 1 {
		return Spec{}, fmt.Errorf("invalid scenario %q: producers must be at least 1", line)
	}

	return s, nil
}

// Partitions returns the partition count used for the scenario topic:
// two per producer, with a floor of three.
func (s Spec) Partitions() int {
	if p := 2 * s.Producers; p > 3 {
		return p
	}
	return 3
}

// Unlimited reports whether the scenario runs without a rate limit.
func (s Spec) Unlimited() bool {
	return s.Throughput <= 0
}

// String returns the canonical one-line form of the scenario.
func (s Spec) String() string {
	return fmt.Sprintf("%s,%d,%d,%d,%d", s.Name, s.MessageSize, s.Throughput, s.Duration, s.Producers)
}
