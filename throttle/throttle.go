// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package throttle paces batched message sends at a target per-producer rate.
package throttle

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBatchSize is the number of sends between pacing checkpoints. Timing
// per batch rather than per message keeps the scheduling overhead negligible.
const DefaultBatchSize = 100

// Throttler limits a single producer to a target rate of messages/sec.
//
// It is a token bucket refilled at the target rate with capacity of one
// batch: after a batch of B sends, Wait blocks until B tokens have accrued,
// so over the run elapsed >= sent/rate. A shortfall from a slow batch is
// carried forward, but credit never accumulates beyond one batch, so a stall
// is forgiven rather than answered with an unbounded burst.
type Throttler struct {
	limiter *rate.Limiter
	batch   int
}

// New creates a throttler for the given rate. ratePerSec <= 0 means unlimited
// and Wait never blocks. batchSize <= 0 falls back to DefaultBatchSize.
func New(ratePerSec float64, batchSize int) *Throttler {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	t := &Throttler{batch: batchSize}
	if ratePerSec > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(ratePerSec), batchSize)
		// Drain the initial burst so the first batch is paced too and the
		// long-run rate equals the target exactly.
		t.limiter.AllowN(time.Now(), batchSize)
	}
	return t
}

// BatchSize returns the pacing batch size.
func (t *Throttler) BatchSize() int {
	return t.batch
}

// Wait blocks until n more sends are within the target rate. n is capped at
// the batch size. It returns early with the context error when ctx is
// cancelled, and returns immediately when the throttler is unlimited.
func (t *Throttler) Wait(ctx context.Context, n int) error {
	if t.limiter == nil || n <= 0 {
		return nil
	}
	if n > t.batch {
		n = t.batch
	}
	return t.limiter.WaitN(ctx, n)
}
