// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the retry policy honoured by the shell executor.
package step

import (
	"context"
	"time"
)

// RetryPolicy describes how many additional attempts a failing step gets and
// how long to wait between them.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// MaxAttempts returns the total number of attempts, including the first.
func (p RetryPolicy) MaxAttempts() int {
	if p.Attempts < 0 {
		return 1
	}
	return p.Attempts + 1
}

// wait blocks for the policy's delay or until ctx is done.
func (p RetryPolicy) wait(ctx context.Context) error {
	if p.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
