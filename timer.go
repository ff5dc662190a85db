// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Completion scheduling.

package mo

import (
	"time"
)

// Timer defers a single completion callback until enough emulated time has passed. It is
// driven entirely by Advance and never starts goroutines.
type Timer struct {
	remaining time.Duration
	fire      func()
}

// Arm schedules fn to run once d has elapsed, replacing any pending callback.
func (t *Timer) Arm(d time.Duration, fn func()) {
	t.remaining = d
	t.fire = fn
}

// Cancel discards the pending callback, if any.
func (t *Timer) Cancel() {
	t.remaining = 0
	t.fire = nil
}

func (t *Timer) Pending() bool {
	return t.fire != nil
}

// Remaining returns the time left until the pending callback runs.
func (t *Timer) Remaining() time.Duration {
	if t.fire == nil {
		return 0
	}

	return t.remaining
}

// Advance moves the countdown forward by d and runs the callback when it reaches zero.
func (t *Timer) Advance(d time.Duration) {
	if t.fire == nil {
		return
	}

	t.remaining -= d
	if t.remaining > 0 {
		return
	}

	fn := t.fire
	t.Cancel()
	fn()
}

// transferLatency returns the completion delay for a transaction that moved n bytes.
func transferLatency(n uint32, dma bool) time.Duration {
	perSector := BaseLatency * time.Duration(n) / 512
	if dma {
		perSector /= 2
	}

	return BaseLatency + perSector
}
