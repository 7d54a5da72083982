// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Package worker implements the Worker Runner (spec.md §4.3) and the
// timer/goroutine lifecycle shared by the protocol retransmit timers and
// the accounting timer (spec.md §4.2/§4.7).
package worker

import (
	"sync"
	"time"
)

// Timer is a restartable, safely-stoppable timer loop, grounded on the
// teacher's MonitoredTokenSource pattern (pkg/auth/monitored_token_source.go):
// a time.Timer-driven select loop, a sync.Once-guarded stop channel, and
// a drainAndStop helper, used by Reset and Stop, that drains a
// fired-but-unconsumed channel before reuse.
type Timer struct {
	timer *time.Timer
	stop  chan struct{}
	once  sync.Once

	onFire func()
}

// NewTimer creates a Timer that calls onFire when the duration given to
// Start, or to a later Reset, elapses. It fires once per arming and does
// not re-arm itself after firing. Nothing fires until Start is called.
func NewTimer(onFire func()) *Timer {
	return &Timer{stop: make(chan struct{}), onFire: onFire}
}

// Start arms the timer for the first firing after d and begins the
// internal loop goroutine. Call once per Timer.
func (t *Timer) Start(d time.Duration) {
	t.timer = time.NewTimer(d)
	go t.loop()
}

func (t *Timer) loop() {
	for {
		select {
		case <-t.stop:
			t.drainAndStop()
			return
		case <-t.timer.C:
			t.onFire()
			select {
			case <-t.stop:
				return
			default:
			}
		}
	}
}

// Reset reschedules the next firing to d from now, draining any pending
// fire first so the loop doesn't double-fire.
func (t *Timer) Reset(d time.Duration) {
	t.drainAndStop()
	t.timer.Reset(d)
}

func (t *Timer) drainAndStop() {
	if t.timer != nil && !t.timer.Stop() {
		select {
		case <-t.timer.C:
		default:
		}
	}
}

// Stop permanently halts the timer loop. Safe to call more than once.
func (t *Timer) Stop() {
	t.once.Do(func() {
		close(t.stop)
		t.drainAndStop()
	})
}
