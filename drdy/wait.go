// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package drdy

import "time"

// DefaultPollInterval is the period between checks of the flag while waiting.
const DefaultPollInterval = 250 * time.Microsecond

// Clock is the time source used by a Waiter.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the Clock provided by the time package.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Sleep pauses the calling goroutine for d.
func (SystemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// Waiter waits for a Flag to be set.
type Waiter struct {
	f     *Flag
	clock Clock
	poll  time.Duration
}

// NewWaiter creates a Waiter for f.
func NewWaiter(f *Flag, options ...WaiterOption) *Waiter {
	w := Waiter{
		f:     f,
		clock: SystemClock{},
		poll:  DefaultPollInterval,
	}
	for _, option := range options {
		option(&w)
	}
	return &w
}

// Wait clears the flag then waits up to timeout for it to be set.
//
// Returns true if the flag was set before the deadline. The flag is clear on
// return, so an edge is consumed by exactly one Wait.
func (w *Waiter) Wait(timeout time.Duration) bool {
	w.f.Clear()
	deadline := w.clock.Now().Add(timeout)
	seen := false
	for {
		if w.f.IsSet() {
			seen = true
			break
		}
		left := deadline.Sub(w.clock.Now())
		if left <= 0 {
			break
		}
		if left > w.poll {
			left = w.poll
		}
		w.clock.Sleep(left)
	}
	w.f.Clear()
	return seen
}

// WaiterOption specifies a construction option for a Waiter.
type WaiterOption func(*Waiter)

// WithClock sets the time source for the Waiter.
func WithClock(c Clock) WaiterOption {
	return func(w *Waiter) {
		w.clock = c
	}
}

// WithPollInterval sets the period between checks of the flag.
func WithPollInterval(d time.Duration) WaiterOption {
	return func(w *Waiter) {
		if d > 0 {
			w.poll = d
		}
	}
}
