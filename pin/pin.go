// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package pin provides GPIO level control and the short delays required to
// meet device pin timing contracts.
package pin

import "time"

// Setter is an output line that can be driven to a level.
//
// A *gpiocdev.Line requested as an output satisfies Setter.
type Setter interface {
	SetValue(value int) error
}

// Delay busy waits for at least d.
//
// The calling goroutine keeps its thread for the duration, so Delay is only
// suitable for delays shorter than the scheduler can reliably provide via
// time.Sleep. It does not mask interrupts or signals.
func Delay(d time.Duration) {
	if d <= 0 {
		return
	}
	start := time.Now()
	for time.Since(start) < d {
	}
}

// DelayUs busy waits for at least us microseconds.
func DelayUs(us uint32) {
	Delay(time.Duration(us) * time.Microsecond)
}

// DelayMs busy waits for at least ms milliseconds.
func DelayMs(ms uint32) {
	Delay(time.Duration(ms) * time.Millisecond)
}
