// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package drdy tracks the data ready signal of an ADS131M0x.
//
// The falling edge of nDRDY is delivered as a line event which sets a Flag.
// The acquisition goroutine waits on the Flag with a bounded timeout before
// reading the conversion frame.
package drdy

import (
	"sync/atomic"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Flag records that a data ready edge has been seen.
//
// HandleEvent may be called from the event goroutine concurrently with the
// other methods.
type Flag struct {
	set      atomic.Bool
	edges    atomic.Uint64
	spurious atomic.Uint64
	// kernel timestamp of the last accepted edge, +1 so zero means none.
	last    atomic.Int64
	holdoff time.Duration
}

// NewFlag creates a cleared Flag.
func NewFlag(options ...FlagOption) *Flag {
	f := Flag{}
	for _, option := range options {
		option(&f)
	}
	return &f
}

// HandleEvent is the line event handler for the nDRDY line.
//
// It sets the flag and counts the edge. An edge within the holdoff of the
// previous accepted edge is counted as spurious and otherwise ignored.
func (f *Flag) HandleEvent(evt gpiocdev.LineEvent) {
	if f.holdoff > 0 {
		ts := int64(evt.Timestamp) + 1
		last := f.last.Load()
		if last != 0 && ts-last < int64(f.holdoff) {
			f.spurious.Add(1)
			return
		}
		f.last.Store(ts)
	}
	f.edges.Add(1)
	f.set.Store(true)
}

// Set sets the state of the flag.
func (f *Flag) Set(v bool) {
	f.set.Store(v)
}

// Clear clears the flag.
func (f *Flag) Clear() {
	f.set.Store(false)
}

// Swap sets the state of the flag and returns the previous state.
func (f *Flag) Swap(v bool) bool {
	return f.set.Swap(v)
}

// IsSet returns true if the flag is set.
func (f *Flag) IsSet() bool {
	return f.set.Load()
}

// Edges returns the number of accepted edges.
func (f *Flag) Edges() uint64 {
	return f.edges.Load()
}

// Spurious returns the number of edges ignored due to the holdoff.
func (f *Flag) Spurious() uint64 {
	return f.spurious.Load()
}

// FlagOption specifies a construction option for a Flag.
type FlagOption func(*Flag)

// WithHoldoff ignores edges arriving within d of the previous accepted edge.
func WithHoldoff(d time.Duration) FlagOption {
	return func(f *Flag) {
		f.holdoff = d
	}
}
