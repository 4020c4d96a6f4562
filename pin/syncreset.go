// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package pin

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Timing of the ADS131M0x nSYNC/nRESET line.
const (
	// DefaultClockIn is the CLKIN frequency, in Hz, the pulse widths are
	// validated against.
	DefaultClockIn = 2048000

	// MaxSyncPeriods is the widest legal sync pulse, in CLKIN periods.
	// Anything wider is interpreted by the device as a reset.
	MaxSyncPeriods = 2048

	// MinResetPeriods is the narrowest legal reset pulse (tSRLRST), in CLKIN
	// periods.
	MinResetPeriods = 2048

	// DefaultSyncWidth is the width of the low pulse driven by Sync.
	DefaultSyncWidth = 2 * time.Microsecond

	// DefaultResetWidth is the width of the low pulse driven by Reset.
	DefaultResetWidth = 2 * time.Millisecond

	// DefaultRegAcq is the delay after the reset pulse before the device
	// registers can be accessed (tREGACQ).
	DefaultRegAcq = 5 * time.Microsecond
)

var (
	// ErrSyncWidth indicates the sync pulse does not fit within the legal
	// sync window.
	ErrSyncWidth = errors.New("sync pulse width out of range")

	// ErrResetWidth indicates the reset pulse is narrower than the device
	// minimum.
	ErrResetWidth = errors.New("reset pulse width too short")

	// ErrClockIn indicates an invalid CLKIN frequency.
	ErrClockIn = errors.New("invalid clock frequency")
)

// SyncReset drives the shared, active low, nSYNC/nRESET line of an ADS131M0x.
//
// The line carries two distinct operations with different pulse width
// contracts. Sync resynchronises the channel sampling and leaves the device
// configuration intact. Reset returns the device to its power on state, after
// which the caller is obliged to restore the device configuration.
type SyncReset struct {
	mu      sync.Mutex
	l       Setter
	clkin   uint32
	tsync   time.Duration
	treset  time.Duration
	tregacq time.Duration
}

// NewSyncReset creates a SyncReset driving the line l.
//
// The line is driven high, the idle state, before returning.
func NewSyncReset(l Setter, options ...SyncResetOption) (*SyncReset, error) {
	s := SyncReset{
		l:       l,
		clkin:   DefaultClockIn,
		tsync:   DefaultSyncWidth,
		treset:  DefaultResetWidth,
		tregacq: DefaultRegAcq,
	}
	for _, option := range options {
		option(&s)
	}
	if s.clkin == 0 {
		return nil, ErrClockIn
	}
	minSync := Periods(1, s.clkin)
	maxSync := time.Duration(int64(MaxSyncPeriods) * int64(time.Second) / int64(s.clkin))
	if s.tsync < minSync || s.tsync > maxSync {
		return nil, fmt.Errorf("%w: %s not within [%s, %s]",
			ErrSyncWidth, s.tsync, minSync, maxSync)
	}
	if minReset := Periods(MinResetPeriods, s.clkin); s.treset < minReset {
		return nil, fmt.Errorf("%w: %s < %s",
			ErrResetWidth, s.treset, minReset)
	}
	if err := l.SetValue(1); err != nil {
		return nil, err
	}
	return &s, nil
}

// ClockPeriod returns the period of a clock running at hz, truncated to the
// nanosecond.
func ClockPeriod(hz uint32) time.Duration {
	return time.Duration(int64(time.Second) / int64(hz))
}

// Periods returns the duration of n periods of a clock running at hz, rounded
// up to the nanosecond.
func Periods(n int, hz uint32) time.Duration {
	ns := int64(n) * int64(time.Second)
	return time.Duration((ns + int64(hz) - 1) / int64(hz))
}

// Sync drives a sync pulse onto the line.
func (s *SyncReset) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pulse(s.tsync)
}

// Reset drives a reset pulse onto the line and waits until the device
// registers are accessible.
//
// The device configuration is lost; it is up to the caller to restore it.
func (s *SyncReset) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pulse(s.treset); err != nil {
		return err
	}
	Delay(s.tregacq)
	return nil
}

func (s *SyncReset) pulse(width time.Duration) error {
	if err := s.l.SetValue(0); err != nil {
		return err
	}
	Delay(width)
	return s.l.SetValue(1)
}

// SyncResetOption specifies a construction option for a SyncReset.
type SyncResetOption func(*SyncReset)

// WithClockIn sets the CLKIN frequency, in Hz, used to validate the pulse
// widths.
func WithClockIn(hz uint32) SyncResetOption {
	return func(s *SyncReset) {
		s.clkin = hz
	}
}

// WithSyncWidth sets the width of the sync pulse.
func WithSyncWidth(d time.Duration) SyncResetOption {
	return func(s *SyncReset) {
		s.tsync = d
	}
}

// WithResetWidth sets the width of the reset pulse.
func WithResetWidth(d time.Duration) SyncResetOption {
	return func(s *SyncReset) {
		s.treset = d
	}
}

// WithRegAcq sets the delay after a reset pulse before the device may be
// accessed.
func WithRegAcq(d time.Duration) SyncResetOption {
	return func(s *SyncReset) {
		s.tregacq = d
	}
}
