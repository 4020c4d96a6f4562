// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package acquire runs the ADC acquisition loop, waiting for data ready,
// reading each conversion frame and publishing the scaled readings.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/warthog618/ads131m"
	"github.com/warthog618/ads131m/drdy"
)

// Defaults for the Task.
const (
	DefaultTimeout   = 10 * time.Second
	DefaultMaxResets = 3
)

// ADC is the device being sampled.
type ADC interface {
	ReadFrame() (ads131m.Sample, error)
	Reset() error
	Volts(s ads131m.Sample) []float64
}

// Waiter waits for the device to signal data ready.
type Waiter interface {
	Wait(timeout time.Duration) bool
}

// Publisher receives each valid reading.
type Publisher interface {
	Publish(r Reading)
}

// Indicator reflects the acquisition state to the user.
type Indicator interface {
	Sampled()
	Missed()
	Faulted()
}

// Reading is a scaled conversion result.
type Reading struct {
	Seq    uint64    `json:"seq"`
	Time   time.Time `json:"time"`
	Status uint16    `json:"status"`
	Codes  []int32   `json:"codes"`
	Volts  []float64 `json:"volts"`
}

// Stats are the acquisition counters.
type Stats struct {
	Frames          uint64 `json:"frames"`
	Readings        uint64 `json:"readings"`
	CRCErrors       uint64 `json:"crc_errors"`
	Timeouts        uint64 `json:"timeouts"`
	TransportErrors uint64 `json:"transport_errors"`
	Resets          uint64 `json:"resets"`
	Edges           uint64 `json:"edges"`
	Spurious        uint64 `json:"spurious"`
}

// Task acquires readings from an ADC.
type Task struct {
	adc        ADC
	w          Waiter
	flag       *drdy.Flag
	timeout    time.Duration
	startDelay time.Duration
	maxResets  int
	barrier    *Barrier
	pubs       []Publisher
	ind        Indicator
	log        *slog.Logger
	values     Values
	seq        uint64

	frames    atomic.Uint64
	readings  atomic.Uint64
	crcErrors atomic.Uint64
	timeouts  atomic.Uint64
	xferErrs  atomic.Uint64
	resets    atomic.Uint64
}

// ErrRecovery indicates the device could not be reconfigured after a reset.
var ErrRecovery = errors.New("device recovery failed")

// New creates a Task reading from adc once w reports data ready.
//
// The adc is expected to already be configured, e.g. by Startup.
func New(adc ADC, w Waiter, options ...Option) *Task {
	t := Task{
		adc:       adc,
		w:         w,
		timeout:   DefaultTimeout,
		maxResets: DefaultMaxResets,
		ind:       nopIndicator{},
		log:       slog.Default(),
	}
	for _, option := range options {
		option(&t)
	}
	return &t
}

// Values returns the latest reading store.
func (t *Task) Values() *Values {
	return &t.values
}

// Stats returns a snapshot of the acquisition counters.
func (t *Task) Stats() Stats {
	s := Stats{
		Frames:          t.frames.Load(),
		Readings:        t.readings.Load(),
		CRCErrors:       t.crcErrors.Load(),
		Timeouts:        t.timeouts.Load(),
		TransportErrors: t.xferErrs.Load(),
		Resets:          t.resets.Load(),
	}
	if t.flag != nil {
		s.Edges = t.flag.Edges()
		s.Spurious = t.flag.Spurious()
	}
	return s
}

// Run performs acquisition cycles until ctx is done or the device cannot be
// recovered.
//
// If a Barrier is provided then Run waits for it to be released before
// starting. A wait in progress is not interrupted by ctx, so Run may take up
// to the timeout to return after ctx is done.
func (t *Task) Run(ctx context.Context) error {
	if t.barrier != nil {
		if err := t.barrier.Wait(ctx); err != nil {
			return err
		}
	}
	if t.startDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.startDelay):
		}
	}
	t.log.Info("acquisition started", "timeout", t.timeout)
	for {
		select {
		case <-ctx.Done():
			t.log.Info("acquisition stopped", "readings", t.readings.Load())
			return ctx.Err()
		default:
		}
		if err := t.Cycle(); err != nil {
			t.log.Error("acquisition failed", "err", err)
			return err
		}
	}
}

// Cycle performs a single acquisition cycle.
//
// Missed samples, CRC failures and transport errors are logged, counted and
// skipped. An error is returned only if the device has reset and could not be
// reconfigured.
func (t *Task) Cycle() error {
	if !t.w.Wait(t.timeout) {
		n := t.timeouts.Add(1)
		t.log.Warn("missed sample", "timeout", t.timeout, "timeouts", n)
		t.ind.Missed()
		return nil
	}
	if t.flag != nil {
		t.flag.Clear()
	}
	s, err := t.adc.ReadFrame()
	if err != nil {
		if errors.Is(err, ads131m.ErrUnexpectedReset) || errors.Is(err, ads131m.ErrNotConfigured) {
			return t.recover(err)
		}
		n := t.xferErrs.Add(1)
		t.log.Error("read frame", "err", err, "errors", n)
		return nil
	}
	t.frames.Add(1)
	if !s.CRCValid {
		n := t.crcErrors.Add(1)
		t.log.Warn("frame CRC mismatch", "crc", s.CRC, "crc_errors", n)
		return nil
	}
	t.seq++
	r := Reading{
		Seq:    t.seq,
		Time:   time.Now(),
		Status: uint16(s.Status),
		Codes:  s.Codes,
		Volts:  t.adc.Volts(s),
	}
	t.values.Publish(r)
	for _, p := range t.pubs {
		p.Publish(r)
	}
	t.readings.Add(1)
	t.ind.Sampled()
	return nil
}

func (t *Task) recover(cause error) error {
	t.log.Warn("device not configured", "err", cause)
	err := cause
	for i := 1; i <= t.maxResets; i++ {
		t.resets.Add(1)
		if err = t.adc.Reset(); err == nil {
			t.log.Info("device reconfigured", "attempts", i)
			return nil
		}
		t.log.Error("reset failed", "attempt", i, "err", err)
	}
	t.ind.Faulted()
	return fmt.Errorf("%w after %d resets: %w", ErrRecovery, t.maxResets, err)
}

type nopIndicator struct{}

func (nopIndicator) Sampled() {}
func (nopIndicator) Missed()  {}
func (nopIndicator) Faulted() {}

// Option specifies a construction option for a Task.
type Option func(*Task)

// WithTimeout sets the maximum time to wait for data ready.
func WithTimeout(d time.Duration) Option {
	return func(t *Task) {
		t.timeout = d
	}
}

// WithStartDelay sets a delay between the barrier release and the first
// cycle.
func WithStartDelay(d time.Duration) Option {
	return func(t *Task) {
		t.startDelay = d
	}
}

// WithMaxResets sets the number of reset attempts made to recover a device
// before giving up.
func WithMaxResets(n int) Option {
	return func(t *Task) {
		t.maxResets = n
	}
}

// WithBarrier delays the start of Run until b is released.
func WithBarrier(b *Barrier) Option {
	return func(t *Task) {
		t.barrier = b
	}
}

// WithPublisher adds a Publisher of the readings.
func WithPublisher(p Publisher) Option {
	return func(t *Task) {
		t.pubs = append(t.pubs, p)
	}
}

// WithIndicator sets the Indicator of the acquisition state.
func WithIndicator(i Indicator) Option {
	return func(t *Task) {
		t.ind = i
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Task) {
		t.log = l
	}
}

// WithFlag provides the data ready flag, for its edge counters.
func WithFlag(f *drdy.Flag) Option {
	return func(t *Task) {
		t.flag = f
	}
}
