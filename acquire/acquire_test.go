// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package acquire_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/ads131m"
	"github.com/warthog618/ads131m/acquire"
	"github.com/warthog618/ads131m/drdy"
	"github.com/warthog618/ads131m/mockup"
	"github.com/warthog618/ads131m/pin"
	"github.com/warthog618/ads131m/spi"
	"github.com/warthog618/go-gpiocdev"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type frameResult struct {
	s   ads131m.Sample
	err error
}

// scriptedADC returns a scripted sequence of frames.
type scriptedADC struct {
	mu        sync.Mutex
	frames    []frameResult
	resetErrs []error
	resets    int
}

func (a *scriptedADC) ReadFrame() (ads131m.Sample, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.frames) == 0 {
		return ads131m.Sample{Codes: []int32{0}, CRCValid: true}, nil
	}
	f := a.frames[0]
	a.frames = a.frames[1:]
	return f.s, f.err
}

func (a *scriptedADC) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resets++
	if len(a.resetErrs) == 0 {
		return nil
	}
	err := a.resetErrs[0]
	a.resetErrs = a.resetErrs[1:]
	return err
}

func (a *scriptedADC) Volts(s ads131m.Sample) []float64 {
	vv := make([]float64, len(s.Codes))
	for i, c := range s.Codes {
		vv[i] = float64(c) / 10
	}
	return vv
}

// scriptedWaiter returns a scripted sequence of wait results, then true.
type scriptedWaiter struct {
	mu      sync.Mutex
	results []bool
	waits   int
	timeout time.Duration
}

func (w *scriptedWaiter) Wait(timeout time.Duration) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.waits++
	w.timeout = timeout
	if len(w.results) == 0 {
		return true
	}
	r := w.results[0]
	w.results = w.results[1:]
	return r
}

type recorder struct {
	mu       sync.Mutex
	readings []acquire.Reading
	sampled  int
	missed   int
	faulted  int
}

func (r *recorder) Publish(rd acquire.Reading) {
	r.mu.Lock()
	r.readings = append(r.readings, rd)
	r.mu.Unlock()
}

func (r *recorder) Sampled() {
	r.mu.Lock()
	r.sampled++
	r.mu.Unlock()
}

func (r *recorder) Missed() {
	r.mu.Lock()
	r.missed++
	r.mu.Unlock()
}

func (r *recorder) Faulted() {
	r.mu.Lock()
	r.faulted++
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.readings)
}

func TestCycle(t *testing.T) {
	adc := scriptedADC{frames: []frameResult{
		{s: ads131m.Sample{Status: 0x010f, Codes: []int32{10, -20}, CRCValid: true}},
	}}
	w := scriptedWaiter{}
	rec := recorder{}
	task := acquire.New(&adc, &w,
		acquire.WithPublisher(&rec),
		acquire.WithIndicator(&rec),
		acquire.WithLogger(quiet))

	_, ok := task.Values().Latest()
	assert.False(t, ok)

	err := task.Cycle()
	require.Nil(t, err)
	assert.Equal(t, acquire.DefaultTimeout, w.timeout)
	require.Equal(t, 1, rec.count())
	r := rec.readings[0]
	assert.Equal(t, uint64(1), r.Seq)
	assert.Equal(t, uint16(0x010f), r.Status)
	assert.Equal(t, []int32{10, -20}, r.Codes)
	assert.Equal(t, []float64{1, -2}, r.Volts)
	assert.Equal(t, 1, rec.sampled)

	latest, ok := task.Values().Latest()
	assert.True(t, ok)
	assert.Equal(t, r, latest)

	s := task.Stats()
	assert.Equal(t, uint64(1), s.Frames)
	assert.Equal(t, uint64(1), s.Readings)
}

func TestCycleTimeout(t *testing.T) {
	adc := scriptedADC{}
	w := scriptedWaiter{results: []bool{false}}
	rec := recorder{}
	task := acquire.New(&adc, &w,
		acquire.WithTimeout(time.Second),
		acquire.WithPublisher(&rec),
		acquire.WithIndicator(&rec),
		acquire.WithLogger(quiet))

	err := task.Cycle()
	assert.Nil(t, err)
	assert.Equal(t, time.Second, w.timeout)
	assert.Equal(t, 0, rec.count())
	assert.Equal(t, 1, rec.missed)
	s := task.Stats()
	assert.Equal(t, uint64(1), s.Timeouts)
	assert.Equal(t, uint64(0), s.Frames)

	// continues after a timeout
	err = task.Cycle()
	assert.Nil(t, err)
	assert.Equal(t, 1, rec.count())
}

func TestCycleCRC(t *testing.T) {
	adc := scriptedADC{frames: []frameResult{
		{s: ads131m.Sample{Codes: []int32{5}, CRCValid: true}},
		{s: ads131m.Sample{Codes: []int32{666}, CRCValid: false}},
	}}
	w := scriptedWaiter{}
	rec := recorder{}
	task := acquire.New(&adc, &w,
		acquire.WithPublisher(&rec),
		acquire.WithLogger(quiet))

	require.Nil(t, task.Cycle())
	require.Nil(t, task.Cycle())
	// the corrupt frame is discarded and the published value retained
	assert.Equal(t, 1, rec.count())
	latest, ok := task.Values().Latest()
	assert.True(t, ok)
	assert.Equal(t, []int32{5}, latest.Codes)
	s := task.Stats()
	assert.Equal(t, uint64(2), s.Frames)
	assert.Equal(t, uint64(1), s.CRCErrors)
	assert.Equal(t, uint64(1), s.Readings)
}

func TestCycleTransportError(t *testing.T) {
	adc := scriptedADC{frames: []frameResult{
		{err: errors.New("bus fault")},
	}}
	task := acquire.New(&adc, &scriptedWaiter{}, acquire.WithLogger(quiet))

	assert.Nil(t, task.Cycle())
	assert.Equal(t, uint64(1), task.Stats().TransportErrors)
	assert.Equal(t, 0, adc.resets)
}

func TestCycleRecovery(t *testing.T) {
	adc := scriptedADC{
		frames:    []frameResult{{err: ads131m.ErrUnexpectedReset}},
		resetErrs: []error{ads131m.ErrResetNotAcknowledged, nil},
	}
	rec := recorder{}
	task := acquire.New(&adc, &scriptedWaiter{},
		acquire.WithIndicator(&rec),
		acquire.WithLogger(quiet))

	assert.Nil(t, task.Cycle())
	assert.Equal(t, 2, adc.resets)
	assert.Equal(t, uint64(2), task.Stats().Resets)
	assert.Equal(t, 0, rec.faulted)
}

func TestCycleRecoveryFailed(t *testing.T) {
	adc := scriptedADC{
		frames: []frameResult{{err: ads131m.ErrNotConfigured}},
		resetErrs: []error{
			ads131m.ErrResetNotAcknowledged,
			ads131m.ErrResetNotAcknowledged,
		},
	}
	rec := recorder{}
	task := acquire.New(&adc, &scriptedWaiter{},
		acquire.WithMaxResets(2),
		acquire.WithIndicator(&rec),
		acquire.WithLogger(quiet))

	err := task.Cycle()
	assert.True(t, errors.Is(err, acquire.ErrRecovery))
	assert.True(t, errors.Is(err, ads131m.ErrResetNotAcknowledged))
	assert.Equal(t, 2, adc.resets)
	assert.Equal(t, 1, rec.faulted)
}

func TestCycleRecoveryDisabled(t *testing.T) {
	adc := scriptedADC{
		frames: []frameResult{{err: ads131m.ErrUnexpectedReset}},
	}
	rec := recorder{}
	task := acquire.New(&adc, &scriptedWaiter{},
		acquire.WithMaxResets(0),
		acquire.WithIndicator(&rec),
		acquire.WithLogger(quiet))

	err := task.Cycle()
	require.NotNil(t, err)
	assert.True(t, errors.Is(err, acquire.ErrRecovery))
	assert.True(t, errors.Is(err, ads131m.ErrUnexpectedReset))
	assert.NotContains(t, err.Error(), "%!")
	assert.Equal(t, 0, adc.resets)
	assert.Equal(t, 1, rec.faulted)
}

func TestRunBarrier(t *testing.T) {
	adc := scriptedADC{}
	w := scriptedWaiter{}
	rec := recorder{}
	b := acquire.NewBarrier()
	task := acquire.New(&adc, &w,
		acquire.WithBarrier(b),
		acquire.WithPublisher(&rec),
		acquire.WithLogger(quiet))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- task.Run(ctx)
	}()
	time.Sleep(20 * time.Millisecond)
	assert.False(t, b.Ready())
	assert.Equal(t, 0, rec.count())

	b.Done()
	b.Done()
	assert.True(t, b.Ready())
	assert.Eventually(t, func() bool { return rec.count() > 10 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestRunCancelledBeforeBarrier(t *testing.T) {
	task := acquire.New(&scriptedADC{}, &scriptedWaiter{},
		acquire.WithBarrier(acquire.NewBarrier()),
		acquire.WithLogger(quiet))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := task.Run(ctx)
	assert.Equal(t, context.DeadlineExceeded, err)
}

func TestRunStartDelay(t *testing.T) {
	rec := recorder{}
	task := acquire.New(&scriptedADC{}, &scriptedWaiter{},
		acquire.WithStartDelay(time.Hour),
		acquire.WithPublisher(&rec),
		acquire.WithLogger(quiet))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := task.Run(ctx)
	assert.Equal(t, context.DeadlineExceeded, err)
	assert.Equal(t, 0, rec.count())
}

func TestRunEscalates(t *testing.T) {
	adc := scriptedADC{
		frames:    []frameResult{{err: ads131m.ErrUnexpectedReset}},
		resetErrs: []error{ads131m.ErrResetNotAcknowledged},
	}
	task := acquire.New(&adc, &scriptedWaiter{},
		acquire.WithMaxResets(1),
		acquire.WithLogger(quiet))
	err := task.Run(context.Background())
	assert.True(t, errors.Is(err, acquire.ErrRecovery))
}

// TestSimulatedDevice runs the task against the simulated device with data
// ready edges raised by the test.
func TestSimulatedDevice(t *testing.T) {
	d := mockup.NewADS131M()
	tr, err := spi.NewTransport(d, d.CS())
	require.Nil(t, err)
	sr, err := pin.NewSyncReset(d.SyncReset())
	require.Nil(t, err)
	adc, err := ads131m.New(tr, sr)
	require.Nil(t, err)
	require.Nil(t, adc.Startup())

	f := drdy.NewFlag()
	w := drdy.NewWaiter(f, drdy.WithPollInterval(50*time.Microsecond))
	rec := recorder{}
	task := acquire.New(adc, w,
		acquire.WithFlag(f),
		acquire.WithTimeout(20*time.Millisecond),
		acquire.WithPublisher(&rec),
		acquire.WithLogger(quiet))

	d.SetCodes(0x7fffff, -0x800000, 0, 1)
	go func() {
		time.Sleep(time.Millisecond)
		f.HandleEvent(gpiocdevEvent(time.Millisecond))
	}()
	require.Nil(t, task.Cycle())
	require.Equal(t, 1, rec.count())
	r := rec.readings[0]
	assert.Equal(t, []int32{0x7fffff, -0x800000, 0, 1}, r.Codes)
	assert.InDelta(t, 0.3, r.Volts[0], 1e-6)
	assert.InDelta(t, -0.3, r.Volts[1], 1e-12)

	// no edge
	require.Nil(t, task.Cycle())
	assert.Equal(t, uint64(1), task.Stats().Timeouts)

	// corrupt frame
	d.CorruptCRC(1)
	f.Set(true)
	go func() {
		time.Sleep(time.Millisecond)
		f.HandleEvent(gpiocdevEvent(2 * time.Millisecond))
	}()
	require.Nil(t, task.Cycle())
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, uint64(1), task.Stats().CRCErrors)

	// brownout recovered by reset
	d.Glitch()
	go func() {
		time.Sleep(time.Millisecond)
		f.HandleEvent(gpiocdevEvent(3 * time.Millisecond))
	}()
	require.Nil(t, task.Cycle())
	assert.Equal(t, uint64(1), task.Stats().Resets)
	assert.Equal(t, ads131m.Configured, adc.State())
	assert.Equal(t, uint64(3), task.Stats().Edges)
	// gain and clock restored along with the mode
	assert.Equal(t, uint16(0x3333), d.Registers()[ads131m.RegGain1])
	assert.Equal(t, d.Registers(), adc.Registers())

	d.SetCodes(0x7fffff, -0x800000, 0, 1)
	go func() {
		time.Sleep(time.Millisecond)
		f.HandleEvent(gpiocdevEvent(4 * time.Millisecond))
	}()
	require.Nil(t, task.Cycle())
	require.Equal(t, 2, rec.count())
	r = rec.readings[1]
	assert.InDelta(t, 0.3, r.Volts[0], 1e-6)
	assert.InDelta(t, -0.3, r.Volts[1], 1e-12)
}

func gpiocdevEvent(ts time.Duration) gpiocdev.LineEvent {
	return gpiocdev.LineEvent{
		Timestamp: ts,
		Type:      gpiocdev.LineEventFallingEdge,
	}
}
