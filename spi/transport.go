// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package spi provides a full duplex SPI transport with a software controlled
// chip select, and a bit bashed SPI bus over GPIO lines.
package spi

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/ads131m/pin"
)

// Chip select timing.
const (
	// MinCSSetup is the minimum delay from the chip select falling edge to
	// the first clock edge, td(CSSC).
	MinCSSetup = 16 * time.Nanosecond

	// MinCSHold is the minimum delay from the last clock edge to the chip
	// select rising edge, td(SCCS).
	MinCSHold = 20 * time.Nanosecond

	// DefaultCSSetup is the default td(CSSC).
	DefaultCSSetup = 75 * time.Nanosecond

	// DefaultCSHold is the default td(SCCS).
	DefaultCSHold = 75 * time.Nanosecond
)

// Bus is a full duplex SPI bus that leaves chip select to the caller.
type Bus interface {
	// Tx writes w while reading len(w) bytes into r.
	Tx(w, r []byte) error
}

// Drainer is implemented by a Bus that may hold residual received data from
// an earlier transaction.
type Drainer interface {
	// Drain discards any residual received data.
	Drain() error
}

// ErrTiming indicates a chip select delay below the device minimum.
var ErrTiming = errors.New("chip select timing below minimum")

// Transport exchanges frames with a single device over a Bus, driving an
// active low chip select line around each exchange.
type Transport struct {
	mu    sync.Mutex
	bus   Bus
	cs    pin.Setter
	tcssc time.Duration
	tsccs time.Duration
}

// NewTransport creates a Transport for the device on bus selected by cs.
//
// The chip select is driven high, deselecting the device, before returning.
func NewTransport(bus Bus, cs pin.Setter, options ...TransportOption) (*Transport, error) {
	t := Transport{
		bus:   bus,
		cs:    cs,
		tcssc: DefaultCSSetup,
		tsccs: DefaultCSHold,
	}
	for _, option := range options {
		option(&t)
	}
	if t.tcssc < MinCSSetup {
		return nil, fmt.Errorf("%w: td(CSSC) %s < %s", ErrTiming, t.tcssc, MinCSSetup)
	}
	if t.tsccs < MinCSHold {
		return nil, fmt.Errorf("%w: td(SCCS) %s < %s", ErrTiming, t.tsccs, MinCSHold)
	}
	if err := cs.SetValue(1); err != nil {
		return nil, err
	}
	return &t, nil
}

// Exchange sends tx to the device while capturing the device output into rx.
//
// The buffers must be non-nil and of equal length. Passing anything else is a
// programming error and panics.
//
// The chip select is released even if the bus fails.
func (t *Transport) Exchange(tx, rx []byte) error {
	if tx == nil || rx == nil {
		panic("spi: nil exchange buffer")
	}
	if len(tx) != len(rx) {
		panic(fmt.Sprintf("spi: exchange buffer length mismatch: tx %d, rx %d", len(tx), len(rx)))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if d, ok := t.bus.(Drainer); ok {
		if err := d.Drain(); err != nil {
			return err
		}
	}
	if err := t.cs.SetValue(0); err != nil {
		return err
	}
	pin.Delay(t.tcssc)
	err := t.bus.Tx(tx, rx)
	pin.Delay(t.tsccs)
	if cerr := t.cs.SetValue(1); err == nil {
		err = cerr
	}
	return err
}

// TransportOption specifies a construction option for a Transport.
type TransportOption func(*Transport)

// WithCSSetup sets the delay from chip select assertion to the start of the
// transfer, td(CSSC).
func WithCSSetup(d time.Duration) TransportOption {
	return func(t *Transport) {
		t.tcssc = d
	}
}

// WithCSHold sets the delay from the end of the transfer to chip select
// release, td(SCCS).
func WithCSHold(d time.Duration) TransportOption {
	return func(t *Transport) {
		t.tsccs = d
	}
}
