// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package spidev provides an spi.Bus backed by the Linux spidev driver.
package spidev

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// DefaultSpeed is the default SCLK frequency, in Hz.
const DefaultSpeed = 10000000

// Bus is a spidev port connected in SPI mode 1 with the chip select left to
// the caller.
type Bus struct {
	p spi.PortCloser
	c spi.Conn
}

// Open opens the named spidev port, e.g. "SPI0.0" or "/dev/spidev0.0".
//
// The port is driven in mode 1, with 8 bit words, and the hardware chip select
// disabled, so the chip select must be driven separately by a spi.Transport.
func Open(name string, options ...Option) (*Bus, error) {
	o := busConfig{speed: DefaultSpeed}
	for _, option := range options {
		option(&o)
	}
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	p, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	c, err := p.Connect(physic.Frequency(o.speed)*physic.Hertz, spi.Mode1|spi.NoCS, 8)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("connect %s: %w", name, err)
	}
	return &Bus{p: p, c: c}, nil
}

// Close releases the port.
func (b *Bus) Close() error {
	return b.p.Close()
}

// Tx performs a full duplex transfer.
func (b *Bus) Tx(w, r []byte) error {
	return b.c.Tx(w, r)
}

type busConfig struct {
	speed int64
}

// Option specifies a construction option for a Bus.
type Option func(*busConfig)

// WithSpeed sets the SCLK frequency, in Hz.
func WithSpeed(hz int64) Option {
	return func(o *busConfig) {
		o.speed = hz
	}
}
