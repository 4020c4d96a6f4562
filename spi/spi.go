// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package spi

import (
	"errors"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// SPI represents an SPI bus bit bashed over 3 GPIO lines, plus an optional
// slave select line.
//
// This is the basis for bit bashed SPI interfaces using GPIO pins. It is not
// related to the SPI device drivers provided by Linux.
//
// SPI implements Bus, and so leaves the slave select to the Transport. Ssz is
// requested, and held inactive, so it may be passed to NewTransport.
type SPI struct {
	// time between clock edges (i.e. half the cycle time)
	Tclk time.Duration
	Sclk *gpiocdev.Line
	Ssz  *gpiocdev.Line
	Mosi *gpiocdev.Line
	Miso *gpiocdev.Line
	cpol int
	cpha int
}

// ErrLength indicates the write and read buffers of a transfer differ in
// length.
var ErrLength = errors.New("buffer length mismatch")

// New creates a SPI.
//
// If ssz is negative then no slave select line is requested.
func New(c *gpiocdev.Chip, sclk, ssz, mosi, miso int, options ...Option) (*SPI, error) {
	s := SPI{}
	for _, option := range options {
		option(&s)
	}
	if s.Tclk == 0 {
		// default to 1MHz full cycle.
		s.Tclk = 500 * time.Nanosecond
	}
	var err error
	var l *gpiocdev.Line
	defer func() {
		if err != nil {
			s.Close()
		}
	}()
	if ssz >= 0 {
		// hold the device deselected until needed...
		l, err = c.RequestLine(ssz, gpiocdev.AsOutput(1))
		if err != nil {
			return nil, err
		}
		s.Ssz = l
	}
	clkOpts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if s.cpol != 0 {
		clkOpts = append(clkOpts, gpiocdev.AsActiveLow)
	}
	l, err = c.RequestLine(sclk, clkOpts...)
	if err != nil {
		return nil, err
	}
	s.Sclk = l
	l, err = c.RequestLine(miso, gpiocdev.AsInput)
	if err != nil {
		return nil, err
	}
	s.Miso = l
	if miso == mosi {
		err = errors.New("half duplex not supported")
		return nil, err
	}
	l, err = c.RequestLine(mosi, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, err
	}
	s.Mosi = l
	return &s, nil
}

// Close releases allocated resources.
func (s *SPI) Close() {
	if s.Sclk != nil {
		s.Sclk.Close()
	}
	if s.Miso != nil {
		s.Miso.Close()
	}
	if s.Mosi != nil {
		s.Mosi.Close()
	}
	if s.Ssz != nil {
		s.Ssz.Close()
	}
}

// Tx clocks w out on Mosi while clocking Miso into r, MSB first.
//
// The slave select is not touched.
func (s *SPI) Tx(w, r []byte) error {
	if len(w) != len(r) {
		return ErrLength
	}
	for i, b := range w {
		var in byte
		for bit := 7; bit >= 0; bit-- {
			v, err := s.Transfer(int(b>>uint(bit)) & 0x01)
			if err != nil {
				return err
			}
			in = in << 1
			if v != 0 {
				in = in | 0x01
			}
		}
		r[i] = in
	}
	return nil
}

// Transfer clocks out v on Mosi and clocks in a bit from Miso.
//
// Starts and ends with the clock idle.
func (s *SPI) Transfer(v int) (int, error) {
	if s.cpha == 0 {
		// data valid before the leading edge, sampled on it.
		err := s.Mosi.SetValue(v)
		if err != nil {
			return 0, err
		}
		time.Sleep(s.Tclk)
		err = s.Sclk.SetValue(1)
		if err != nil {
			return 0, err
		}
		in, err := s.Miso.Value()
		if err != nil {
			return 0, err
		}
		time.Sleep(s.Tclk)
		return in, s.Sclk.SetValue(0)
	}
	// data shifted on the leading edge, sampled on the trailing edge.
	err := s.Sclk.SetValue(1)
	if err != nil {
		return 0, err
	}
	err = s.Mosi.SetValue(v)
	if err != nil {
		return 0, err
	}
	time.Sleep(s.Tclk)
	err = s.Sclk.SetValue(0)
	if err != nil {
		return 0, err
	}
	in, err := s.Miso.Value()
	if err != nil {
		return 0, err
	}
	time.Sleep(s.Tclk)
	return in, nil
}

// Option specifies a construction option for the SPI.
type Option func(*SPI)

// WithCPOL sets the cpol for the SPI.
func WithCPOL(cpol int) Option {
	return func(s *SPI) {
		s.cpol = cpol
	}
}

// WithCPHA sets the cpha for the SPI.
func WithCPHA(cpha int) Option {
	return func(s *SPI) {
		s.cpha = cpha
	}
}

// WithMode sets the cpol and cpha for the SPI from the SPI mode number.
func WithMode(mode int) Option {
	return func(s *SPI) {
		s.cpol = (mode >> 1) & 0x01
		s.cpha = mode & 0x01
	}
}

// WithTclk sets the clock period for the SPI.
//
// Note that this is the half-cycle period.
func WithTclk(tclk time.Duration) Option {
	return func(s *SPI) {
		s.Tclk = tclk
	}
}
