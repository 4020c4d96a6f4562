// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package console writes readings as CSV lines, typically to a UART.
package console

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/warthog618/ads131m/acquire"
	"go.bug.st/serial"
)

// DefaultBaudRate is the default UART baud rate.
const DefaultBaudRate = 115200

// DefaultPrecision is the default number of decimal places of the volts.
const DefaultPrecision = 9

// Console writes readings to a stream, one CSV line per reading.
type Console struct {
	mu        sync.Mutex
	w         io.Writer
	c         io.Closer
	log       *slog.Logger
	precision int
	failed    bool
	buf       []byte
}

// Open opens the serial port and returns a Console writing to it.
func Open(port string, baud int, options ...Option) (*Console, error) {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	p, err := serial.Open(port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", port, err)
	}
	c := New(p, options...)
	c.c = p
	return c, nil
}

// New creates a Console writing to w.
func New(w io.Writer, options ...Option) *Console {
	c := Console{
		w:         w,
		log:       slog.Default(),
		precision: DefaultPrecision,
	}
	for _, option := range options {
		option(&c)
	}
	return &c
}

// Header writes the CSV header for the given number of channels.
func (c *Console) Header(channels int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := append(c.buf[:0], "seq,time"...)
	for ch := 0; ch < channels; ch++ {
		b = append(b, ",ch"...)
		b = strconv.AppendInt(b, int64(ch), 10)
	}
	b = append(b, '\n')
	c.buf = b
	_, err := c.w.Write(b)
	return err
}

// Publish writes r as a CSV line.
//
// Write errors are logged, once until the next successful write, and
// otherwise ignored.
func (c *Console) Publish(r acquire.Reading) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := strconv.AppendUint(c.buf[:0], r.Seq, 10)
	b = append(b, ',')
	b = r.Time.UTC().AppendFormat(b, time.RFC3339Nano)
	for _, v := range r.Volts {
		b = append(b, ',')
		b = strconv.AppendFloat(b, v, 'f', c.precision, 64)
	}
	b = append(b, '\n')
	c.buf = b
	if _, err := c.w.Write(b); err != nil {
		if !c.failed {
			c.log.Warn("console write", "err", err)
		}
		c.failed = true
		return
	}
	c.failed = false
}

// Close closes the underlying port, if opened by Open.
func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.c == nil {
		return nil
	}
	err := c.c.Close()
	c.c = nil
	return err
}

// Option specifies a construction option for a Console.
type Option func(*Console)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Console) {
		c.log = l
	}
}

// WithPrecision sets the number of decimal places of the volts.
func WithPrecision(n int) Option {
	return func(c *Console) {
		c.precision = n
	}
}
