// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package mockup provides a simulated ADS131M0x for testing the driver and
// acquisition without hardware.
package mockup

import (
	"errors"
	"sync"
	"time"

	"github.com/warthog618/ads131m"
	"github.com/warthog618/ads131m/pin"
)

var (
	// ErrNotSelected indicates a transfer was attempted without the chip
	// select asserted.
	ErrNotSelected = errors.New("chip select not asserted")

	// ErrFrameSize indicates a transfer that is not a whole frame.
	ErrFrameSize = errors.New("transfer is not a whole frame")
)

// ADS131M simulates an ADS131M0x on the far side of an SPI bus.
//
// It implements spi.Bus and spi.Drainer, and provides the chip select and
// nSYNC/nRESET lines as pin.Setters.
//
// Responses follow the device protocol, so the response to a command is
// returned in the frame following the command.
type ADS131M struct {
	mu         sync.Mutex
	channels   int
	regs       ads131m.Registers
	pending    uint16
	codes      []int32
	corrupt    int
	residual   bool
	mute       bool
	resetWidth time.Duration
	selected   bool
	lowAt      time.Time
	locked     bool
	standby    bool
	frames     int
	syncs      int
	resets     int
	drains     int
	selects    int
}

// NewADS131M creates a simulated device, in its power on state.
func NewADS131M(options ...ADS131MOption) *ADS131M {
	d := ADS131M{
		channels:   ads131m.DefaultChannels,
		resetWidth: pin.Periods(pin.MinResetPeriods, pin.DefaultClockIn),
	}
	for _, option := range options {
		option(&d)
	}
	d.codes = make([]int32, d.channels)
	d.reset()
	return &d
}

// CS returns the chip select line of the device.
func (d *ADS131M) CS() pin.Setter {
	return csLine{d}
}

// SyncReset returns the nSYNC/nRESET line of the device.
func (d *ADS131M) SyncReset() pin.Setter {
	return syncResetLine{d}
}

// Tx performs a frame exchange.
func (d *ADS131M) Tx(w, r []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.selected {
		return ErrNotSelected
	}
	if len(w) != ads131m.FrameSize(d.channels) || len(r) != len(w) {
		return ErrFrameSize
	}
	d.frames++
	d.output(r)
	d.pending = d.execute(w)
	return nil
}

// Drain discards any residual data injected by InjectResidual.
func (d *ADS131M) Drain() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drains++
	d.residual = false
	return nil
}

// SetCodes sets the conversion codes returned in subsequent frames.
func (d *ADS131M) SetCodes(codes ...int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(d.codes, codes)
}

// CorruptCRC corrupts the CRC of the next n frames.
func (d *ADS131M) CorruptCRC(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.corrupt = n
}

// InjectResidual leaves stale data in the receive path which garbles the
// next frame unless drained.
func (d *ADS131M) InjectResidual() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.residual = true
}

// Glitch resets the device, as if by a supply brownout.
func (d *ADS131M) Glitch() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset()
}

// Registers returns a copy of the device registers.
func (d *ADS131M) Registers() ads131m.Registers {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs
}

// Locked returns true if the interface is locked.
func (d *ADS131M) Locked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.locked
}

// Standby returns true if the device is in standby.
func (d *ADS131M) Standby() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.standby
}

// Frames returns the number of frames exchanged.
func (d *ADS131M) Frames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

// Syncs returns the number of sync pulses seen on the nSYNC/nRESET line.
func (d *ADS131M) Syncs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.syncs
}

// Resets returns the number of resets, by pulse or command.
func (d *ADS131M) Resets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resets
}

// Drains returns the number of times the receive path was drained.
func (d *ADS131M) Drains() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drains
}

// Selects returns the number of times the chip select was asserted.
func (d *ADS131M) Selects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selects
}

func (d *ADS131M) reset() {
	d.regs = ads131m.DefaultRegisters(d.channels)
	d.locked = false
	d.standby = false
	d.pending = ads131m.ResetAck(d.channels)
	if d.mute {
		d.pending = 0
	}
}

func (d *ADS131M) status() uint16 {
	s := uint16(0x0100)
	s |= d.regs[ads131m.RegMode] & (ads131m.ModeCRCType | ads131m.ModeReset)
	if d.locked {
		s |= 0x8000
	}
	if !d.standby {
		s |= uint16(1)<<uint(d.channels) - 1
	}
	return s
}

func (d *ADS131M) output(r []byte) {
	codes := d.codes
	if d.standby {
		codes = make([]int32, d.channels)
	}
	ads131m.EncodeFrame(r, d.pending, codes, d.regs.CRCType())
	if d.residual {
		// stale byte shifts the frame
		copy(r[1:], r[:len(r)-1])
		r[0] = 0xa5
		d.residual = false
	}
	if d.corrupt > 0 {
		d.corrupt--
		r[len(r)-2] ^= 0x01
	}
}

// execute applies the command in w and returns the response for the next
// frame.
func (d *ADS131M) execute(w []byte) uint16 {
	cmd := ads131m.Command(ads131m.Word(w))
	switch cmd {
	case ads131m.CmdNull:
		return d.status()
	case ads131m.CmdUnlock:
		d.locked = false
		return uint16(cmd)
	}
	if cmd&0xe000 == 0xa000 {
		addr := uint8(cmd>>7) & 0x3f
		return d.regs[addr]
	}
	if d.locked {
		return d.status()
	}
	switch cmd {
	case ads131m.CmdReset:
		d.resets++
		d.reset()
		return d.pending
	case ads131m.CmdStandby:
		d.standby = true
		return uint16(cmd)
	case ads131m.CmdWakeup:
		d.standby = false
		return uint16(cmd)
	case ads131m.CmdLock:
		d.locked = true
		return uint16(cmd)
	}
	if cmd&0xe000 == 0x6000 {
		addr := uint8(cmd>>7) & 0x3f
		n := int(cmd&0x7f) + 1
		for i := 0; i < n; i++ {
			off := (i + 1) * ads131m.WordSize
			if off+ads131m.WordSize > len(w) {
				break
			}
			d.write(addr+uint8(i), ads131m.Word(w[off:]))
		}
		return ads131m.WriteAck(addr, n)
	}
	return d.status()
}

func (d *ADS131M) write(addr uint8, v uint16) {
	switch addr {
	case ads131m.RegID, ads131m.RegStatus:
		// read only
		return
	}
	if int(addr) < ads131m.NumRegisters {
		d.regs[addr] = v
	}
}

type csLine struct {
	d *ADS131M
}

func (l csLine) SetValue(v int) error {
	l.d.mu.Lock()
	defer l.d.mu.Unlock()
	sel := v == 0
	if sel && !l.d.selected {
		l.d.selects++
	}
	l.d.selected = sel
	return nil
}

type syncResetLine struct {
	d *ADS131M
}

func (l syncResetLine) SetValue(v int) error {
	l.d.mu.Lock()
	defer l.d.mu.Unlock()
	if v == 0 {
		if l.d.lowAt.IsZero() {
			l.d.lowAt = time.Now()
		}
		return nil
	}
	if l.d.lowAt.IsZero() {
		return nil
	}
	width := time.Since(l.d.lowAt)
	l.d.lowAt = time.Time{}
	if width >= l.d.resetWidth {
		l.d.resets++
		l.d.reset()
	} else {
		l.d.syncs++
	}
	return nil
}

// ADS131MOption specifies a construction option for an ADS131M.
type ADS131MOption func(*ADS131M)

// WithChannels sets the number of channels of the simulated device.
func WithChannels(n int) ADS131MOption {
	return func(d *ADS131M) {
		d.channels = n
	}
}

// WithUnresponsiveReset makes the device fail to acknowledge resets.
func WithUnresponsiveReset() ADS131MOption {
	return func(d *ADS131M) {
		d.mute = true
	}
}

// WithResetWidth sets the minimum low pulse width interpreted as a reset.
func WithResetWidth(w time.Duration) ADS131MOption {
	return func(d *ADS131M) {
		d.resetWidth = w
	}
}
