// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package ads131m provides a driver for the TI ADS131M0x family of
// simultaneously sampling delta-sigma ADCs.
//
// The driver speaks the device frame protocol over a Conn, typically an
// spi.Transport, and drives the shared nSYNC/nRESET line through a Line,
// typically a pin.SyncReset.
package ads131m

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/ads131m/pin"
)

// Conn exchanges whole frames with the device.
type Conn interface {
	Exchange(tx, rx []byte) error
}

// Line drives the nSYNC/nRESET line of the device.
type Line interface {
	Sync() error
	Reset() error
}

// State is the configuration state of the device.
type State int

const (
	// Unconfigured indicates the device has been reset and the register
	// configuration has not been restored.
	Unconfigured State = iota

	// Configured indicates the device configuration has been restored.
	Configured
)

func (s State) String() string {
	if s == Configured {
		return "configured"
	}
	return "unconfigured"
}

var (
	// ErrNotConfigured indicates the device has not been configured since
	// it was last reset.
	ErrNotConfigured = errors.New("device not configured")

	// ErrResetNotAcknowledged indicates the device did not acknowledge a
	// reset.
	ErrResetNotAcknowledged = errors.New("reset not acknowledged")

	// ErrUnexpectedReset indicates the device reported a reset that was not
	// requested.
	ErrUnexpectedReset = errors.New("unexpected device reset")

	// ErrBadResponse indicates the device response to a command did not
	// match the expected response.
	ErrBadResponse = errors.New("bad response")

	// ErrCRC indicates a register access response failed the CRC check.
	ErrCRC = errors.New("response CRC mismatch")

	// ErrChannelCount indicates the device has a different number of
	// channels than configured.
	ErrChannelCount = errors.New("channel count mismatch")

	// ErrInvalidRegister indicates a register address outside the register
	// map.
	ErrInvalidRegister = errors.New("invalid register address")

	// ErrInvalidChannels indicates an unsupported number of channels.
	ErrInvalidChannels = errors.New("invalid number of channels")

	// ErrInvalidGain indicates an unsupported PGA gain.
	ErrInvalidGain = errors.New("invalid gain")

	// ErrInvalidOSR indicates an unsupported oversampling ratio.
	ErrInvalidOSR = errors.New("invalid oversampling ratio")

	// ErrInvalidPowerMode indicates an unsupported power mode.
	ErrInvalidPowerMode = errors.New("invalid power mode")

	// ErrInvalidCRCType indicates an unsupported CRC type.
	ErrInvalidCRCType = errors.New("invalid CRC type")

	// ErrLocked indicates the command is not accepted while the interface
	// is locked.
	ErrLocked = errors.New("interface locked")
)

// ADC is an ADS131M0x device.
type ADC struct {
	mu       sync.Mutex
	c        Conn
	line     Line
	channels int
	gain     int
	vref     float64
	crcType  CRCType
	osr      OSR
	pm       PowerMode
	clkin    uint32
	mode     uint16
	regs     Registers
	state    State
	locked   bool
	applied  bool
	tx       []byte
	rx       []byte
}

// New creates an ADC communicating over c with its nSYNC/nRESET line driven
// by line.
//
// The device is not touched until Reset or Startup is called.
func New(c Conn, line Line, options ...Option) (*ADC, error) {
	a := ADC{
		c:        c,
		line:     line,
		channels: DefaultChannels,
		gain:     DefaultGain,
		vref:     DefaultVref,
		osr:      OSR1024,
		pm:       PowerHighResolution,
		clkin:    pin.DefaultClockIn,
		mode:     DefaultMode,
	}
	for _, option := range options {
		option(&a)
	}
	if a.channels < 1 || a.channels > MaxChannels {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannels, a.channels)
	}
	if _, err := GainCode(a.gain); err != nil {
		return nil, err
	}
	if a.clkin == 0 {
		return nil, pin.ErrClockIn
	}
	a.regs = DefaultRegisters(a.channels)
	n := FrameSize(a.channels)
	a.tx = make([]byte, n)
	a.rx = make([]byte, n)
	return &a, nil
}

// Channels returns the number of channels.
func (a *ADC) Channels() int {
	return a.channels
}

// Gain returns the PGA gain applied to every channel.
func (a *ADC) Gain() int {
	return a.gain
}

// LSBWeight returns the voltage represented by one code step at the
// configured gain.
func (a *ADC) LSBWeight() float64 {
	return LSBWeight(a.vref, a.gain)
}

// DataRate returns the output data rate, in Hz.
func (a *ADC) DataRate() float64 {
	return float64(a.clkin) / 2 / float64(a.osr.Ratio())
}

// Volts returns the voltage of each channel in s.
//
// Each channel is scaled by the gain held in the register shadow, so
// the scaling tracks the gain the device is actually applying.
func (a *ADC) Volts(s Sample) []float64 {
	a.mu.Lock()
	regs := a.regs
	a.mu.Unlock()
	vv := make([]float64, len(s.Codes))
	for i, c := range s.Codes {
		vv[i] = Scale(c, LSBWeight(a.vref, regs.Gain(i)))
	}
	return vv
}

// State returns the configuration state of the device.
func (a *ADC) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Registers returns a copy of the register shadow.
func (a *ADC) Registers() Registers {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.regs
}

// ReadFrame reads the frame containing the latest conversion.
//
// A CRC mismatch is reported in the Sample, not as an error.
//
// If the device reports a reset that was not requested then the ADC returns
// to Unconfigured and ErrUnexpectedReset is returned. The ADC must be Reset
// before further frames can be read.
func (a *ADC) ReadFrame() (Sample, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Configured {
		return Sample{}, ErrNotConfigured
	}
	s, err := a.frame(CmdNull)
	if err != nil {
		return s, err
	}
	if s.CRCValid && s.Status.Reset() {
		a.state = Unconfigured
		return s, ErrUnexpectedReset
	}
	return s, nil
}

// WriteRegister writes value to the register at addr.
//
// The shadow is updated only once the device acknowledges the write.
func (a *ADC) WriteRegister(addr uint8, value uint16) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.writeRegister(addr, value)
}

// ReadRegister reads the register at addr, refreshing the shadow.
func (a *ADC) ReadRegister(addr uint8) (uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.readRegister(addr)
}

// Reset resets the device with a pulse on the nRESET line, verifies the
// device acknowledges the reset, and restores the device configuration.
//
// Once Startup has succeeded the restored configuration includes the clock
// and gain, so a Reset returns the device to the state left by Startup.
func (a *ADC) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = Unconfigured
	if err := a.line.Reset(); err != nil {
		return err
	}
	return a.recover()
}

// SoftReset resets the device with the RESET command, then verifies and
// recovers as per Reset.
func (a *ADC) SoftReset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.locked {
		return ErrLocked
	}
	a.state = Unconfigured
	if _, err := a.frame(CmdReset); err != nil {
		return err
	}
	pin.Delay(pin.DefaultRegAcq)
	return a.recover()
}

// Sync resynchronises the channel sampling with a pulse on the nSYNC line.
//
// The device configuration is unaffected.
func (a *ADC) Sync() error {
	return a.line.Sync()
}

// Startup brings the device up from an unknown state.
//
// The device is reset, its channel count checked against the configured
// channels, and the configured clock and gain applied.
func (a *ADC) Startup() error {
	if err := a.Reset(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id, err := a.readRegister(RegID)
	if err != nil {
		return err
	}
	if n := int(id>>8) & 0x0f; n != a.channels {
		return fmt.Errorf("%w: device has %d, configured %d", ErrChannelCount, n, a.channels)
	}
	if err = a.configure(); err != nil {
		return err
	}
	a.applied = true
	return nil
}

// configure writes the configured clock and gain.
func (a *ADC) configure() error {
	if err := a.writeRegister(RegClock, ClockValue(a.channels, a.osr, a.pm)); err != nil {
		return err
	}
	code, _ := GainCode(a.gain)
	g1, g2 := GainValues(a.channels, code)
	if err := a.writeRegister(RegGain1, g1); err != nil {
		return err
	}
	if a.channels > 4 {
		return a.writeRegister(RegGain2, g2)
	}
	return nil
}

// Standby places the device in standby mode.
func (a *ADC) Standby() error {
	return a.command(CmdStandby)
}

// Wakeup returns the device from standby mode.
func (a *ADC) Wakeup() error {
	return a.command(CmdWakeup)
}

// Lock locks the interface so only NULL, RREG and UNLOCK are accepted.
func (a *ADC) Lock() error {
	return a.command(CmdLock)
}

// Unlock unlocks the interface.
func (a *ADC) Unlock() error {
	return a.command(CmdUnlock)
}

func (a *ADC) command(cmd Command) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.locked && cmd != CmdUnlock {
		return ErrLocked
	}
	if _, err := a.frame(cmd); err != nil {
		return err
	}
	ack, err := a.frame(CmdNull)
	if err != nil {
		return err
	}
	if !ack.CRCValid {
		return fmt.Errorf("%s: %w", cmd, ErrCRC)
	}
	if ack.Response != uint16(cmd) {
		return fmt.Errorf("%s: %w: 0x%04x", cmd, ErrBadResponse, ack.Response)
	}
	switch cmd {
	case CmdLock:
		a.locked = true
	case CmdUnlock:
		a.locked = false
	}
	return nil
}

// recover verifies the reset acknowledgement and restores the configuration.
func (a *ADC) recover() error {
	a.regs = DefaultRegisters(a.channels)
	a.locked = false
	s, err := a.frame(CmdNull)
	if err != nil {
		return err
	}
	want := ResetAck(a.channels)
	if s.Response != want {
		return fmt.Errorf("%w: response 0x%04x, expected 0x%04x",
			ErrResetNotAcknowledged, s.Response, want)
	}
	mode := a.mode &^ (ModeReset | ModeCRCType)
	if a.crcType == CRCANSI {
		mode |= ModeCRCType
	}
	if err = a.writeRegister(RegMode, mode); err != nil {
		return err
	}
	if a.applied {
		if err = a.configure(); err != nil {
			return err
		}
	}
	a.state = Configured
	return nil
}

func (a *ADC) writeRegister(addr uint8, value uint16) error {
	if addr >= NumRegisters {
		return fmt.Errorf("%w: 0x%02x", ErrInvalidRegister, addr)
	}
	if a.locked {
		return ErrLocked
	}
	cmd := WriteRegisters(addr, 1)
	if _, err := a.frame(cmd, value); err != nil {
		return err
	}
	prev := a.regs[addr]
	// the acknowledge frame is built under the new MODE
	a.regs[addr] = value
	ack, err := a.frame(CmdNull)
	if err == nil {
		switch {
		case !ack.CRCValid:
			err = fmt.Errorf("%s: %w", cmd, ErrCRC)
		case ack.Response != WriteAck(addr, 1):
			err = fmt.Errorf("%s: %w: 0x%04x, expected 0x%04x",
				cmd, ErrBadResponse, ack.Response, WriteAck(addr, 1))
		}
	}
	if err != nil {
		a.regs[addr] = prev
	}
	return err
}

func (a *ADC) readRegister(addr uint8) (uint16, error) {
	if addr >= NumRegisters {
		return 0, fmt.Errorf("%w: 0x%02x", ErrInvalidRegister, addr)
	}
	cmd := ReadRegisters(addr, 1)
	if _, err := a.frame(cmd); err != nil {
		return 0, err
	}
	s, err := a.frame(CmdNull)
	if err != nil {
		return 0, err
	}
	if !s.CRCValid {
		return 0, fmt.Errorf("%s: %w", cmd, ErrCRC)
	}
	a.regs[addr] = s.Response
	return s.Response, nil
}

// frame exchanges a single frame with the device, sending cmd followed by
// any args.
func (a *ADC) frame(cmd Command, args ...uint16) (Sample, error) {
	for i := range a.tx {
		a.tx[i] = 0
	}
	PutWord(a.tx, uint16(cmd))
	for i, v := range args {
		PutWord(a.tx[(i+1)*WordSize:], v)
	}
	if err := a.c.Exchange(a.tx, a.rx); err != nil {
		return Sample{}, err
	}
	return DecodeFrame(a.rx, a.channels, a.regs.CRCType()), nil
}
