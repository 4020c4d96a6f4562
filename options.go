// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package ads131m

// Defaults for the ADC configuration.
const (
	DefaultChannels = 4
	DefaultGain     = 8
	MaxChannels     = 8
)

// Option specifies a construction option for an ADC.
type Option func(*ADC)

// WithChannels sets the number of channels of the device, 1 to 8.
func WithChannels(n int) Option {
	return func(a *ADC) {
		a.channels = n
	}
}

// WithGain sets the PGA gain of every channel, a power of 2 from 1 to 128.
func WithGain(gain int) Option {
	return func(a *ADC) {
		a.gain = gain
	}
}

// WithVref sets the reference voltage used to scale conversion codes.
func WithVref(vref float64) Option {
	return func(a *ADC) {
		a.vref = vref
	}
}

// WithCRCType sets the frame CRC type configured into the MODE register.
func WithCRCType(ct CRCType) Option {
	return func(a *ADC) {
		a.crcType = ct
	}
}

// WithOSR sets the oversampling ratio.
func WithOSR(osr OSR) Option {
	return func(a *ADC) {
		a.osr = osr
	}
}

// WithPowerMode sets the power mode.
func WithPowerMode(pm PowerMode) Option {
	return func(a *ADC) {
		a.pm = pm
	}
}

// WithClockIn sets the CLKIN frequency, in Hz.
func WithClockIn(hz uint32) Option {
	return func(a *ADC) {
		a.clkin = hz
	}
}

// WithModeValue sets the MODE register value written after reset.
//
// The RESET flag is always cleared and the CRC type bit follows WithCRCType.
func WithModeValue(mode uint16) Option {
	return func(a *ADC) {
		a.mode = mode
	}
}
