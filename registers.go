// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package ads131m

import "fmt"

// Register addresses.
const (
	RegID         uint8 = 0x00
	RegStatus     uint8 = 0x01
	RegMode       uint8 = 0x02
	RegClock      uint8 = 0x03
	RegGain1      uint8 = 0x04
	RegGain2      uint8 = 0x05
	RegCfg        uint8 = 0x06
	RegThrshldMSB uint8 = 0x07
	RegThrshldLSB uint8 = 0x08
	RegMapCRC     uint8 = 0x3e

	// NumRegisters is the size of the register map.
	NumRegisters = 64

	regCh0Cfg = 0x09
	chStride  = 5
)

// ChCfg returns the address of the CHn_CFG register of channel ch.
func ChCfg(ch int) uint8 {
	return uint8(regCh0Cfg + chStride*ch)
}

// ChOCalMSB returns the address of the CHn_OCAL_MSB register of channel ch.
func ChOCalMSB(ch int) uint8 {
	return ChCfg(ch) + 1
}

// ChOCalLSB returns the address of the CHn_OCAL_LSB register of channel ch.
func ChOCalLSB(ch int) uint8 {
	return ChCfg(ch) + 2
}

// ChGCalMSB returns the address of the CHn_GCAL_MSB register of channel ch.
func ChGCalMSB(ch int) uint8 {
	return ChCfg(ch) + 3
}

// ChGCalLSB returns the address of the CHn_GCAL_LSB register of channel ch.
func ChGCalLSB(ch int) uint8 {
	return ChCfg(ch) + 4
}

// MODE register fields.
const (
	ModeRegCRCEn   uint16 = 0x2000
	ModeRxCRCEn    uint16 = 0x1000
	ModeCRCType    uint16 = 0x0800
	ModeReset      uint16 = 0x0400
	ModeWLength    uint16 = 0x0300
	ModeWLength24  uint16 = 0x0100
	ModeTimeout    uint16 = 0x0010
	ModeDRDYSel    uint16 = 0x000c
	ModeDRDYHiZ    uint16 = 0x0002
	ModeDRDYFormat uint16 = 0x0001

	// DefaultMode is the MODE register value after reset.
	DefaultMode uint16 = 0x0510
)

// CLOCK register fields.
const (
	clockChEnShift = 8
	clockOSRShift  = 2
	clockOSRMask   = 0x001c
	clockPwrMask   = 0x0003
)

// OSR is the oversampling ratio code of the CLOCK register.
type OSR uint8

// Oversampling ratios.
const (
	OSR128 OSR = iota
	OSR256
	OSR512
	OSR1024
	OSR2048
	OSR4096
	OSR8192
	OSR16384
)

// Ratio returns the oversampling ratio.
func (o OSR) Ratio() int {
	return 128 << (o & 0x07)
}

// ParseOSR returns the OSR code for the ratio n.
func ParseOSR(n int) (OSR, error) {
	for o := OSR128; o <= OSR16384; o++ {
		if o.Ratio() == n {
			return o, nil
		}
	}
	return OSR1024, fmt.Errorf("%w: %d", ErrInvalidOSR, n)
}

// PowerMode is the power mode code of the CLOCK register.
type PowerMode uint8

// Power modes.
const (
	PowerVeryLow PowerMode = iota
	PowerLow
	PowerHighResolution
)

// ParsePowerMode returns the PowerMode named by s.
func ParsePowerMode(s string) (PowerMode, error) {
	switch s {
	case "very-low":
		return PowerVeryLow, nil
	case "low":
		return PowerLow, nil
	case "high-resolution", "":
		return PowerHighResolution, nil
	}
	return PowerHighResolution, fmt.Errorf("%w: %s", ErrInvalidPowerMode, s)
}

// ClockValue returns the CLOCK register value enabling the given number of
// channels at the given OSR and power mode.
func ClockValue(channels int, osr OSR, pm PowerMode) uint16 {
	en := uint16(1)<<uint(channels) - 1
	return en<<clockChEnShift |
		uint16(osr)<<clockOSRShift&clockOSRMask |
		uint16(pm)&clockPwrMask
}

// GainCode returns the PGA gain code, log2(gain), for gain.
func GainCode(gain int) (uint16, error) {
	for code := uint16(0); code < 8; code++ {
		if 1<<code == gain {
			return code, nil
		}
	}
	return 0, fmt.Errorf("%w: %d", ErrInvalidGain, gain)
}

// GainValues returns the GAIN1 and GAIN2 register values applying the same
// gain code to every channel.
func GainValues(channels int, code uint16) (gain1, gain2 uint16) {
	for ch := 0; ch < channels; ch++ {
		v := (code & 0x07) << uint(4*(ch%4))
		if ch < 4 {
			gain1 |= v
		} else {
			gain2 |= v
		}
	}
	return
}

// Registers is a shadow of the device register map.
type Registers [NumRegisters]uint16

// DefaultRegisters returns the register map of a device with the given
// number of channels, as found after reset.
func DefaultRegisters(channels int) Registers {
	var r Registers
	r[RegID] = 0x2000 | uint16(channels&0x0f)<<8
	r[RegStatus] = 0x0500
	r[RegMode] = DefaultMode
	r[RegClock] = ClockValue(channels, OSR1024, PowerHighResolution)
	r[RegCfg] = 0x0600
	for ch := 0; ch < channels; ch++ {
		r[ChGCalMSB(ch)] = 0x8000
	}
	return r
}

// Channels returns the channel count encoded in the ID register.
func (r Registers) Channels() int {
	return int(r[RegID]>>8) & 0x0f
}

// CRCType returns the frame CRC type selected by the MODE register.
func (r Registers) CRCType() CRCType {
	if r[RegMode]&ModeCRCType != 0 {
		return CRCANSI
	}
	return CRCCCITT
}

// Gain returns the PGA gain of channel ch selected by the GAIN registers.
func (r Registers) Gain(ch int) int {
	v := r[RegGain1]
	if ch >= 4 {
		v = r[RegGain2]
	}
	return 1 << ((v >> uint(4*(ch%4))) & 0x07)
}

// RegisterName returns the datasheet name of the register at addr.
func RegisterName(addr uint8) string {
	switch addr {
	case RegID:
		return "ID"
	case RegStatus:
		return "STATUS"
	case RegMode:
		return "MODE"
	case RegClock:
		return "CLOCK"
	case RegGain1:
		return "GAIN1"
	case RegGain2:
		return "GAIN2"
	case RegCfg:
		return "CFG"
	case RegThrshldMSB:
		return "THRSHLD_MSB"
	case RegThrshldLSB:
		return "THRSHLD_LSB"
	case RegMapCRC:
		return "REGMAP_CRC"
	}
	if addr >= regCh0Cfg && addr < regCh0Cfg+8*chStride {
		ch := int(addr-regCh0Cfg) / chStride
		switch int(addr-regCh0Cfg) % chStride {
		case 0:
			return fmt.Sprintf("CH%d_CFG", ch)
		case 1:
			return fmt.Sprintf("CH%d_OCAL_MSB", ch)
		case 2:
			return fmt.Sprintf("CH%d_OCAL_LSB", ch)
		case 3:
			return fmt.Sprintf("CH%d_GCAL_MSB", ch)
		default:
			return fmt.Sprintf("CH%d_GCAL_LSB", ch)
		}
	}
	return fmt.Sprintf("REG_%02X", addr)
}
