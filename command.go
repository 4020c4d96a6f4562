// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package ads131m

import "fmt"

// Command is an ADS131M0x command word.
type Command uint16

// Fixed commands.
const (
	CmdNull    Command = 0x0000
	CmdReset   Command = 0x0011
	CmdStandby Command = 0x0022
	CmdWakeup  Command = 0x0033
	CmdLock    Command = 0x0555
	CmdUnlock  Command = 0x0655

	cmdRREG Command = 0xa000
	cmdWREG Command = 0x6000

	respWREG  uint16 = 0x4000
	respRESET uint16 = 0xff20
)

// ReadRegisters returns the RREG command reading n registers from addr.
func ReadRegisters(addr uint8, n int) Command {
	return cmdRREG | regSpan(addr, n)
}

// WriteRegisters returns the WREG command writing n registers from addr.
func WriteRegisters(addr uint8, n int) Command {
	return cmdWREG | regSpan(addr, n)
}

// WriteAck returns the response expected to a WREG of n registers from addr.
func WriteAck(addr uint8, n int) uint16 {
	return respWREG | uint16(regSpan(addr, n))
}

// ResetAck returns the response expected after a reset of a device with the
// given number of channels.
func ResetAck(channels int) uint16 {
	return respRESET | uint16(channels&0x0f)
}

func regSpan(addr uint8, n int) Command {
	return Command(addr&0x3f)<<7 | Command((n-1)&0x7f)
}

func (c Command) String() string {
	switch c {
	case CmdNull:
		return "NULL"
	case CmdReset:
		return "RESET"
	case CmdStandby:
		return "STANDBY"
	case CmdWakeup:
		return "WAKEUP"
	case CmdLock:
		return "LOCK"
	case CmdUnlock:
		return "UNLOCK"
	}
	addr := (c >> 7) & 0x3f
	n := c&0x7f + 1
	switch c & 0xe000 {
	case cmdRREG:
		return fmt.Sprintf("RREG(0x%02x,%d)", uint16(addr), n)
	case cmdWREG:
		return fmt.Sprintf("WREG(0x%02x,%d)", uint16(addr), n)
	}
	return fmt.Sprintf("0x%04x", uint16(c))
}
