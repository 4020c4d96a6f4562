// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package rpi describes the wiring of an ADS131M0x board on the Raspberry Pi
// 40 pin header.
package rpi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// BCM GPIO numbers used by the board.
const (
	GPIO9  = 9
	GPIO10 = 10
	GPIO11 = 11
	GPIO22 = 22
	GPIO23 = 23
	GPIO24 = 24
	GPIO25 = 25

	// MaxGPIO is one past the highest GPIO on the header.
	MaxGPIO = 28
)

// Default wiring of the board.
const (
	Chip      = "gpiochip0"
	SPIDev    = "SPI0.0"
	CS        = GPIO22
	DRDY      = GPIO25
	SyncReset = GPIO24
	LED       = GPIO23
	SCLK      = GPIO11
	MOSI      = GPIO10
	MISO      = GPIO9
)

// physical maps header pin numbers to BCM GPIO numbers.
var physical = map[int]int{
	3: 2, 5: 3, 7: 4, 8: 14, 10: 15, 11: 17, 12: 18, 13: 27,
	15: 22, 16: 23, 18: 24, 19: 10, 21: 9, 22: 25, 23: 11, 24: 8,
	26: 7, 27: 0, 28: 1, 29: 5, 31: 6, 32: 12, 33: 13, 35: 19,
	36: 16, 37: 26, 38: 20, 40: 21,
}

var (
	// ErrInvalid indicates the pin name does not match a known pin.
	ErrInvalid = errors.New("invalid pin name")

	// ErrConflict indicates a pin is assigned to more than one signal.
	ErrConflict = errors.New("pin assigned to multiple signals")
)

// Pin maps a pin name to a BCM GPIO number.
//
// Pin names are case insensitive and may be of the form J8pX or PinX, for
// header pin X, or GPIOX or X, for BCM GPIO X.
func Pin(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	header := ""
	switch {
	case strings.HasPrefix(s, "j8p"):
		header = s[3:]
	case strings.HasPrefix(s, "pin"):
		header = s[3:]
	case strings.HasPrefix(s, "gpio"):
		s = s[4:]
	}
	if header != "" {
		n, err := strconv.Atoi(header)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalid, s)
		}
		v, ok := physical[n]
		if !ok {
			return 0, fmt.Errorf("%w: header pin %d", ErrInvalid, n)
		}
		return v, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 || v >= MaxGPIO {
		return 0, fmt.Errorf("%w: %s", ErrInvalid, s)
	}
	return v, nil
}

// MustPin converts the string to the corresponding GPIO number or panics if
// that is not possible.
func MustPin(s string) int {
	v, err := Pin(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Wiring identifies the lines connected to the board.
//
// SCLK, MOSI and MISO are only used when the SPI is bit bashed. A negative
// LED indicates no LED is fitted.
type Wiring struct {
	Chip      string
	SPIDev    string
	CS        int
	DRDY      int
	SyncReset int
	LED       int
	SCLK      int
	MOSI      int
	MISO      int
}

// DefaultWiring returns the wiring of the board as shipped.
func DefaultWiring() Wiring {
	return Wiring{
		Chip:      Chip,
		SPIDev:    SPIDev,
		CS:        CS,
		DRDY:      DRDY,
		SyncReset: SyncReset,
		LED:       LED,
		SCLK:      SCLK,
		MOSI:      MOSI,
		MISO:      MISO,
	}
}

type signal struct {
	name string
	gpio int
}

// Validate checks that no GPIO is assigned to more than one signal.
//
// The SPI bus lines are only checked if bitbash is set.
func (w Wiring) Validate(bitbash bool) error {
	signals := []signal{
		{"cs", w.CS},
		{"drdy", w.DRDY},
		{"syncreset", w.SyncReset},
	}
	if w.LED >= 0 {
		signals = append(signals, signal{"led", w.LED})
	}
	if bitbash {
		signals = append(signals,
			signal{"sclk", w.SCLK},
			signal{"mosi", w.MOSI},
			signal{"miso", w.MISO})
	}
	used := map[int]string{}
	for _, s := range signals {
		if prev, ok := used[s.gpio]; ok {
			return fmt.Errorf("%w: GPIO%d used by %s and %s", ErrConflict, s.gpio, prev, s.name)
		}
		used[s.gpio] = s.name
	}
	return nil
}
