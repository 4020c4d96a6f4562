// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/warthog618/ads131m"
	"github.com/warthog618/ads131m/device/rpi"
	"github.com/warthog618/ads131m/drdy"
	"github.com/warthog618/ads131m/pin"
	"github.com/warthog618/ads131m/spi"
	"github.com/warthog618/ads131m/spi/spidev"
	"github.com/warthog618/go-gpiocdev"
)

// This example reads ten samples from an ADS131M04 wired to the RPI as per
// rpi.DefaultWiring, using the spidev driver for the SPI bus.
func main() {
	w := rpi.DefaultWiring()
	cs, err := gpiocdev.RequestLine(w.Chip, w.CS, gpiocdev.AsOutput(1))
	if err != nil {
		die(err)
	}
	defer cs.Close()
	srl, err := gpiocdev.RequestLine(w.Chip, w.SyncReset, gpiocdev.AsOutput(1))
	if err != nil {
		die(err)
	}
	defer srl.Close()
	bus, err := spidev.Open(w.SPIDev)
	if err != nil {
		die(err)
	}
	defer bus.Close()
	tr, err := spi.NewTransport(bus, cs)
	if err != nil {
		die(err)
	}
	sr, err := pin.NewSyncReset(srl)
	if err != nil {
		die(err)
	}
	adc, err := ads131m.New(tr, sr)
	if err != nil {
		die(err)
	}
	f := drdy.NewFlag()
	l, err := drdy.Request(w.Chip, w.DRDY, f)
	if err != nil {
		die(err)
	}
	defer l.Close()
	if err = adc.Startup(); err != nil {
		die(err)
	}
	waiter := drdy.NewWaiter(f)
	for i := 0; i < 10; i++ {
		if !waiter.Wait(time.Second) {
			fmt.Println("timeout")
			continue
		}
		s, err := adc.ReadFrame()
		if err != nil {
			die(err)
		}
		if !s.CRCValid {
			fmt.Println("crc mismatch")
			continue
		}
		fmt.Printf("%d: %v\n", i, adc.Volts(s))
	}
}

func die(err error) {
	fmt.Fprintf(os.Stderr, "ads131m: %s\n", err)
	os.Exit(1)
}
