// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"fmt"
	"strings"

	"github.com/warthog618/ads131m"
	"github.com/warthog618/ads131m/drdy"
	"github.com/warthog618/ads131m/hotplug"
	"github.com/warthog618/ads131m/pin"
	"github.com/warthog618/ads131m/spi"
	"github.com/warthog618/ads131m/spi/spidev"
	"github.com/warthog618/go-gpiocdev"
)

// device is the ADC and the lines connecting it to the host.
type device struct {
	adc     *ads131m.ADC
	flag    *drdy.Flag
	led     *gpiocdev.Line
	closers []func() error
}

// deviceOptions control which optional lines are requested.
type deviceOptions struct {
	drdy bool
	led  bool
}

// openDevice requests the lines and bus described by s and creates the ADC.
//
// The ADC is not touched, so it must be reset or started before use.
func openDevice(s settings, do deviceOptions) (d *device, err error) {
	if s.wait > 0 {
		if err = hotplug.WaitForDevices(devicePaths(s), s.wait); err != nil {
			return nil, err
		}
	}
	d = &device{}
	defer func() {
		if err != nil {
			d.Close()
			d = nil
		}
	}()
	c, err := gpiocdev.NewChip(s.wiring.Chip, gpiocdev.WithConsumer("ads131m"))
	if err != nil {
		return nil, err
	}
	defer c.Close()
	cs, err := c.RequestLine(s.wiring.CS, gpiocdev.AsOutput(1))
	if err != nil {
		return nil, fmt.Errorf("request cs: %w", err)
	}
	d.closers = append(d.closers, cs.Close)
	srl, err := c.RequestLine(s.wiring.SyncReset, gpiocdev.AsOutput(1))
	if err != nil {
		return nil, fmt.Errorf("request syncreset: %w", err)
	}
	d.closers = append(d.closers, srl.Close)
	var bus spi.Bus
	if s.bitbash {
		bb, err := spi.New(c, s.wiring.SCLK, -1, s.wiring.MOSI, s.wiring.MISO,
			spi.WithMode(1), spi.WithTclk(s.tclk))
		if err != nil {
			return nil, fmt.Errorf("request spi lines: %w", err)
		}
		d.closers = append(d.closers, func() error {
			bb.Close()
			return nil
		})
		bus = bb
	} else {
		sd, err := spidev.Open(s.wiring.SPIDev, spidev.WithSpeed(s.spiHz))
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, sd.Close)
		bus = sd
	}
	tr, err := spi.NewTransport(bus, cs,
		spi.WithCSSetup(s.csSetup),
		spi.WithCSHold(s.csHold))
	if err != nil {
		return nil, err
	}
	sr, err := pin.NewSyncReset(srl,
		pin.WithClockIn(s.clkin),
		pin.WithSyncWidth(s.syncW),
		pin.WithResetWidth(s.resetW),
		pin.WithRegAcq(s.regAcq))
	if err != nil {
		return nil, err
	}
	d.adc, err = ads131m.New(tr, sr, s.adcOptions()...)
	if err != nil {
		return nil, err
	}
	if do.drdy {
		d.flag = drdy.NewFlag(drdy.WithHoldoff(s.holdoff))
		l, err := drdy.Request(s.wiring.Chip, s.wiring.DRDY, d.flag)
		if err != nil {
			return nil, fmt.Errorf("request drdy: %w", err)
		}
		d.closers = append(d.closers, l.Close)
	}
	if do.led && s.wiring.LED >= 0 {
		d.led, err = c.RequestLine(s.wiring.LED, gpiocdev.AsOutput(0))
		if err != nil {
			return nil, fmt.Errorf("request led: %w", err)
		}
		d.closers = append(d.closers, d.led.Close)
	}
	return d, nil
}

// Close releases the lines and bus, in reverse order of acquisition.
func (d *device) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

// waiter returns a data ready Waiter polling the device flag.
func (d *device) waiter(s settings) *drdy.Waiter {
	return drdy.NewWaiter(d.flag, drdy.WithPollInterval(s.poll))
}

// devicePaths returns the device nodes that must exist before the device can
// be opened.
func devicePaths(s settings) []string {
	pp := []string{devPath(s.wiring.Chip)}
	if !s.bitbash {
		pp = append(pp, spidevPath(s.wiring.SPIDev))
	}
	return pp
}

func devPath(name string) string {
	if strings.HasPrefix(name, "/dev/") {
		return name
	}
	return "/dev/" + name
}

// spidevPath maps a periph port name, e.g. SPI0.0, to its device node.
func spidevPath(name string) string {
	if strings.HasPrefix(name, "/dev/") {
		return name
	}
	if strings.HasPrefix(strings.ToUpper(name), "SPI") {
		return "/dev/spidev" + name[3:]
	}
	return devPath(name)
}
