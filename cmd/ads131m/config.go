// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/warthog618/ads131m"
	"github.com/warthog618/ads131m/device/rpi"
	"github.com/warthog618/ads131m/spi/spidev"
	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = "ads131m.yaml"

var defaultConfig = map[string]interface{}{
	"gpiochip":        rpi.Chip,
	"spi.bus":         "spidev",
	"spi.dev":         rpi.SPIDev,
	"spi.hz":          spidev.DefaultSpeed,
	"spi.tclk":        "500ns",
	"pin.cs":          rpi.CS,
	"pin.drdy":        rpi.DRDY,
	"pin.syncreset":   rpi.SyncReset,
	"pin.led":         rpi.LED,
	"pin.sclk":        rpi.SCLK,
	"pin.mosi":        rpi.MOSI,
	"pin.miso":        rpi.MISO,
	"adc.channels":    ads131m.DefaultChannels,
	"adc.gain":        ads131m.DefaultGain,
	"adc.vref":        ads131m.DefaultVref,
	"adc.crc":         "ccitt",
	"adc.osr":         1024,
	"adc.power":       "high-resolution",
	"adc.clkin":       2048000,
	"timing.cssetup":  "75ns",
	"timing.cshold":   "75ns",
	"timing.sync":     "2us",
	"timing.reset":    "2ms",
	"timing.regacq":   "5us",
	"acquire.timeout": "10s",
	"acquire.poll":    "250us",
	"acquire.delay":   "0s",
	"acquire.resets":  3,
	"acquire.holdoff": "0s",
	"server.addr":     ":8131",
	"console.port":    "",
	"console.baud":    115200,
	"log.level":       "info",
	"wait.devices":    "0s",
	"realtime.mlock":  false,
}

// newConfig builds the configuration stack, highest priority first: the
// command line flags, the environment, the config file, then the defaults.
func newConfig(flags map[string]interface{}) *config.Config {
	def := dict.New(dict.WithMap(defaultConfig))
	cfg := config.New(
		dict.New(dict.WithMap(flags)),
		env.New(env.WithEnvPrefix("ADS131M_")),
		config.WithDefault(def))
	name := defaultConfigFile
	if v, err := cfg.Get("config.file"); err == nil {
		name = v.String()
	}
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", defaultConfigFile, decoderFor(name)))
	return cfg.GetConfig("", config.WithMust())
}

// decoderFor returns the decoder for the config file, selected by extension.
func decoderFor(name string) blob.Decoder {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return json.NewDecoder()
	}
	return yamlDecoder{}
}

// yamlDecoder decodes YAML config files.
type yamlDecoder struct{}

func (yamlDecoder) Decode(b []byte, v interface{}) error {
	return yaml.Unmarshal(b, v)
}

// settings is the typed configuration.
type settings struct {
	wiring   rpi.Wiring
	bitbash  bool
	spiHz    int64
	tclk     time.Duration
	csSetup  time.Duration
	csHold   time.Duration
	syncW    time.Duration
	resetW   time.Duration
	regAcq   time.Duration
	channels int
	gain     int
	vref     float64
	crc      ads131m.CRCType
	osr      ads131m.OSR
	power    ads131m.PowerMode
	clkin    uint32
	timeout  time.Duration
	poll     time.Duration
	delay    time.Duration
	resets   int
	holdoff  time.Duration
	addr     string
	port     string
	baud     int
	logLevel slog.Level
	wait     time.Duration
	mlock    bool
}

func parseSettings(cfg *config.Config) (settings, error) {
	s := settings{
		spiHz:    int64(cfg.MustGet("spi.hz").Int()),
		tclk:     cfg.MustGet("spi.tclk").Duration(),
		csSetup:  cfg.MustGet("timing.cssetup").Duration(),
		csHold:   cfg.MustGet("timing.cshold").Duration(),
		syncW:    cfg.MustGet("timing.sync").Duration(),
		resetW:   cfg.MustGet("timing.reset").Duration(),
		regAcq:   cfg.MustGet("timing.regacq").Duration(),
		channels: cfg.MustGet("adc.channels").Int(),
		gain:     cfg.MustGet("adc.gain").Int(),
		vref:     cfg.MustGet("adc.vref").Float(),
		clkin:    uint32(cfg.MustGet("adc.clkin").Uint()),
		timeout:  cfg.MustGet("acquire.timeout").Duration(),
		poll:     cfg.MustGet("acquire.poll").Duration(),
		delay:    cfg.MustGet("acquire.delay").Duration(),
		resets:   cfg.MustGet("acquire.resets").Int(),
		holdoff:  cfg.MustGet("acquire.holdoff").Duration(),
		addr:     cfg.MustGet("server.addr").String(),
		port:     cfg.MustGet("console.port").String(),
		baud:     cfg.MustGet("console.baud").Int(),
		wait:     cfg.MustGet("wait.devices").Duration(),
		mlock:    cfg.MustGet("realtime.mlock").Bool(),
	}
	switch bus := cfg.MustGet("spi.bus").String(); bus {
	case "spidev":
	case "bitbash":
		s.bitbash = true
	default:
		return s, fmt.Errorf("unknown spi.bus: %s", bus)
	}
	w := rpi.Wiring{
		Chip:   cfg.MustGet("gpiochip").String(),
		SPIDev: cfg.MustGet("spi.dev").String(),
		LED:    -1,
	}
	pins := []struct {
		key string
		p   *int
	}{
		{"pin.cs", &w.CS},
		{"pin.drdy", &w.DRDY},
		{"pin.syncreset", &w.SyncReset},
		{"pin.sclk", &w.SCLK},
		{"pin.mosi", &w.MOSI},
		{"pin.miso", &w.MISO},
	}
	for _, p := range pins {
		v, err := rpi.Pin(cfg.MustGet(p.key).String())
		if err != nil {
			return s, fmt.Errorf("%s: %w", p.key, err)
		}
		*p.p = v
	}
	switch led := cfg.MustGet("pin.led").String(); led {
	case "", "none", "-1":
	default:
		v, err := rpi.Pin(led)
		if err != nil {
			return s, fmt.Errorf("pin.led: %w", err)
		}
		w.LED = v
	}
	if err := w.Validate(s.bitbash); err != nil {
		return s, err
	}
	s.wiring = w
	var err error
	if s.crc, err = ads131m.ParseCRCType(cfg.MustGet("adc.crc").String()); err != nil {
		return s, err
	}
	if s.osr, err = ads131m.ParseOSR(cfg.MustGet("adc.osr").Int()); err != nil {
		return s, err
	}
	if s.power, err = ads131m.ParsePowerMode(cfg.MustGet("adc.power").String()); err != nil {
		return s, err
	}
	if err = s.logLevel.UnmarshalText([]byte(cfg.MustGet("log.level").String())); err != nil {
		return s, err
	}
	return s, nil
}

// adcOptions returns the ADC construction options for the settings.
func (s settings) adcOptions() []ads131m.Option {
	return []ads131m.Option{
		ads131m.WithChannels(s.channels),
		ads131m.WithGain(s.gain),
		ads131m.WithVref(s.vref),
		ads131m.WithCRCType(s.crc),
		ads131m.WithOSR(s.osr),
		ads131m.WithPowerMode(s.power),
		ads131m.WithClockIn(s.clkin),
	}
}
