// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

// A utility to acquire and serve readings from an ADS131M0x ADC.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var version = "undefined"

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("config-file", "c", "", "read configuration from the file (json or yaml)")
	pf.String("gpiochip", "", "the GPIO chip connected to the board")
	pf.String("bus", "", "the SPI bus type (spidev or bitbash)")
	pf.IntP("channels", "n", 0, "the number of ADC channels")
	pf.IntP("gain", "g", 0, "the PGA gain applied to every channel")
	pf.String("log-level", "", "the log level (debug, info, warn or error)")
}

// flagKeys maps persistent flags to their configuration keys.
var flagKeys = map[string]string{
	"config-file": "config.file",
	"gpiochip":    "gpiochip",
	"bus":         "spi.bus",
	"channels":    "adc.channels",
	"gain":        "adc.gain",
	"log-level":   "log.level",
}

var rootCmd = &cobra.Command{
	Use:   "ads131m",
	Short: "ads131m is a utility to acquire readings from an ADS131M0x ADC",
	Long: "ads131m is a utility to configure an ADS131M0x ADC, and to acquire, " +
		"display and serve its readings",
	PersistentPreRunE: loadSettings,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// cfg is the configuration loaded for the command being run.
var cfg settings

func loadSettings(cmd *cobra.Command, args []string) error {
	flags := map[string]interface{}{}
	for name, key := range flagKeys {
		if cmd.Flags().Changed(name) {
			flags[key] = cmd.Flags().Lookup(name).Value.String()
		}
	}
	s, err := parseSettings(newConfig(flags))
	if err != nil {
		return err
	}
	cfg = s
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: cfg.logLevel})))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func logErr(cmd *cobra.Command, err error) {
	fmt.Fprintf(os.Stderr, "ads131m %s: %s\n", cmd.Name(), err)
}
