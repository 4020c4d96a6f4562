// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	readCmd.Flags().UintVarP(&readOpts.Count, "count", "C", 1, "the number of readings to take")
	readCmd.Flags().BoolVarP(&readOpts.Codes, "codes", "r", false, "display the raw conversion codes rather than volts")
	rootCmd.AddCommand(readCmd)
}

var (
	readCmd = &cobra.Command{
		Use:   "read [flags]",
		Short: "Read the ADC channels",
		Long: `Start the ADC, then wait for data ready and read the channels.

Readings are written to standard output, one line per reading.`,
		Args:                  cobra.NoArgs,
		RunE:                  read,
		DisableFlagsInUseLine: true,
	}
	readOpts = struct {
		Count uint
		Codes bool
	}{}
)

var errMissed = errors.New("timeout waiting for data ready")

func read(cmd *cobra.Command, args []string) error {
	d, err := openDevice(cfg, deviceOptions{drdy: true})
	if err != nil {
		return err
	}
	defer d.Close()
	if err = d.adc.Startup(); err != nil {
		return err
	}
	w := d.waiter(cfg)
	for i := uint(0); i < readOpts.Count; i++ {
		if !w.Wait(cfg.timeout) {
			return errMissed
		}
		s, err := d.adc.ReadFrame()
		if err != nil {
			return err
		}
		if !s.CRCValid {
			logErr(cmd, fmt.Errorf("reading %d: CRC mismatch", i))
			continue
		}
		vv := make([]string, len(s.Codes))
		if readOpts.Codes {
			for j, c := range s.Codes {
				vv[j] = fmt.Sprintf("%d", c)
			}
		} else {
			for j, v := range d.adc.Volts(s) {
				vv[j] = fmt.Sprintf("%.9f", v)
			}
		}
		fmt.Println(strings.Join(vv, " "))
	}
	return nil
}
