// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	resetCmd.Flags().BoolVar(&resetOpts.Soft, "soft", false, "reset with the RESET command rather than the nRESET line")
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(syncCmd)
}

var (
	resetCmd = &cobra.Command{
		Use:   "reset [flags]",
		Short: "Reset the ADC",
		Long: `Reset the ADC, verify the reset is acknowledged, and restore the
MODE register.`,
		Args:                  cobra.NoArgs,
		RunE:                  reset,
		DisableFlagsInUseLine: true,
	}
	resetOpts = struct {
		Soft bool
	}{}
	syncCmd = &cobra.Command{
		Use:                   "sync",
		Short:                 "Resynchronise the ADC channels",
		Long:                  `Pulse the nSYNC line to resynchronise the ADC channel sampling.`,
		Args:                  cobra.NoArgs,
		RunE:                  resync,
		DisableFlagsInUseLine: true,
	}
)

func reset(cmd *cobra.Command, args []string) error {
	d, err := openDevice(cfg, deviceOptions{})
	if err != nil {
		return err
	}
	defer d.Close()
	if resetOpts.Soft {
		err = d.adc.SoftReset()
	} else {
		err = d.adc.Reset()
	}
	if err != nil {
		return err
	}
	fmt.Println(d.adc.State())
	return nil
}

func resync(cmd *cobra.Command, args []string) error {
	d, err := openDevice(cfg, deviceOptions{})
	if err != nil {
		return err
	}
	defer d.Close()
	return d.adc.Sync()
}
