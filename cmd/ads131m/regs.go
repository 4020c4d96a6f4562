// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/warthog618/ads131m"
	"github.com/warthog618/ads131m/server"
	"gopkg.in/yaml.v3"
)

func init() {
	regsCmd.Flags().BoolVarP(&regsOpts.YAML, "yaml", "y", false, "display the registers as YAML")
	regsCmd.Flags().BoolVarP(&regsOpts.Startup, "startup", "S", false, "start the ADC, applying the configured gain and clock, before reading")
	rootCmd.AddCommand(regsCmd)
}

var (
	regsCmd = &cobra.Command{
		Use:   "regs [flags]",
		Short: "Display the ADC registers",
		Long: `Reset the ADC, then read and display its registers.

The device is reset first so the frame CRC type is known.`,
		Args:                  cobra.NoArgs,
		RunE:                  regs,
		DisableFlagsInUseLine: true,
	}
	regsOpts = struct {
		YAML    bool
		Startup bool
	}{}
)

func regs(cmd *cobra.Command, args []string) error {
	d, err := openDevice(cfg, deviceOptions{})
	if err != nil {
		return err
	}
	defer d.Close()
	if regsOpts.Startup {
		err = d.adc.Startup()
	} else {
		err = d.adc.Reset()
	}
	if err != nil {
		return err
	}
	rr := server.Dump(ads131m.Registers{}, d.adc.Channels())
	for i, r := range rr {
		v, err := d.adc.ReadRegister(r.Addr)
		if err != nil {
			return fmt.Errorf("read %s: %w", r.Name, err)
		}
		rr[i].Value = fmt.Sprintf("0x%04x", v)
	}
	return writeRegisters(os.Stdout, rr, regsOpts.YAML)
}

func writeRegisters(w io.Writer, rr []server.Register, asYAML bool) error {
	if asYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rr); err != nil {
			return err
		}
		return enc.Close()
	}
	for _, r := range rr {
		if _, err := fmt.Fprintf(w, "0x%02x %-10s %s\n", r.Addr, r.Name, r.Value); err != nil {
			return err
		}
	}
	return nil
}
