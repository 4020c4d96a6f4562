// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/warthog618/ads131m/acquire"
	"github.com/warthog618/ads131m/console"
)

func init() {
	monitorCmd.Flags().UintVarP(&monitorOpts.NumReadings, "num-readings", "N", 0, "exit after n readings")
	monitorCmd.Flags().BoolVarP(&monitorOpts.Quiet, "quiet", "q", false, "don't display the CSV header")
	rootCmd.AddCommand(monitorCmd)
}

var (
	monitorCmd = &cobra.Command{
		Use:   "monitor [flags]",
		Short: "Monitor the ADC channels",
		Long: `Start the ADC and acquire readings until interrupted.

Readings are written to standard output in CSV format.`,
		Args:                  cobra.NoArgs,
		RunE:                  monitor,
		DisableFlagsInUseLine: true,
	}
	monitorOpts = struct {
		NumReadings uint
		Quiet       bool
	}{}
)

// counter cancels the acquisition after a number of readings.
type counter struct {
	n      uint64
	cancel context.CancelFunc
}

func (c *counter) Publish(r acquire.Reading) {
	if r.Seq >= c.n {
		c.cancel()
	}
}

func monitor(cmd *cobra.Command, args []string) error {
	d, err := openDevice(cfg, deviceOptions{drdy: true})
	if err != nil {
		return err
	}
	defer d.Close()
	if err = d.adc.Startup(); err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	con := console.New(os.Stdout)
	if !monitorOpts.Quiet {
		if err = con.Header(d.adc.Channels()); err != nil {
			return err
		}
	}
	opts := []acquire.Option{
		acquire.WithTimeout(cfg.timeout),
		acquire.WithMaxResets(cfg.resets),
		acquire.WithFlag(d.flag),
		acquire.WithPublisher(con),
	}
	if monitorOpts.NumReadings > 0 {
		opts = append(opts, acquire.WithPublisher(
			&counter{n: uint64(monitorOpts.NumReadings), cancel: cancel}))
	}
	t := acquire.New(d.adc, d.waiter(cfg), opts...)
	err = t.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}
