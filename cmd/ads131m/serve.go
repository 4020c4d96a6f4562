// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/warthog618/ads131m"
	"github.com/warthog618/ads131m/acquire"
	"github.com/warthog618/ads131m/console"
	"github.com/warthog618/ads131m/indicator"
	"github.com/warthog618/ads131m/server"
	"golang.org/x/sys/unix"
)

func init() {
	serveCmd.Flags().StringVarP(&serveOpts.Addr, "addr", "a", "", "the address to serve the API on")
	serveCmd.Flags().StringVarP(&serveOpts.Console, "console", "s", "", "the serial port to write readings to")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveCmd = &cobra.Command{
		Use:   "serve [flags]",
		Short: "Acquire and serve the ADC readings",
		Long: `Start the ADC and acquire readings until interrupted.

The latest reading, acquisition statistics and device registers are served
over HTTP, and each reading is streamed to websocket clients on /ws.
Acquisition starts once the server is accepting connections.`,
		Args:                  cobra.NoArgs,
		RunE:                  serve,
		DisableFlagsInUseLine: true,
	}
	serveOpts = struct {
		Addr    string
		Console string
	}{}
)

type statsFunc func() acquire.Stats

func (f statsFunc) Stats() acquire.Stats {
	return f()
}

type latestFunc func() (acquire.Reading, bool)

func (f latestFunc) Latest() (acquire.Reading, bool) {
	return f()
}

// newService creates the acquisition task and the server reporting its
// readings, stats and the device registers.
func newService(adc *ads131m.ADC, w acquire.Waiter, options ...acquire.Option) (*acquire.Task, *server.Server) {
	var t *acquire.Task
	srv := server.New(
		latestFunc(func() (acquire.Reading, bool) { return t.Values().Latest() }),
		server.WithStats(statsFunc(func() acquire.Stats { return t.Stats() })),
		server.WithRegisters(adc, adc.Channels()))
	options = append(options, acquire.WithPublisher(srv.Hub()))
	t = acquire.New(adc, w, options...)
	return t, srv
}

func serve(cmd *cobra.Command, args []string) error {
	if serveOpts.Addr != "" {
		cfg.addr = serveOpts.Addr
	}
	if serveOpts.Console != "" {
		cfg.port = serveOpts.Console
	}
	if cfg.mlock {
		if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
			return fmt.Errorf("mlockall: %w", err)
		}
		defer unix.Munlockall()
	}
	d, err := openDevice(cfg, deviceOptions{drdy: true, led: true})
	if err != nil {
		return err
	}
	defer d.Close()
	if err = d.adc.Startup(); err != nil {
		return err
	}
	log := slog.Default()
	log.Info("device started",
		"channels", d.adc.Channels(),
		"gain", d.adc.Gain(),
		"rate", d.adc.DataRate())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	barrier := acquire.NewBarrier()
	opts := []acquire.Option{
		acquire.WithTimeout(cfg.timeout),
		acquire.WithStartDelay(cfg.delay),
		acquire.WithMaxResets(cfg.resets),
		acquire.WithBarrier(barrier),
		acquire.WithFlag(d.flag),
	}
	if cfg.port != "" {
		con, err := console.Open(cfg.port, cfg.baud)
		if err != nil {
			return err
		}
		defer con.Close()
		if err = con.Header(d.adc.Channels()); err != nil {
			return err
		}
		opts = append(opts, acquire.WithPublisher(con))
	}
	if d.led != nil {
		pwm := indicator.NewPWM(d.led, indicator.DefaultPeriod)
		opts = append(opts, acquire.WithIndicator(indicator.NewActivity(pwm)))
		go pwm.Run(ctx)
	}
	t, srv := newService(d.adc, d.waiter(cfg), opts...)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.ListenAndServe(ctx, cfg.addr, func(net.Addr) {
			barrier.Done()
		})
	}()
	taskErr := make(chan error, 1)
	go func() {
		taskErr <- t.Run(ctx)
	}()
	select {
	case err = <-srvErr:
		cancel()
		<-taskErr
	case err = <-taskErr:
		cancel()
		if serr := <-srvErr; err == nil || errors.Is(err, context.Canceled) {
			err = serr
		}
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}
