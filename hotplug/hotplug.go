// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package hotplug waits for device nodes, such as the gpiochip and spidev
// nodes used by the ADC, to be created by udev.
package hotplug

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/pilebones/go-udev/netlink"
	"golang.org/x/sys/unix"
)

// ErrTimeout indicates the device did not appear before the timeout.
var ErrTimeout = errors.New("timeout waiting for device")

// pollInterval is the period between checks when udev is unavailable.
const pollInterval = 10 * time.Millisecond

// WaitForDevices waits until each of the device nodes in paths exists, up to
// timeout in total.
func WaitForDevices(paths []string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for _, p := range paths {
		if err := WaitForDevice(p, time.Until(deadline)); err != nil {
			return err
		}
	}
	return nil
}

// WaitForDevice waits until the device node at path exists, up to timeout.
//
// Add events are monitored via the udev netlink socket. If the socket is not
// available then the node is polled.
func WaitForDevice(path string, timeout time.Duration) error {
	m, err := newUdevMonitor(path)
	if err != nil {
		return poll(path, timeout)
	}
	defer m.Close()
	// the node may have been created before the monitor started
	if exists(path) {
		return nil
	}
	expired := time.NewTimer(timeout)
	defer expired.Stop()
	for {
		select {
		case <-m.queue:
			if exists(path) {
				return nil
			}
		case <-expired.C:
			if exists(path) {
				return nil
			}
			return fmt.Errorf("%w: %s", ErrTimeout, path)
		}
	}
}

func exists(path string) bool {
	return unix.Access(path, unix.F_OK) == nil
}

func poll(path string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if exists(path) {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %s", ErrTimeout, path)
		}
		time.Sleep(pollInterval)
	}
}

// readTimeout bounds each netlink read so the monitor observes Close.
const readTimeout = 50 * time.Millisecond

type udevMonitor struct {
	conn   *netlink.UEventConn
	queue  chan netlink.UEvent
	done   chan struct{}
	exited chan struct{}
}

func newUdevMonitor(path string) (*udevMonitor, error) {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return nil, fmt.Errorf("unable to connect to netlink uevent socket: %w", err)
	}
	tv := unix.NsecToTimeval(readTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(conn.Fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to set netlink read timeout: %w", err)
	}
	action := "add"
	name := regexp.QuoteMeta(filepath.Base(path))
	matcher := &netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"DEVNAME": "^(/dev/)?" + name + "$",
		},
	}
	if err := matcher.Compile(); err != nil {
		conn.Close()
		return nil, err
	}
	m := udevMonitor{
		conn:   conn,
		queue:  make(chan netlink.UEvent, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go m.run(matcher)
	return &m, nil
}

// run forwards matching events to the queue until Close.
//
// The monitor owns the connection and closes it on exit.
func (m *udevMonitor) run(matcher *netlink.RuleDefinition) {
	defer close(m.exited)
	defer m.conn.Close()
	for {
		select {
		case <-m.done:
			return
		default:
		}
		evt, err := m.conn.ReadUEvent()
		if err != nil || !matcher.Evaluate(*evt) {
			// read timeouts included
			continue
		}
		select {
		case m.queue <- *evt:
		case <-m.done:
			return
		}
	}
}

// Close stops the monitor and waits for it to exit.
func (m *udevMonitor) Close() {
	close(m.done)
	<-m.exited
}
