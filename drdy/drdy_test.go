// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package drdy_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warthog618/ads131m/drdy"
	"github.com/warthog618/go-gpiocdev"
)

// simClock is a simulated Clock that raises the flag when sleeping past
// scheduled edge times.
type simClock struct {
	mu     sync.Mutex
	now    time.Time
	f      *drdy.Flag
	edges  []time.Duration
	start  time.Time
	sleeps int
}

func newSimClock(f *drdy.Flag, edges ...time.Duration) *simClock {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &simClock{now: start, start: start, f: f, edges: edges}
}

func (c *simClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *simClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps++
	c.now = c.now.Add(d)
	for len(c.edges) > 0 && c.now.Sub(c.start) >= c.edges[0] {
		c.f.HandleEvent(gpiocdev.LineEvent{
			Timestamp: c.edges[0],
			Type:      gpiocdev.LineEventFallingEdge,
		})
		c.edges = c.edges[1:]
	}
}

func (c *simClock) elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Sub(c.start)
}

func TestFlag(t *testing.T) {
	f := drdy.NewFlag()
	assert.False(t, f.IsSet())
	f.Set(true)
	assert.True(t, f.IsSet())
	f.Clear()
	assert.False(t, f.IsSet())
	assert.False(t, f.Swap(true))
	assert.True(t, f.Swap(false))
	assert.False(t, f.IsSet())

	f.HandleEvent(gpiocdev.LineEvent{Timestamp: time.Millisecond})
	assert.True(t, f.IsSet())
	f.HandleEvent(gpiocdev.LineEvent{Timestamp: time.Millisecond + time.Microsecond})
	assert.Equal(t, uint64(2), f.Edges())
	assert.Equal(t, uint64(0), f.Spurious())
}

func TestFlagHoldoff(t *testing.T) {
	f := drdy.NewFlag(drdy.WithHoldoff(100 * time.Microsecond))
	f.HandleEvent(gpiocdev.LineEvent{Timestamp: 0})
	assert.True(t, f.IsSet())
	f.Clear()

	// bounce
	f.HandleEvent(gpiocdev.LineEvent{Timestamp: 20 * time.Microsecond})
	assert.False(t, f.IsSet())
	assert.Equal(t, uint64(1), f.Edges())
	assert.Equal(t, uint64(1), f.Spurious())

	f.HandleEvent(gpiocdev.LineEvent{Timestamp: 250 * time.Microsecond})
	assert.True(t, f.IsSet())
	assert.Equal(t, uint64(2), f.Edges())
	assert.Equal(t, uint64(1), f.Spurious())
}

func TestWaitEdge(t *testing.T) {
	f := drdy.NewFlag()
	c := newSimClock(f, 3*time.Millisecond)
	w := drdy.NewWaiter(f, drdy.WithClock(c))

	ok := w.Wait(10 * time.Second)
	assert.True(t, ok)
	assert.False(t, f.IsSet())
	el := c.elapsed()
	assert.GreaterOrEqual(t, el, 3*time.Millisecond)
	assert.LessOrEqual(t, el, 3*time.Millisecond+drdy.DefaultPollInterval)
}

func TestWaitTimeout(t *testing.T) {
	f := drdy.NewFlag()
	c := newSimClock(f)
	w := drdy.NewWaiter(f, drdy.WithClock(c))

	ok := w.Wait(10 * time.Second)
	assert.False(t, ok)
	assert.False(t, f.IsSet())
	assert.Equal(t, 10*time.Second, c.elapsed())
	assert.Equal(t, int((10*time.Second)/drdy.DefaultPollInterval), c.sleeps)
}

func TestWaitClampsFinalSleep(t *testing.T) {
	f := drdy.NewFlag()
	c := newSimClock(f)
	w := drdy.NewWaiter(f, drdy.WithClock(c), drdy.WithPollInterval(time.Millisecond))

	ok := w.Wait(2500 * time.Microsecond)
	assert.False(t, ok)
	assert.Equal(t, 2500*time.Microsecond, c.elapsed())
	assert.Equal(t, 3, c.sleeps)
}

func TestWaitClearsStale(t *testing.T) {
	f := drdy.NewFlag()
	c := newSimClock(f)
	w := drdy.NewWaiter(f, drdy.WithClock(c))

	// an edge before the wait is not counted
	f.Set(true)
	ok := w.Wait(time.Millisecond)
	assert.False(t, ok)
	assert.False(t, f.IsSet())
}

func TestWaitZeroTimeout(t *testing.T) {
	f := drdy.NewFlag()
	c := newSimClock(f)
	w := drdy.NewWaiter(f, drdy.WithClock(c))

	ok := w.Wait(0)
	assert.False(t, ok)
	assert.Equal(t, 0, c.sleeps)
}

func TestWaitSystemClock(t *testing.T) {
	f := drdy.NewFlag()
	w := drdy.NewWaiter(f, drdy.WithPollInterval(100*time.Microsecond))
	go func() {
		time.Sleep(2 * time.Millisecond)
		f.Set(true)
	}()
	start := time.Now()
	ok := w.Wait(time.Second)
	assert.True(t, ok)
	assert.Less(t, time.Since(start), time.Second)

	start = time.Now()
	ok = w.Wait(5 * time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}
