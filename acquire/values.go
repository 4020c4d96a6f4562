// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package acquire

import (
	"context"
	"sync"
)

// Values holds the latest reading.
type Values struct {
	mu  sync.RWMutex
	r   Reading
	set bool
}

// Publish replaces the latest reading.
func (v *Values) Publish(r Reading) {
	v.mu.Lock()
	v.r = r
	v.set = true
	v.mu.Unlock()
}

// Latest returns the latest reading, and false if there is none yet.
func (v *Values) Latest() (Reading, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.r, v.set
}

// Barrier is a one shot gate released once initialisation is complete.
type Barrier struct {
	once sync.Once
	ch   chan struct{}
}

// NewBarrier creates an unreleased Barrier.
func NewBarrier() *Barrier {
	return &Barrier{ch: make(chan struct{})}
}

// Done releases the barrier. Subsequent calls have no effect.
func (b *Barrier) Done() {
	b.once.Do(func() { close(b.ch) })
}

// Ready returns true once the barrier has been released.
func (b *Barrier) Ready() bool {
	select {
	case <-b.ch:
		return true
	default:
		return false
	}
}

// Wait blocks until the barrier is released or ctx is done.
func (b *Barrier) Wait(ctx context.Context) error {
	select {
	case <-b.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
