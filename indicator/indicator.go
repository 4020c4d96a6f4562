// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package indicator drives a status LED with a software PWM reflecting the
// state of acquisition.
package indicator

import (
	"context"
	"sync"
	"time"

	"github.com/warthog618/ads131m/pin"
)

// DefaultPeriod is the default PWM period.
const DefaultPeriod = time.Second

// Duty cycles used by Activity.
const (
	SampledDuty = 0.5
	MissedDuty  = 0.1
	FaultedDuty = 1.0
)

// PWM drives a line with a slow software PWM.
type PWM struct {
	mu     sync.Mutex
	l      pin.Setter
	period time.Duration
	duty   float64
}

// NewPWM creates a PWM on l, initially off.
func NewPWM(l pin.Setter, period time.Duration) *PWM {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &PWM{l: l, period: period}
}

// SetDuty sets the fraction of each period the line is driven high.
//
// The duty is clamped to [0, 1] and takes effect from the next period.
func (p *PWM) SetDuty(duty float64) {
	if duty < 0 {
		duty = 0
	} else if duty > 1 {
		duty = 1
	}
	p.mu.Lock()
	p.duty = duty
	p.mu.Unlock()
}

// Duty returns the current duty.
func (p *PWM) Duty() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty
}

// Run drives the line until ctx is done, then leaves it low.
func (p *PWM) Run(ctx context.Context) error {
	defer p.l.SetValue(0)
	for {
		on := time.Duration(p.Duty() * float64(p.period))
		if on > 0 {
			if err := p.l.SetValue(1); err != nil {
				return err
			}
			if !sleep(ctx, on) {
				return nil
			}
		}
		if off := p.period - on; off > 0 {
			if err := p.l.SetValue(0); err != nil {
				return err
			}
			if !sleep(ctx, off) {
				return nil
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Activity maps acquisition events onto a PWM duty.
//
// A fault is latched until Clear.
type Activity struct {
	mu      sync.Mutex
	p       *PWM
	faulted bool
}

// NewActivity creates an Activity driving p.
func NewActivity(p *PWM) *Activity {
	return &Activity{p: p}
}

// Sampled indicates a reading was acquired.
func (a *Activity) Sampled() {
	a.set(SampledDuty)
}

// Missed indicates a data ready timeout.
func (a *Activity) Missed() {
	a.set(MissedDuty)
}

// Faulted indicates the device could not be recovered.
func (a *Activity) Faulted() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.faulted = true
	a.p.SetDuty(FaultedDuty)
}

// Clear clears a latched fault.
func (a *Activity) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.faulted = false
	a.p.SetDuty(0)
}

func (a *Activity) set(duty float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.faulted {
		a.p.SetDuty(duty)
	}
}
