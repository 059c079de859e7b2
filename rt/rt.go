// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package rt provides the microsecond-accurate timing primitives the
// demodulator and modulator build on: a free-running tick counter, one-shot
// waits, and edge-capture installation. The scheduling model is strictly
// interrupt-driven with deterministic instruction counts on the original
// MSP430 firmware this tag core is derived from; on a hosted Go runtime the
// closest equivalent is pinning the receive goroutine to a realtime-scheduled
// OS thread so the Go scheduler never preempts it mid-measurement.
package rt

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Ticks is a free-running timer value, the Go analogue of the MSP430's TAR
// register. It wraps at 16 bits to preserve the overflow/timeout arithmetic
// spec.md describes (e.g. "TAR > 0x256").
type Ticks uint16

// TickPeriod is the duration of one Ticks unit. The WISP 4.1 hardware this
// core is derived from runs its timer off SMCLK at roughly 1.5MHz, giving a
// tick period close to 2/3us; bit timings in spec.md (delimiter window
// [0x10,0x40), inter-character timeout 0x256) are expressed in these ticks.
const TickPeriod = 667 * physic.NanoSecond

// Edge identifies which signal transition an interrupt should be armed for.
type Edge int

const (
	NoEdge Edge = iota
	RisingEdge
	FallingEdge
	BothEdges
)

// Clock is the timing primitive surface the demodulator and modulator use.
// Implementations must guarantee that a measurement taken at edge N is the
// delta since edge N-1 (the free-running counter is reset on every edge),
// with jitter bounded well under one Tari period.
type Clock interface {
	// Now returns the current free-running tick count.
	Now() Ticks
	// Reset zeroes the free-running counter.
	Reset()
	// WaitUntil blocks (via an interrupt-equivalent suspension, not a busy
	// loop) until the counter reaches the given tick value or an edge fires,
	// whichever happens first. It returns true if the deadline was reached
	// without an intervening edge.
	WaitUntil(deadline Ticks) bool
	// InstallCaptureOnEdge arms edge capture: the next transition of the
	// given polarity latches Now() and resets the counter.
	InstallCaptureOnEdge(edge Edge)
	// LastInterval returns the most recently latched edge-to-edge interval:
	// the elapsed tick count captured at the edge that made the prior
	// WaitUntil call return false, before the counter was reset for the
	// next measurement. Reading Now() after such a call instead would
	// observe the post-reset (near-zero) count, not the interval just
	// measured — LastInterval is what a demodulator should read.
	LastInterval() Ticks
}

// SimClock is a synthetic Clock for tests: ticks only advance when Advance
// is called, and edges only fire when Edge is called. It never talks to real
// hardware and is concurrency-safe so it can be driven from a test goroutine
// while a decoder consumes it from another.
type SimClock struct {
	mu      sync.Mutex
	now     Ticks
	last    Ticks
	armed   Edge
	edgeCh  chan Ticks
	waiters int
}

// NewSimClock returns a SimClock starting at tick 0 with no edge armed.
func NewSimClock() *SimClock {
	return &SimClock{edgeCh: make(chan Ticks, 1)}
}

func (c *SimClock) Now() Ticks {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *SimClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = 0
}

func (c *SimClock) InstallCaptureOnEdge(edge Edge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed = edge
}

// Advance moves the simulated clock forward by delta ticks without firing an
// edge; it models the passage of time between symbols.
func (c *SimClock) Advance(delta Ticks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += delta
}

// Edge simulates a pin transition: it latches the elapsed ticks since the
// last edge/reset, resets the counter, and — if WaitUntil is blocked —
// delivers the latched value so WaitUntil returns false (edge, not timeout).
func (c *SimClock) Edge() Ticks {
	c.mu.Lock()
	elapsed := c.now
	c.now = 0
	c.last = elapsed
	c.mu.Unlock()
	select {
	case c.edgeCh <- elapsed:
	default:
	}
	return elapsed
}

// LastInterval returns the interval latched by the most recent Edge call.
func (c *SimClock) LastInterval() Ticks {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// WaitUntil returns false as soon as Edge is called, or true once deadline
// simulated ticks have elapsed without an intervening Edge call.
func (c *SimClock) WaitUntil(deadline Ticks) bool {
	for {
		if c.Now() >= deadline {
			return true
		}
		select {
		case <-c.edgeCh:
			return false
		default:
			time.Sleep(time.Microsecond)
		}
	}
}

// HostClock is a Clock backed by a real GPIO edge-capture pin, for driving
// the demodulator/modulator from actual RF hardware (e.g. an envelope
// detector feeding a periph.io GPIO pin). The monotonic host clock stands in
// for the MSP430's hardware timer; precision is bounded by goroutine
// scheduling latency rather than instruction counts, which is why LockRealtime
// matters for this implementation.
type HostClock struct {
	pin   gpio.PinIn
	t0    time.Time
	armed Edge
	last  Ticks
}

// NewHostClock wraps a periph.io GPIO input pin as a Clock.
func NewHostClock(pin gpio.PinIO) (*HostClock, error) {
	if err := pin.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, err
	}
	return &HostClock{pin: pin, t0: time.Now()}, nil
}

func (c *HostClock) Now() Ticks {
	return Ticks(time.Since(c.t0) / TickPeriod)
}

func (c *HostClock) Reset() { c.t0 = time.Now() }

func (c *HostClock) InstallCaptureOnEdge(edge Edge) {
	c.armed = edge
	var pe gpio.Edge
	switch edge {
	case RisingEdge:
		pe = gpio.RisingEdge
	case FallingEdge:
		pe = gpio.FallingEdge
	case BothEdges:
		pe = gpio.BothEdges
	default:
		pe = gpio.NoEdge
	}
	c.pin.In(gpio.PullNoChange, pe)
}

func (c *HostClock) WaitUntil(deadline Ticks) bool {
	budget := time.Duration(deadline-c.Now()) * TickPeriod
	if budget <= 0 {
		return true
	}
	if c.pin.WaitForEdge(budget) {
		c.last = c.Now()
		c.Reset()
		return false
	}
	return true
}

// LastInterval returns the interval latched by the most recent edge that
// made WaitUntil return false.
func (c *HostClock) LastInterval() Ticks { return c.last }
