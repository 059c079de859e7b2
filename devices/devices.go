// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package devices wraps the three pins a Gen2 tag core needs from its host
// board: the RF envelope-detector input the demodulator watches for edges,
// the backscatter load-switch output the modulator drives, and a power-good
// input the dispatcher polls before ever emitting a reply (spec.md's (I2)
// invariant and its "out of scope... voltage supervision exposes a single
// power_good predicate" collaborator).
package devices

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// RFEdgePin is the envelope-detector input the demodulator arms for edge
// capture; it is the periph.io equivalent of Port1's interrupt pin in the
// original firmware.
type RFEdgePin interface {
	gpio.PinIn
}

// BackscatterPin is the load-switch output the modulator toggles to
// backscatter a reply; it is the periph.io equivalent of the original
// firmware's TACCR0-driven modulation pin.
type BackscatterPin interface {
	gpio.PinOut
}

// PowerGoodPin is a single boolean input reflecting whether the harvested
// supply is above the voltage the analog front end needs to demodulate and
// reply reliably.
type PowerGoodPin interface {
	gpio.PinIn
}

// Pins bundles the three hardware collaborators a gen2.Tag needs, so a
// caller constructs them once (from either periph.io pins or the embd shim
// below) and hands the bundle to gen2.New.
type Pins struct {
	RFEdge       RFEdgePin
	Backscatter  BackscatterPin
	PowerGoodPin PowerGoodPin
}

// IsPowerGood reports whether the harvested supply is within range, per
// spec.md's power_good predicate. A rising level on the pin means power is
// good, matching the original firmware's voltage-supervisor polarity.
func (p Pins) IsPowerGood() bool {
	return p.PowerGoodPin.Read() == gpio.High
}

// Validate checks that every pin in the bundle is non-nil, returning an
// error naming which one is missing rather than panicking deep inside the
// dispatcher on first use.
func (p Pins) Validate() error {
	switch {
	case p.RFEdge == nil:
		return fmt.Errorf("devices: RFEdge pin not set")
	case p.Backscatter == nil:
		return fmt.Errorf("devices: Backscatter pin not set")
	case p.PowerGoodPin == nil:
		return fmt.Errorf("devices: PowerGood pin not set")
	}
	return nil
}
