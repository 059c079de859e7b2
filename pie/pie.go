// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package pie decodes the Pulse Interval Encoding (PIE) forward link the
// reader transmits: a delimiter, RTcal/TRcal calibration, then data bits
// whose value is determined by the ratio of a symbol's two half-periods
// against a running pivot, exactly as spec.md §4.D describes. The original
// firmware does this measurement inline in a timer-capture ISR with hand
// written instruction counts; here the same arithmetic runs as ordinary Go
// on edge timestamps delivered by an rt.Clock, per spec.md §9's "inline
// assembly timing → declarative timing."
package pie

import "github.com/tve/gen2tag/rt"

// Delimiter window bounds, in rt.Ticks, per spec.md §4.D step 2: a
// candidate delimiter's measured low time must fall in [0x10, 0x40).
const (
	DelimiterMin rt.Ticks = 0x10
	DelimiterMax rt.Ticks = 0x40
)

// InterCharacterTimeout is the free-running timer deadline (spec.md §4.D
// "Timeout"): no edge within this many ticks after the last one ends the
// command, matching the original firmware's comparison against 0x256.
const InterCharacterTimeout rt.Ticks = 0x256

// phase names the demodulator's position in the framing sequence (spec.md
// §4.D "Algorithm").
type phase int

const (
	waitingDelimiter phase = iota
	measuringRTcal
	measuringTRcalOrFirstBit
	decodingData
)

// MaxCommandBits bounds the command buffer; Select is the longest legal
// command at >=44 bits, but its extensible mask can run well past that, so
// the buffer is sized generously per spec.md §4.F's ">=44" entries.
const MaxCommandBits = 256

// Decoder is the PIE forward-link state machine. It consumes edge-to-edge
// interval measurements (one call per edge) and accumulates decoded bits
// into Cmd. It holds no clock of its own — the caller (normally gen2.Tag's
// receive loop) supplies each interval as it is measured by an rt.Clock or
// rt.HostClock edge capture, keeping this package free of any hardware
// dependency.
type Decoder struct {
	phase phase

	rtCal rt.Ticks
	trCal rt.Ticks
	pivot uint16 // additive adjustment; carry of count+pivot is the bit value

	Cmd  [MaxCommandBits / 8]byte
	Bits int // number of valid bits accumulated in Cmd

	// DelimiterNotFound mirrors the firmware's delimiterNotFound flag: set
	// whenever framing fails, cleared when a fresh delimiter is accepted.
	DelimiterNotFound bool
}

// Reset returns the decoder to its power-up state, discarding any partially
// received command. Called on a framing error, a length/opcode mismatch, or
// after a command has been fully dispatched.
func (d *Decoder) Reset() {
	*d = Decoder{}
}

// Interval is fed one measured inter-edge interval (in rt.Ticks) at a time.
// It returns true once a full bit has been appended to Cmd, so the caller
// can check Bits against the dispatcher's expected command lengths (§4.F)
// after every call.
func (d *Decoder) Interval(interval rt.Ticks) (bitAppended bool) {
	switch d.phase {
	case waitingDelimiter:
		if interval >= DelimiterMin && interval < DelimiterMax {
			d.phase = measuringRTcal
			d.DelimiterNotFound = false
		} else {
			d.DelimiterNotFound = true
		}
		return false

	case measuringRTcal:
		// The first full-bit interval after the delimiter is taken
		// directly as RTcal, per spec.md §4.D step 3 ("the first
		// full-bit interval after the delimiter establishes RTcal").
		// This is a deliberate reading of a self-contradictory spec:
		// §4.D's own Framing paragraph, and hw41_D41.c's TimerA1_ISR,
		// both treat the first post-delimiter interval as data-0/Tari
		// and only the second as RTcal. Step 3's explicit wording is
		// followed here rather than silently reconciled against the
		// firmware's data-0 skip.
		d.rtCal = interval
		d.pivot = 0xFFFF - uint16(interval)/2
		d.phase = measuringTRcalOrFirstBit
		return false

	case measuringTRcalOrFirstBit:
		// TRcal is distinguished from an ordinary data bit by being wider
		// than RTcal by a margin (spec.md §4.D step 4); the original
		// firmware's comparator is against the first data-bit width, which
		// for an RTcal-calibrated link is just RTcal itself.
		if interval > d.rtCal {
			d.trCal = interval
			d.phase = decodingData
			return false
		}
		d.phase = decodingData
		return d.classifyBit(interval)

	case decodingData:
		return d.classifyBit(interval)

	default:
		return false
	}
}

// classifyBit applies the count+pivot carry test (spec.md §4.D step 5) and
// shifts the resulting bit MSB-first into the command buffer.
func (d *Decoder) classifyBit(interval rt.Ticks) bool {
	if d.Bits >= MaxCommandBits {
		d.Reset()
		return false
	}
	adjusted := uint32(interval) + uint32(d.pivot)
	bit := adjusted > 0xFFFF // carry out of the 16-bit add

	byteIdx := d.Bits / 8
	bitIdx := 7 - uint(d.Bits%8)
	if bit {
		d.Cmd[byteIdx] |= 1 << bitIdx
	} else {
		d.Cmd[byteIdx] &^= 1 << bitIdx
	}
	d.Bits++
	return true
}

// TRcal reports the most recently measured TRcal interval, used by the
// modulator to derive the backscatter link's bit rate (spec.md §4.E).
func (d *Decoder) TRcal() rt.Ticks { return d.trCal }

// RTcal reports the most recently measured RTcal interval.
func (d *Decoder) RTcal() rt.Ticks { return d.rtCal }
