// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package miller encodes a tag-to-reader reply as a Miller (M=2 or M=4) or
// FM0 subcarrier and drives it out over a backscatter load switch, per
// spec.md §4.E. The line code itself is expressed as a timeline of
// half-period durations; a Driver walks that timeline and toggles a
// devices.BackscatterPin at each boundary, not returning until the whole
// reply has been written. It does not mask interrupts; see Driver.
package miller

import (
	"time"

	"github.com/tve/gen2tag/devices"
	"github.com/tve/gen2tag/rt"
	"periph.io/x/conn/v3/gpio"
)

// Encoding selects the backscatter line code: FM0 or Miller with the given
// subcarrier cycles per symbol.
type Encoding int

const (
	FM0 Encoding = iota
	Miller2
	Miller4
)

// symbolCycles returns the number of subcarrier half-cycles a single data
// symbol occupies under this encoding; FM0 toggles once per bit boundary
// (2 half-cycles per symbol), Miller2/Miller4 run 2 and 4 subcarrier cycles
// per symbol respectively (4 and 8 half-cycles).
func (e Encoding) symbolCycles() int {
	switch e {
	case Miller4:
		return 8
	case Miller2:
		return 4
	default:
		return 2
	}
}

// Preamble is the fixed tag-preamble bit pattern spec.md §4.E specifies:
// 0,1,0,1,1,1.
var Preamble = []bool{false, true, false, true, true, true}

// PilotCycles returns the pilot-tone length in M/LF cycles: 4 if TRext is
// false, 16 if true, per spec.md §4.E.
func PilotCycles(trext bool) int {
	if trext {
		return 16
	}
	return 4
}

// Symbol is one half-period of the subcarrier waveform: how long the
// backscatter load stays in its current state before toggling.
type Symbol struct {
	Duration rt.Ticks
	Level    bool // true = load switch asserted (high), false = released
}

// Encoder builds the symbol timeline for a reply: pilot tone, preamble,
// then data bits, each emitted as the line code's halfPeriod Symbols.
// halfPeriod is derived from TRcal and the divide ratio carried in the
// Query (spec.md §4.E: "bit timing is derived from TRcal and the divide
// ratio"); callers compute it once per inventory round and reuse it.
type Encoder struct {
	Encoding   Encoding
	HalfPeriod rt.Ticks
}

// Encode returns the full symbol timeline for transmitting data (MSB-first
// within each byte, Bits total bits) after a pilot tone and the preamble.
func (enc Encoder) Encode(trext bool, data []byte, bits int) []Symbol {
	var timeline []Symbol
	level := false

	emit := func(toggles int) {
		for i := 0; i < toggles; i++ {
			level = !level
			timeline = append(timeline, Symbol{Duration: enc.HalfPeriod, Level: level})
		}
	}

	// Pilot tone: a steady run of subcarrier cycles with no data content.
	for i := 0; i < PilotCycles(trext); i++ {
		emit(2)
	}

	for _, bit := range Preamble {
		emit(enc.bitToggles(bit))
	}

	for i := 0; i < bits; i++ {
		byteIdx := i / 8
		bitIdx := 7 - uint(i%8)
		bit := data[byteIdx]&(1<<bitIdx) != 0
		emit(enc.bitToggles(bit))
	}

	return timeline
}

// bitToggles returns how many half-period toggles a single data bit
// produces under the encoder's line code. FM0 inverts mid-bit for a 0 and
// stays level for a 1 (one extra toggle distinguishes the two); Miller
// encodings toggle at every subcarrier half-cycle boundary within the
// symbol, with an extra mid-symbol toggle for a data 1.
func (enc Encoder) bitToggles(bit bool) int {
	base := enc.Encoding.symbolCycles()
	extra := bit
	if enc.Encoding == FM0 {
		extra = !bit
	}
	if extra {
		return base + 1
	}
	return base
}

// Driver walks a Symbol timeline and toggles a devices.BackscatterPin at
// each boundary. Per spec.md §4.E, "the final byte of the reply buffer is
// emitted before any interrupt is re-enabled" — Driver.Send reproduces that
// by never returning control to the caller (and hence to any pending
// demodulator work) until every symbol has been written. The caller is
// expected to have already raised its scheduling priority for the duration
// of the reply (gen2.Tag.Run does this once via rt.LockRealtime before its
// receive loop starts, rather than Send re-locking on every reply).
type Driver struct {
	Pin devices.BackscatterPin
}

// Send emits the given symbol timeline in order, blocking for the full
// duration of the reply. It does not arm or watch the RF edge pin — the
// caller is expected to have quiesced demodulation for the duration of the
// reply, matching the original firmware's disabled-Port1-interrupt window.
func (d Driver) Send(timeline []Symbol) error {
	for _, sym := range timeline {
		level := gpio.Low
		if sym.Level {
			level = gpio.High
		}
		if err := d.Pin.Out(level); err != nil {
			return err
		}
		time.Sleep(time.Duration(int64(sym.Duration) * int64(rt.TickPeriod)))
	}
	return nil
}
