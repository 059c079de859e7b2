// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package miller

import (
	"testing"

	"github.com/tve/gen2tag/rt"
	"pgregory.net/rapid"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Test_PilotCycles checks spec.md §4.E's "4 cycles if TRext=0, 16 if
// TRext=1."
func Test_PilotCycles(t *testing.T) {
	if got := PilotCycles(false); got != 4 {
		t.Fatalf("PilotCycles(false) = %d, want 4", got)
	}
	if got := PilotCycles(true); got != 16 {
		t.Fatalf("PilotCycles(true) = %d, want 16", got)
	}
}

// Test_Encode_preambleUsesFixedPattern checks that the symbol count emitted
// for the preamble is consistent with the 6-bit pattern 010111, regardless
// of encoding.
func Test_Encode_preambleUsesFixedPattern(t *testing.T) {
	for _, enc := range []Encoding{FM0, Miller2, Miller4} {
		e := Encoder{Encoding: enc, HalfPeriod: 10}
		full := e.Encode(false, []byte{0x00}, 0)
		pilotToggles := PilotCycles(false) * 2

		wantPreambleToggles := 0
		for _, bit := range Preamble {
			wantPreambleToggles += e.bitToggles(bit)
		}

		if len(full) != pilotToggles+wantPreambleToggles {
			t.Fatalf("encoding %v: len(timeline) = %d, want %d (pilot) + %d (preamble) = %d",
				enc, len(full), pilotToggles, wantPreambleToggles, pilotToggles+wantPreambleToggles)
		}
	}
}

// Test_Encode_dataBitsAddSymbols checks that adding data bits lengthens the
// timeline by exactly the sum of each bit's toggle count, and that a 0 and a
// 1 bit always produce a different toggle count (the distinguishing
// property Miller/FM0 line codes rely on).
func Test_Encode_dataBitsAddSymbols(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		enc := Encoding(rapid.IntRange(0, 2).Draw(t, "encoding"))
		e := Encoder{Encoding: enc, HalfPeriod: rt.Ticks(rapid.IntRange(1, 1000).Draw(t, "halfPeriod"))}

		zero := e.Encode(false, []byte{0x00}, 8)
		one := e.Encode(false, []byte{0xFF}, 8)

		if len(zero) == len(one) {
			t.Fatalf("encoding %v: all-zero and all-one byte produced same timeline length %d", enc, len(zero))
		}
		if e.bitToggles(false) == e.bitToggles(true) {
			t.Fatalf("encoding %v: bitToggles(false) == bitToggles(true) == %d, bits indistinguishable",
				enc, e.bitToggles(false))
		}
	})
}

// Test_Encode_isDeterministic checks that encoding the same input twice
// produces an identical timeline, which the modulator's determinism
// requirement (spec.md §4.E) depends on.
func Test_Encode_isDeterministic(t *testing.T) {
	e := Encoder{Encoding: Miller4, HalfPeriod: 42}
	data := []byte{0xAB, 0xCD}
	a := e.Encode(true, data, 16)
	b := e.Encode(true, data, 16)
	if len(a) != len(b) {
		t.Fatalf("non-deterministic timeline length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("symbol %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

// recordingPin is a devices.BackscatterPin test double recording every
// level it was asked to output, used to check Driver.Send walks the
// timeline in order without skipping or reordering symbols.
type recordingPin struct {
	levels []bool
}

func (p *recordingPin) Name() string     { return "rec" }
func (p *recordingPin) String() string   { return "rec" }
func (p *recordingPin) Halt() error      { return nil }
func (p *recordingPin) Number() int      { return -1 }
func (p *recordingPin) Function() string { return "backscatter" }
func (p *recordingPin) Out(l gpio.Level) error {
	p.levels = append(p.levels, bool(l))
	return nil
}
func (p *recordingPin) PWM(gpio.Duty, physic.Frequency) error { return nil }

// Test_Driver_sendWalksTimelineInOrder uses the real gpio.Level type via a
// minimal recording pin, checking that Send calls Out once per symbol in
// the timeline's order.
func Test_Driver_sendWalksTimelineInOrder(t *testing.T) {
	rec := &recordingPin{}
	d := Driver{Pin: rec}
	timeline := []Symbol{
		{Duration: 1, Level: false},
		{Duration: 1, Level: true},
		{Duration: 1, Level: false},
	}
	if err := d.Send(timeline); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(rec.levels) != len(timeline) {
		t.Fatalf("Out called %d times, want %d", len(rec.levels), len(timeline))
	}
	for i, sym := range timeline {
		if rec.levels[i] != sym.Level {
			t.Fatalf("symbol %d: Out level = %v, want %v", i, rec.levels[i], sym.Level)
		}
	}
}
