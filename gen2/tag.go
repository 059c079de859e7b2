// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package gen2 implements the dispatcher, protocol state machine, session
// store and reply assembler of a passive UHF RFID tag's digital core — the
// part of the WISP 4.1 firmware (hw41_D41.c) that decides what to do with
// each decoded reader command. Demodulation (pie) and modulation (miller)
// are separate packages; Tag ties them together with the hardware
// collaborators in devices and sensor.
package gen2

import (
	"encoding/binary"
	"fmt"

	"github.com/tve/gen2tag/devices"
	"github.com/tve/gen2tag/lfsr"
	"github.com/tve/gen2tag/sensor"
)

// State is one of the five states spec.md §4.G's transition table names.
type State int

const (
	StateReady State = iota
	StateArbitrate
	StateReply
	StateAcknowledged
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateArbitrate:
		return "Arbitrate"
	case StateReply:
		return "Reply"
	case StateAcknowledged:
		return "Acknowledged"
	case StateOpen:
		return "Open"
	default:
		return "Unknown"
	}
}

// LogPrintf is the driver logging hook, in the same shape as
// sx1231.Radio's LogPrintf: a diagnostic aid, never load-bearing for
// protocol correctness (spec.md §7: "all errors are local and silent").
type LogPrintf func(format string, v ...interface{})

// Tag is the encapsulated TagContext spec.md §9 calls for: the
// register-pinned globals of the original firmware (bits, dest, state, the
// flag tables) collected into a single value owned by the caller's
// goroutine, with the reply/session/pool helpers as unexported fields.
type Tag struct {
	cfg     Config
	pins    *devices.Pins
	sampler sensor.Sampler

	state  State
	pool   lfsr.Pool
	rn16   uint16
	handle uint16
	q      int // current Query's Q value
	slot   int // countdown within the current round
	shift  int // rotates through the RN16 pool on timeout, wraps at 4

	sessions sessionStore
	replies  replyBuffers

	log LogPrintf
	dbg *dbgRing

	nextHandle func() uint16 // swappable for deterministic tests
}

// New constructs a Tag from a Config and the hardware collaborators it
// needs. pins may be nil for pure protocol-logic testing (power_good then
// always reports true, per (I2)); sampler may be nil if cfg.SensorMode is
// SensorDataNone.
func New(cfg Config, pins *devices.Pins, sampler sensor.Sampler) (*Tag, error) {
	if pins != nil {
		if err := pins.Validate(); err != nil {
			return nil, fmt.Errorf("gen2: %v", err)
		}
	}
	if cfg.SensorMode != SensorDataNone && sampler == nil {
		return nil, fmt.Errorf("gen2: SensorMode requires a non-nil sampler")
	}

	t := &Tag{
		cfg:     cfg,
		pins:    pins,
		sampler: sampler,
		log:     func(string, ...interface{}) {},
		dbg:     newDbgRing(64),
	}
	t.sessions.initializeSessions()
	t.rebuild()
	t.nextHandle = t.lfsrHandle
	return t, nil
}

// SetLogger installs a logging function, prefixed exactly as
// sx1231.Radio.SetLogger prefixes its driver's messages.
func (t *Tag) SetLogger(l LogPrintf) {
	if l == nil {
		t.log = func(string, ...interface{}) {}
		return
	}
	t.log = func(format string, v ...interface{}) {
		l("gen2: "+format, v...)
	}
}

// Trace returns the tag's recent internal events for offline debugging,
// adapted from rfm69/dbgbuf.go's dbgPrint.
func (t *Tag) Trace() []string {
	return t.dbg.lines()
}

// State reports the tag's current protocol state.
func (t *Tag) State() State { return t.state }

// rebuild (re)computes the ackReply buffer and RN16 pool from the EPC/PC in
// cfg, called at construction and whenever the EPC-embedded sensor sample
// changes (SensorDataInID).
func (t *Tag) rebuild() {
	var pcEpc [14]byte
	copy(pcEpc[0:2], t.cfg.PC[:])
	copy(pcEpc[2:14], t.cfg.EPC[:])
	t.replies.buildAckReply(pcEpc)

	epcWord := binary.BigEndian.Uint16(t.cfg.EPC[:2])
	t.pool = lfsr.BuildPool(epcWord)
}

// powerGood reports the power_good predicate (spec.md's (I2) invariant): a
// reply is emitted only while power is good. With no pins bound (pure
// protocol-logic tests) power is always considered good.
func (t *Tag) powerGood() bool {
	if t.pins == nil {
		return true
	}
	return t.pins.IsPowerGood()
}

// lfsrHandle derives a new 16-bit handle from the LFSR, the same generator
// backing the RN16 pool (hw41_D41.c reuses rn16/lfsr() for Req_RN handles
// too).
func (t *Tag) lfsrHandle() uint16 {
	t.rn16 = lfsrNext(t.rn16 ^ uint16(t.slot))
	return t.rn16
}

func lfsrNext(seed uint16) uint16 {
	return lfsr.Next(seed)
}

// onTimeout reproduces the inter-character-timeout handling spec.md §12.2
// supplements: hw41_D41.c's main loop increments shift (wrapping at 4) on
// every TAR > 0x256 timeout, independent of Q. It also invokes the
// session-timeout stub and, while in Arbitrate, perturbs the RN16 pool with
// Mixup; the slot countdown is not changed by a timeout.
func (t *Tag) onTimeout() {
	t.shift = (t.shift + 1) & 0x3
	t.sessions.onInventoryTimeout()

	if t.state == StateArbitrate {
		// Perturb the RN16 pool so a slot that keeps timing out doesn't keep
		// re-presenting the same RN16, per lfsr.Pool.Mixup's doc comment.
		t.pool.Mixup(t.q, t.shift)
	}

	if !t.powerGood() {
		t.sleepAndReset()
		return
	}

	if t.state == StateReply && t.cfg.ReplyQueryRestartsArbitrate {
		// spec.md §9 Open Question 1 / §12.4: low-voltage deviation,
		// exposed as a configurable policy.
		t.state = StateArbitrate
	}
}

// sleepAndReset reproduces the power-event path (spec.md §4.G "Power-event
// path"): on wake, state resets to Ready and the volatile round state is
// cleared. Inventory flags S2 and S3 reset to A; SL and the S0/S1 flags are
// kept as they are.
func (t *Tag) sleepAndReset() {
	t.state = StateReady
	t.q = 0
	t.slot = 0
	t.shift = 0
	t.sessions.flag[2] = FlagA
	t.sessions.flag[3] = FlagA
}
