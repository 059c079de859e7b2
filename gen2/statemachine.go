// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package gen2

// Dispatch implements spec.md §4.F/§4.G: it recognizes the command in cmd
// (bits valid bits, MSB-first from cmd[0]) and applies the transition and
// side effects the table names for the tag's current state. It returns the
// reply to backscatter (nil if none) and whether one was emitted.
//
// Per (I2), no reply is ever emitted while !power_good(); per §7, every
// error is local and silent — Dispatch never returns an error, it just
// drops the command and leaves state unchanged (or resets to Ready on a
// length/opcode mismatch, per §4.F's "unrecognized bits >= MaxQuery forces
// state <- Ready").
func (t *Tag) Dispatch(cmd []byte, bits int) (reply []byte, emitted bool) {
	c, complete := recognize(cmd, bits)
	if !complete {
		return nil, false // still accumulating this command
	}
	if c == cmdNone {
		if bits >= MaxQueryBits {
			t.dbg.push("length/opcode mismatch at %d bits, reset to Ready", bits)
			t.state = StateReady
		}
		return nil, false
	}

	switch c {
	case cmdSelect:
		t.handleSelect(cmd)
		return nil, false
	case cmdQuery:
		return t.handleQuery(cmd)
	case cmdQueryRep:
		return t.handleQueryRep()
	case cmdQueryAdjust:
		return t.handleQueryAdjust()
	case cmdACK:
		return t.handleACK(cmd)
	case cmdReqRN:
		return t.handleReqRN(cmd)
	case cmdRead:
		return t.handleRead(cmd, bits)
	case cmdNAK:
		t.handleNAK()
		return nil, false
	case cmdAccess:
		return nil, false // stub: no-op, per spec.md §4.F
	}
	return nil, false
}

// handleSelect applies §4.H's (Target, Action) mutation; Select never
// emits and is legal from every state. With cfg.EnableSessions false, the
// §4.H bookkeeping is compiled out (spec.md §6 "ENABLE_SESSIONS: enables
// §4.H bookkeeping") and Select only drives the state transition.
func (t *Tag) handleSelect(cmd []byte) {
	if t.cfg.EnableSessions {
		f := parseSelect(cmd)
		t.sessions.applySelect(f.target, f.action)
	}
	t.state = StateReady
}

// handleQuery implements §4.G's Query row/column for every state: Query
// restarts a new round and picks a new slot, with the select criterion and
// slot-0 immediate reply spec.md's "Query handling" names. The exception is
// a Query received in Reply while cfg.ReplyQueryRestartsArbitrate is set:
// the tag then drops to Arbitrate without replying.
func (t *Tag) handleQuery(cmd []byte) ([]byte, bool) {
	f := parseQuery(cmd)

	if t.state == StateReply && t.cfg.ReplyQueryRestartsArbitrate {
		t.dbg.push("Query in Reply: restarting arbitration")
		t.state = StateArbitrate
		return nil, false
	}

	if t.cfg.EnableSessions && !t.sessions.matchesSession(f.session, f.target) {
		t.dbg.push("Query: select criterion not met for session %d", f.session)
		return nil, false
	}

	t.q = f.q
	t.shift = 0
	if t.cfg.EnableSlots {
		t.slot = t.pickSlot(f.q)
	} else {
		t.slot = 0
	}

	if t.slot == 0 {
		t.loadRN16()
		reply := t.emitQueryReply()
		t.state = StateReply
		return reply, reply != nil
	}
	t.state = StateArbitrate
	return nil, false
}

// pickSlot derives a slot in [0, 2^Q) from the LFSR pool, per §4.G "pick a
// slot slot ∈ [0, 2^Q) from the LFSR."
func (t *Tag) pickSlot(q int) int {
	if q <= 0 {
		return 0
	}
	hi, lo := t.pool.Load(q, t.shift)
	v := int(hi)<<8 | int(lo)
	return v & ((1 << uint(q)) - 1)
}

// loadRN16 loads the current slot's RN16 from the pool, per §4.G "Ready:
// →Reply, load RN16."
func (t *Tag) loadRN16() {
	hi, lo := t.pool.Load(t.q, t.shift)
	t.rn16 = uint16(hi)<<8 | uint16(lo)
}

// emitQueryReply returns the reply to backscatter for a slot-0 pick, nil if
// power is not good (I2).
func (t *Tag) emitQueryReply() []byte {
	if !t.powerGood() {
		return nil
	}
	return t.replies.buildQueryReply(t.rn16, t.cfg.EnableSlots)
}

// handleQueryRep implements §4.G's QueryRep row: decrement slot; when it
// reaches 0, backscatter RN16 and transition to Reply (from Arbitrate), or
// restart arbitration (from Reply), or fully reset (from Acknowledged/Open).
func (t *Tag) handleQueryRep() ([]byte, bool) {
	switch t.state {
	case StateArbitrate:
		if t.slot > 0 {
			t.slot--
		}
		if t.slot == 0 {
			t.loadRN16()
			reply := t.emitQueryReply()
			t.state = StateReply
			return reply, reply != nil
		}
		return nil, false
	case StateReply:
		t.state = StateArbitrate
		return nil, false
	case StateAcknowledged, StateOpen:
		t.state = StateReady
		return nil, false
	}
	return nil, false
}

// handleQueryAdjust implements §4.G's QueryAdjust column: stays in
// Reply/Arbitrate, resets to Ready from Acknowledged/Open. Ready has no
// table entry ("—") and is left untouched, matching hw41_D41.c's
// STATE_READY block (which only handles Query/Select).
func (t *Tag) handleQueryAdjust() ([]byte, bool) {
	switch t.state {
	case StateArbitrate, StateReply:
		t.state = StateReply
		return nil, false
	case StateAcknowledged, StateOpen:
		t.state = StateReady
		return nil, false
	}
	return nil, false
}

// handleACK implements §4.G's ACK column: validates the RN16 in the
// command matches the last emitted RN16; on match, transmits ackReply and
// advances to Acknowledged (or re-emits/re-ACKs if already there or in
// Open). Mismatch: silently drop, per §4.G "ACK handling."
func (t *Tag) handleACK(cmd []byte) ([]byte, bool) {
	if ackRN16(cmd) != t.rn16 {
		t.dbg.push("ACK: RN16 mismatch, dropped")
		return nil, false
	}
	switch t.state {
	case StateReply, StateAcknowledged, StateOpen:
		if !t.powerGood() {
			return nil, false
		}
		if t.state == StateReply {
			t.state = StateAcknowledged
		}
		if t.cfg.SensorMode == SensorDataInID {
			t.sampleIntoID()
		}
		return t.replies.ackReply[:], true
	}
	return nil, false
}

// sampleIntoID embeds a fresh sensor sample into the EPC-derived ackReply,
// per spec.md §12.3's SensorDataInID variant, then recomputes the ackReply
// CRC since its content changed.
func (t *Tag) sampleIntoID() {
	if t.sampler == nil {
		return
	}
	sample, err := t.sampler.Sample()
	if err != nil {
		t.dbg.push("sensor sample error: %v", err)
		return
	}
	copy(t.cfg.EPC[:], sample)
	t.rebuild()
}

// handleReqRN implements §4.G's ReqRN column: validates the handle (for
// Acknowledged, the RN16 field serves as the handle-to-be per the original
// firmware; for Open, the previously issued handle), generates a new
// handle, and returns it with CRC.
func (t *Tag) handleReqRN(cmd []byte) ([]byte, bool) {
	got := reqRNHandle(cmd, 40)
	want := t.rn16
	if t.state == StateOpen {
		want = t.handle
	}
	if got != want {
		t.dbg.push("ReqRN: handle mismatch, dropped")
		return nil, false
	}
	if !t.powerGood() {
		return nil, false
	}

	switch t.state {
	case StateAcknowledged:
		t.handle = t.nextHandle()
		t.state = StateOpen
		return t.replies.buildReqRnReply(t.handle), true
	case StateOpen:
		t.handle = t.nextHandle()
		return t.replies.buildReqRnReply(t.handle), true
	}
	return nil, false
}

// handleRead implements §4.G's Read column: available in Acknowledged or
// Open, samples the application-configured data region (membank/wordptr/
// wordcount ignored per §4.G) and emits a readReply with the bit-misaligned
// CRC. Acknowledged transitions to Arbitrate after replying per the table.
func (t *Tag) handleRead(cmd []byte, bits int) ([]byte, bool) {
	if !t.cfg.EnableReads {
		return nil, false
	}
	if t.state != StateAcknowledged && t.state != StateOpen {
		return nil, false
	}
	handle := reqRNHandle(cmd, bits)
	if handle != t.handle {
		t.dbg.push("Read: handle mismatch, dropped")
		return nil, false
	}
	if !t.powerGood() {
		return nil, false
	}

	var data []byte
	if t.sampler != nil && t.cfg.SensorMode == SensorDataInReadCommand {
		sample, err := t.sampler.Sample()
		if err != nil {
			t.dbg.push("sensor sample error: %v", err)
			return nil, false
		}
		data = sample
	}

	reply := buildReadReply(data, t.handle)

	switch t.state {
	case StateAcknowledged:
		t.state = StateArbitrate
	case StateOpen:
		// stays in Open per §4.G
	}
	return reply, true
}

// handleNAK implements §4.G's NAK column: from Acknowledged or Open,
// returns to Arbitrate with no emission.
func (t *Tag) handleNAK() {
	switch t.state {
	case StateAcknowledged, StateOpen:
		t.state = StateArbitrate
	}
}
