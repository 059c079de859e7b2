// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package gen2

// FlagState is an inventory flag's value: A or B, per the C1G2 air
// interface.
type FlagState int

const (
	FlagA FlagState = iota
	FlagB
)

// Number of sessions the air interface defines (S0..S3).
const numSessions = 4

// sessionStore holds the "selected" flag and the four per-session inventory
// flags spec.md §4.H describes, plus the previous_session bookkeeping
// variable carried (but only partially used) per spec.md §12.5.
type sessionStore struct {
	sl       bool // SL: "selected" flag, persistent across power cycles per §4.H
	flag     [numSessions]FlagState
	session  int // current session index, S0..S3
	previous int // previous_session: written on a session mismatch, not otherwise consulted
}

// initializeSessions sets SL to not-asserted and all four inventory flags
// to A, exactly as hw41_D41.c's initialize_sessions does on power-up.
func (s *sessionStore) initializeSessions() {
	s.sl = false
	for i := range s.flag {
		s.flag[i] = FlagA
	}
	s.session = 0
	s.previous = 0
}

// onInventoryTimeout is the Go-native counterpart of handle_session_timeout:
// a documented no-op. The original firmware's body is `#if 0`-disabled; the
// commented-out rules it names (decaying a session's flag from B back to A
// after a timeout window, per the persistence rules in the C1G2 spec) are
// reproduced below as documentation only, never executed — see DESIGN.md's
// Open Questions for why this is kept a stub rather than implemented.
//
//	if flag[session] == B && elapsed since last query > persistence_timeout {
//	    flag[session] = A
//	}
func (s *sessionStore) onInventoryTimeout() {
	// intentional no-op, see doc comment above.
}

// SelectTarget names which persistent flag a Select command addresses.
type SelectTarget int

const (
	TargetSL SelectTarget = iota
	TargetS0
	TargetS1
	TargetS2
	TargetS3
)

// SelectAction names what a Select command does to the targeted flag.
type SelectAction int

const (
	ActionAssert SelectAction = iota // set to B (or SL asserted)
	ActionDeassert
	ActionToggle
)

// applySelect mutates SL or flag[session] per (target, action), the part of
// spec.md §4.H that *is* implemented ("Select commands mutate SL or
// flag[session] according to (Target, Action) pairs"). Select never emits a
// reply.
func (s *sessionStore) applySelect(target SelectTarget, action SelectAction) {
	if target == TargetSL {
		switch action {
		case ActionAssert:
			s.sl = true
		case ActionDeassert:
			s.sl = false
		case ActionToggle:
			s.sl = !s.sl
		}
		return
	}

	idx := int(target) - int(TargetS0)
	if idx < 0 || idx >= numSessions {
		return
	}
	switch action {
	case ActionAssert:
		s.flag[idx] = FlagB
	case ActionDeassert:
		s.flag[idx] = FlagA
	case ActionToggle:
		if s.flag[idx] == FlagA {
			s.flag[idx] = FlagB
		} else {
			s.flag[idx] = FlagA
		}
	}
}

// matchesSession reports whether the tag's currently selected session's
// flag participates in the round for the given target flag state, the
// partial arbitration spec.md's Non-goals explicitly leave incomplete (only
// the current session is checked; S2/S3 and previous_session are stored but
// not cross-checked, per spec.md §12.5 and §9's Open Questions).
func (s *sessionStore) matchesSession(wantSession int, wantFlag FlagState) bool {
	if wantSession != s.session {
		s.previous = s.session
		return false
	}
	return s.flag[s.session] == wantFlag
}
