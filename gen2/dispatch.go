// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package gen2

// command identifies a recognized reader command, per spec.md §4.F's
// "(length-in-bits, prefix mask)" recognition table.
type command int

const (
	cmdNone command = iota
	cmdQuery
	cmdQueryAdjust
	cmdQueryRep
	cmdACK
	cmdNAK
	cmdSelect
	cmdReqRN
	cmdRead
	cmdAccess
)

// MaxQueryBits bounds the command buffer before the dispatcher forces a
// reset to Ready, per spec.md §4.F's "unrecognized bits >= MaxQuery forces
// state <- Ready."
const MaxQueryBits = 256

// recognize implements the §4.F dispatch table: given the bits received so
// far and the first command byte, it returns which command (if any) the
// buffer now matches and whether bits is still a legal prefix of some
// command (so the caller knows whether to keep accumulating).
func recognize(cmd []byte, bits int) (c command, complete bool) {
	if bits == 0 {
		return cmdNone, true
	}
	b0 := cmd[0]

	switch {
	case bits == 22 && b0&0xF0 == 0x80:
		return cmdQuery, true
	case bits == 9 && b0&0xF8 == 0x48:
		return cmdQueryAdjust, true
	case bits == 4 && b0&0x06 == 0x00 && b0&0xF0 == 0x00:
		return cmdQueryRep, true
	case bits == 18 && b0&0xC0 == 0x40:
		return cmdACK, true
	case bits >= 8 && b0 == 0xC0:
		return cmdNAK, true
	case bits >= 44 && b0&0xF0 == 0xA0:
		return cmdSelect, true
	case bits == 40 && b0 == 0xC1:
		return cmdReqRN, true
	case bits == 57 && b0 == 0xC2:
		return cmdRead, true
	case bits >= 56 && b0 == 0xC6:
		return cmdAccess, true
	}

	if bits >= MaxQueryBits {
		return cmdNone, true // force caller to reset to Ready
	}
	return cmdNone, false // still accumulating, not yet a recognized length
}
