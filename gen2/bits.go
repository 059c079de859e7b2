// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package gen2

// bitsAt extracts the n-bit (n<=32) field starting at the given bit offset
// (0-indexed from the MSB of cmd[0]) and returns it right-justified,
// MSB-first — the declarative equivalent of the original firmware's
// hand-rolled bit shifting into the command buffer.
func bitsAt(cmd []byte, startBit, n int) uint32 {
	var v uint32
	for i := 0; i < n; i++ {
		bit := startBit + i
		byteIdx := bit / 8
		if byteIdx >= len(cmd) {
			v <<= 1
			continue
		}
		bitIdx := 7 - uint(bit%8)
		b := (cmd[byteIdx] >> bitIdx) & 1
		v = (v << 1) | uint32(b)
	}
	return v
}

// queryFields is the parsed field set of a Query command (spec.md §4.G
// "Query handling": "Parse new DR, M, TRext, Sel, Session, Target, Q"),
// laid out per the C1G2 Query command: 4-bit opcode, DR(1), M(2),
// TRext(1), Sel(2), Session(2), Target(1), Q(4), CRC5(5).
type queryFields struct {
	dr      uint32
	m       uint32
	trext   bool
	sel     uint32
	session int
	target  FlagState
	q       int
}

func parseQuery(cmd []byte) queryFields {
	return queryFields{
		dr:      bitsAt(cmd, 4, 1),
		m:       bitsAt(cmd, 5, 2),
		trext:   bitsAt(cmd, 7, 1) != 0,
		sel:     bitsAt(cmd, 8, 2),
		session: int(bitsAt(cmd, 10, 2)),
		target:  FlagState(bitsAt(cmd, 12, 1)),
		q:       int(bitsAt(cmd, 13, 4)),
	}
}

// ackRN16 extracts the RN16 field from an 18-bit ACK command: a 2-bit
// opcode followed by the 16-bit RN16.
func ackRN16(cmd []byte) uint16 {
	return uint16(bitsAt(cmd, 2, 16))
}

// selectFields is the parsed (Target, Action) pair of a Select command,
// per spec.md §4.G ("updates SL or inventory flag per the Target/Action
// fields"). MemBank/Pointer/Length/Mask/Truncate are parsed by no one here:
// spec.md explicitly says "Truncation is not supported."
type selectFields struct {
	target SelectTarget
	action SelectAction
}

func parseSelect(cmd []byte) selectFields {
	rawTarget := bitsAt(cmd, 4, 3)
	rawAction := bitsAt(cmd, 7, 3)

	target := TargetS0
	switch rawTarget {
	case 0:
		target = TargetS0
	case 1:
		target = TargetS1
	case 2:
		target = TargetS2
	case 3:
		target = TargetS3
	case 4:
		target = TargetSL
	}

	var action SelectAction
	switch rawAction & 0x3 {
	case 0:
		action = ActionDeassert
	case 1:
		action = ActionAssert
	default:
		action = ActionToggle
	}

	return selectFields{target: target, action: action}
}

// reqRNHandle extracts the handle field a Req_RN/Read command presents for
// validation: the 16 bits immediately before the trailing 16-bit CRC.
func reqRNHandle(cmd []byte, totalBits int) uint16 {
	return uint16(bitsAt(cmd, totalBits-32, 16))
}
