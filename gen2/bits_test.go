// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package gen2

import "testing"

func Test_bitsAt_extractsAlignedByte(t *testing.T) {
	cmd := []byte{0xAB, 0xCD}
	if got := bitsAt(cmd, 0, 8); got != 0xAB {
		t.Fatalf("bitsAt(0,8) = %#x, want 0xAB", got)
	}
	if got := bitsAt(cmd, 8, 8); got != 0xCD {
		t.Fatalf("bitsAt(8,8) = %#x, want 0xCD", got)
	}
}

func Test_bitsAt_extractsCrossByteField(t *testing.T) {
	// 0xAB = 1010 1011, 0xCD = 1100 1101
	// bits [4:12) = 1011 1100 = 0xBC
	cmd := []byte{0xAB, 0xCD}
	if got := bitsAt(cmd, 4, 8); got != 0xBC {
		t.Fatalf("bitsAt(4,8) = %#x, want 0xBC", got)
	}
}

func Test_bitsAt_outOfRangePadsWithZero(t *testing.T) {
	cmd := []byte{0xFF}
	got := bitsAt(cmd, 4, 8) // reads 4 valid bits then 4 past the buffer
	if got != 0xF0 {
		t.Fatalf("bitsAt past end = %#x, want 0xF0 (zero-padded tail)", got)
	}
}

func Test_parseQuery_fieldLayout(t *testing.T) {
	// opcode(4)=1000, DR=1, M=10, TRext=1, Sel=01, Session=10, Target=1, Q=0101
	cmd := []byte{0b1000_1101, 0b0110_1010, 0b1000_0000}
	f := parseQuery(cmd)

	if f.dr != 1 {
		t.Fatalf("dr = %d, want 1", f.dr)
	}
	if f.m != 0b10 {
		t.Fatalf("m = %b, want 10", f.m)
	}
	if !f.trext {
		t.Fatalf("trext = false, want true")
	}
	if f.sel != 0b01 {
		t.Fatalf("sel = %b, want 01", f.sel)
	}
	if f.session != 0b10 {
		t.Fatalf("session = %d, want 2", f.session)
	}
	if f.target != FlagB {
		t.Fatalf("target = %v, want FlagB", f.target)
	}
	if f.q != 0b0101 {
		t.Fatalf("q = %d, want 5", f.q)
	}
}

func Test_ackRN16_extractsField(t *testing.T) {
	// opcode '01' then RN16 = 0x1234
	rn := uint16(0x1234)
	cmd := []byte{0x40 | byte(rn>>10), byte(rn >> 2), byte(rn<<6) & 0xC0}
	if got := ackRN16(cmd); got != 0x1234 {
		t.Fatalf("ackRN16 = %#x, want 0x1234", got)
	}
}

func Test_parseSelect_targetAndAction(t *testing.T) {
	// opcode(4) + Target(3)=010 (S2) + Action(3)=001 (assert)
	cmd := make([]byte, 6)
	cmd[0] = 0xA0
	setBitsAt(cmd, 4, 3, 2) // Target = 2 (S2)
	setBitsAt(cmd, 7, 3, 1) // Action = 1 (assert)

	f := parseSelect(cmd)
	if f.target != TargetS2 {
		t.Fatalf("target = %v, want TargetS2", f.target)
	}
	if f.action != ActionAssert {
		t.Fatalf("action = %v, want ActionAssert", f.action)
	}
}

func Test_reqRNHandle_extractsFieldBeforeTrailingCRC(t *testing.T) {
	cmd := make([]byte, 5)
	setBitsAt(cmd, 40-32, 16, 0xBEEF)
	if got := reqRNHandle(cmd, 40); got != 0xBEEF {
		t.Fatalf("reqRNHandle = %#x, want 0xBEEF", got)
	}
}
