// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package gen2

import "testing"

// Test_recognize_table exercises spec.md §4.F's (length, prefix-mask) table
// for every named command, confirming each is recognized at its bit count
// and opcode prefix.
func Test_recognize_table(t *testing.T) {
	cases := []struct {
		name string
		b0   byte
		bits int
		want command
	}{
		{"Query", 0x80, 22, cmdQuery},
		{"QueryAdjust", 0x48, 9, cmdQueryAdjust},
		{"QueryRep", 0x00, 4, cmdQueryRep},
		{"ACK", 0x40, 18, cmdACK},
		{"NAK", 0xC0, 8, cmdNAK},
		{"NAK longer", 0xC0, 40, cmdNAK},
		{"Select", 0xA0, 44, cmdSelect},
		{"ReqRN", 0xC1, 40, cmdReqRN},
		{"Read", 0xC2, 57, cmdRead},
		{"Access", 0xC6, 56, cmdAccess},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cmd := make([]byte, (c.bits+7)/8+4)
			cmd[0] = c.b0
			got, complete := recognize(cmd, c.bits)
			if !complete {
				t.Fatalf("recognize(%s) not complete", c.name)
			}
			if got != c.want {
				t.Fatalf("recognize(%s) = %v, want %v", c.name, got, c.want)
			}
		})
	}
}

// Test_recognize_incompleteBelowThreshold confirms a Query one bit short
// of 22 is still accumulating, not yet recognized as anything.
func Test_recognize_incompleteBelowThreshold(t *testing.T) {
	cmd := []byte{0x80, 0x00, 0x00}
	c, complete := recognize(cmd, 21)
	if complete || c != cmdNone {
		t.Fatalf("recognize at 21 bits = (%v, %v), want still accumulating", c, complete)
	}
}

// Test_recognize_forcesResetAtMaxQueryBits confirms an unrecognized buffer
// that reaches MaxQueryBits is reported complete with cmdNone, signaling
// the caller (Dispatch) to reset state to Ready.
func Test_recognize_forcesResetAtMaxQueryBits(t *testing.T) {
	cmd := make([]byte, MaxQueryBits/8)
	cmd[0] = 0xFF // matches no recognized prefix at this length
	c, complete := recognize(cmd, MaxQueryBits)
	if !complete {
		t.Fatalf("recognize at MaxQueryBits not complete")
	}
	if c != cmdNone {
		t.Fatalf("recognize at MaxQueryBits = %v, want cmdNone", c)
	}
}

// Test_recognize_zeroBitsIsNone confirms an empty buffer is immediately
// cmdNone/complete (nothing to accumulate yet, no-op for Dispatch).
func Test_recognize_zeroBitsIsNone(t *testing.T) {
	c, complete := recognize(nil, 0)
	if !complete || c != cmdNone {
		t.Fatalf("recognize(nil, 0) = (%v, %v), want (cmdNone, true)", c, complete)
	}
}

// Test_Dispatch_lengthMismatchResetsToReady confirms that once a buffer
// grows to MaxQueryBits without matching any table entry, Dispatch forces
// the tag back to Ready, per §4.F.
func Test_Dispatch_lengthMismatchResetsToReady(t *testing.T) {
	tag := newTestTag(t, defaultTestConfig())
	tag.state = StateAcknowledged

	cmd := make([]byte, MaxQueryBits/8)
	cmd[0] = 0xFF
	_, emitted := tag.Dispatch(cmd, MaxQueryBits)

	if emitted {
		t.Fatalf("length-mismatch dispatch emitted a reply")
	}
	if tag.State() != StateReady {
		t.Fatalf("state after length mismatch = %v, want Ready", tag.State())
	}
}
