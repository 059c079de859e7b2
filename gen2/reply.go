// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package gen2

import "github.com/tve/gen2tag/crc16"

// replyBuffers holds the preformatted reply buffers spec.md §4.I describes:
// queryReply (RN16 + optional CRC), ackReply (PC + EPC + CRC), readReply
// (dynamic data + handle + loner-bit CRC) and reqRnReply (new handle +
// CRC). Byte order throughout is big-endian; CRC bytes are written high
// byte first.
type replyBuffers struct {
	queryReply [4]byte // RN16 (2) + CRC (2), CRC only meaningful when slots disabled
	ackReply   [16]byte // PC (2) + EPC (12) + CRC (2)
	reqRnReply [4]byte // new handle (2) + CRC (2)
}

// buildAckReply writes PC+EPC into ackReply and computes its CRC once, over
// exactly the 14 bytes preceding the CRC field, per (P4) and spec.md §4.I
// ("ackReply CRC is computed at boot over 14 bytes of (PC + EPC)").
func (r *replyBuffers) buildAckReply(pcEpc [14]byte) {
	copy(r.ackReply[:14], pcEpc[:])
	crc := crc16.CRC(r.ackReply[:14])
	writeCRCBE(r.ackReply[14:16], crc)
}

// buildQueryReply writes rn16 into queryReply. When slotsEnabled is false,
// a CRC is appended over the 2-byte RN16 (4 bytes total); when true, the
// RN16 itself is the whole reply (2 bytes, no CRC), per spec.md §4.I.
func (r *replyBuffers) buildQueryReply(rn16 uint16, slotsEnabled bool) []byte {
	r.queryReply[0] = byte(rn16 >> 8)
	r.queryReply[1] = byte(rn16)
	if slotsEnabled {
		return r.queryReply[:2]
	}
	crc := crc16.CRC(r.queryReply[:2])
	writeCRCBE(r.queryReply[2:4], crc)
	return r.queryReply[:4]
}

// buildReqRnReply writes a freshly generated handle into reqRnReply with
// its CRC, per spec.md §4.G's Req_RN handling ("generate new 16-bit RN
// (handle), return it with CRC").
func (r *replyBuffers) buildReqRnReply(handle uint16) []byte {
	r.reqRnReply[0] = byte(handle >> 8)
	r.reqRnReply[1] = byte(handle)
	crc := crc16.CRC(r.reqRnReply[:2])
	writeCRCBE(r.reqRnReply[2:4], crc)
	return r.reqRnReply[:4]
}

// buildReadReply assembles a Read reply: data (application-supplied,
// membank/wordptr/wordcount ignored per spec.md §4.G) followed by the
// 2-byte handle, CRC'd with the bit-misaligned crc_readreply helper because
// every readReply carries the leading loner bit (spec.md §4.B, (P5)).
// The returned slice is ready to hand to the modulator: loner-bit-shifted
// payload, then the two CRC bytes.
func buildReadReply(data []byte, handle uint16) []byte {
	payload := make([]byte, len(data)+2)
	copy(payload, data)
	payload[len(data)] = byte(handle >> 8)
	payload[len(data)+1] = byte(handle)

	shifted, crcHi, crcLo := crc16.ReadReplyCRC(payload)
	out := make([]byte, len(shifted)+2)
	copy(out, shifted)
	out[len(shifted)] = crcHi
	out[len(shifted)+1] = crcLo
	return out
}

// writeCRCBE writes crc into dst (which must be 2 bytes) big-endian, high
// byte first, per spec.md §4.I's byte-order rule.
func writeCRCBE(dst []byte, crc uint16) {
	dst[0] = byte(crc >> 8)
	dst[1] = byte(crc)
}
