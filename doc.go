// Package gen2tag is the reception/reply core of a passive UHF RFID transponder
// implementing a partial EPCGlobal Class-1 Generation-2 air interface: a
// PIE demodulator, a Miller/FM0 modulator, and the tag-side protocol state
// machine (Ready/Arbitrate/Reply/Acknowledged/Open) that ties them together.
// Each concern lives in its own sub-package (rt, crc16, lfsr, pie, miller,
// devices, sensor, gen2) following the layout of github.com/tve/devices,
// from which this repo's house style is derived. Simple harness commands
// live under cmd.
package gen2tag
