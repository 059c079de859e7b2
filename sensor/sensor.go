// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package sensor defines the opaque byte-buffer sampling collaborator
// spec.md §1 keeps out of scope: "the analog sensor sampling subsystem
// provides an opaque byte buffer into a reply slot." The tag core never
// interprets the bytes it gets back — it only cares about how many there
// are and that they fit in a readReply slot.
package sensor

import (
	"fmt"

	"periph.io/x/conn/v3/spi"
)

// Sampler is anything that can produce a fixed-size byte buffer on demand
// for a Read reply's data field.
type Sampler interface {
	// Sample returns the current reading as an opaque byte buffer. The
	// length is implementation-defined; the caller is responsible for
	// fitting it into the reply buffer's data field.
	Sample() ([]byte, error)
}

// Dev is a reference Sampler backed by a SPI-attached device, structured
// the same way max31855.Dev wraps a spi.Conn: configure the bus once in
// New, then perform a fixed-size transaction per Sample call.
type Dev struct {
	spi spi.Conn
	n   int
}

// New returns a Dev that reads n bytes per Sample call over s. It does not
// configure s; the caller passes a Conn already set up for the sensor (for
// example via spi.Port.Connect).
func New(s spi.Conn, n int) (*Dev, error) {
	if n <= 0 {
		return nil, fmt.Errorf("sensor: sample size must be positive, got %d", n)
	}
	return &Dev{spi: s, n: n}, nil
}

// Sample performs a read-only SPI transaction and returns the n bytes
// clocked back, exactly as max31855.Dev.Temperature reads a fixed-size
// reply before interpreting it — except Dev does not interpret anything.
func (d *Dev) Sample() ([]byte, error) {
	w := make([]byte, d.n)
	r := make([]byte, d.n)
	if err := d.spi.Tx(w, r); err != nil {
		return nil, fmt.Errorf("sensor: txn error: %v", err)
	}
	return r, nil
}
