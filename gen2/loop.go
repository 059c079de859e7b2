// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package gen2

import (
	"github.com/tve/gen2tag/miller"
	"github.com/tve/gen2tag/pie"
	"github.com/tve/gen2tag/rt"
)

// Timeout applies the inter-character-timeout handling spec.md §4.D/§4.G
// describe whenever the decoder's deadline elapses with no new edge. It is
// the exported counterpart of onTimeout, callable from a receive loop that
// lives outside the package (cmd/gen2tag-sim, or any other future driver).
func (t *Tag) Timeout() {
	t.onTimeout()
}

// replyEncoding picks the line code and half-period the modulator should
// use for the reply currently being built. The line code comes from this
// Tag's Miller4 config flag alone (Miller-4 when set, Miller-2 otherwise);
// the half-period is the measured TRcal divided by 8. The Query's M and DR
// fields are not consulted, so FM0 is never selected here.
func (t *Tag) replyEncoding(trCal rt.Ticks) miller.Encoder {
	enc := miller.Miller2
	if t.cfg.Miller4 {
		enc = miller.Miller4
	}
	half := trCal / 8
	if half == 0 {
		half = 1
	}
	return miller.Encoder{Encoding: enc, HalfPeriod: half}
}

// Run drives one continuous receive/reply cycle against a real or
// simulated Clock: arm edge capture, feed each measured interval to the
// PIE decoder, dispatch a complete command as soon as one is recognized,
// and backscatter any resulting reply through driver before re-arming.
// It loops until stop is closed, mirroring sx1231.Radio.worker's
// WaitForEdge-driven interrupt loop (spec.md §5's "single logical thread
// of control... cooperating with interrupt sources").
func (t *Tag) Run(clock rt.Clock, driver miller.Driver, stop <-chan struct{}) {
	if err := rt.LockRealtime(rt.SchedFIFO, 50); err != nil {
		t.dbg.push("LockRealtime failed, running unprioritized: %v", err)
	}

	dec := &pie.Decoder{}
	clock.InstallCaptureOnEdge(rt.FallingEdge)
	clock.Reset()

	for {
		select {
		case <-stop:
			return
		default:
		}

		timedOut := clock.WaitUntil(pie.InterCharacterTimeout)
		if timedOut {
			t.Timeout()
			dec.Reset()
			clock.Reset()
			continue
		}

		dec.Interval(clock.LastInterval())
		if dec.DelimiterNotFound {
			dec.Reset()
			continue
		}

		// Only hand a command to Dispatch once recognize (spec.md §4.F)
		// reports it complete; an incomplete prefix just keeps accumulating.
		// recognize(cmd, 0) trivially reports "complete" (there is nothing
		// to recognize yet) so that case is excluded here — it only fires
		// while the decoder is still inside the delimiter/RTcal/TRcal
		// framing steps, before any data bit has landed.
		// Per spec.md §3's "command buffer is reset at each delimiter", the
		// decoder must start over once a command has been recognized, win
		// or lose, so a later command's bits never append onto this one's.
		if _, complete := recognize(dec.Cmd[:], dec.Bits); dec.Bits > 0 && complete {
			reply, emitted := t.Dispatch(dec.Cmd[:], dec.Bits)
			if emitted {
				enc := t.replyEncoding(dec.TRcal())
				timeline := enc.Encode(false, reply, len(reply)*8)
				if err := driver.Send(timeline); err != nil {
					t.dbg.push("reply send error: %v", err)
				}
			}
			dec.Reset()
		}
	}
}
