// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package gen2

import (
	"sync"
	"testing"
	"time"

	"github.com/tve/gen2tag/miller"
	"github.com/tve/gen2tag/pie"
	"github.com/tve/gen2tag/rt"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// recordingPin counts Out calls, standing in for a devices.BackscatterPin
// in tests that only care whether a reply was driven out, not its exact
// symbol timeline (that's miller's own job to test).
type recordingPin struct {
	mu     sync.Mutex
	toggle int
}

func (p *recordingPin) Halt() error      { return nil }
func (p *recordingPin) String() string   { return "recording-pin" }
func (p *recordingPin) Name() string     { return "recording-pin" }
func (p *recordingPin) Number() int      { return -1 }
func (p *recordingPin) Function() string { return "backscatter" }

func (p *recordingPin) Out(gpio.Level) error {
	p.mu.Lock()
	p.toggle++
	p.mu.Unlock()
	return nil
}

func (p *recordingPin) PWM(gpio.Duty, physic.Frequency) error { return nil }

func (p *recordingPin) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.toggle
}

// Test_Run_TimesOutIntoArbitrate drives a Tag's Run loop with a SimClock
// that never receives an edge; Run must apply onTimeout's Reply->Arbitrate
// deviation (spec.md §9 Open Question 1) and keep the loop alive until
// stop closes, never panicking on an idle clock.
func Test_Run_TimesOutIntoArbitrate(t *testing.T) {
	cfg := defaultTestConfig()
	tag := newTestTag(t, cfg)
	tag.state = StateReply

	clock := rt.NewSimClock()
	driver := miller.Driver{Pin: &recordingPin{}}
	stop := make(chan struct{})

	done := make(chan struct{})
	go func() {
		tag.Run(clock, driver, stop)
		close(done)
	}()

	clock.Advance(pie.InterCharacterTimeout)
	time.Sleep(20 * time.Millisecond)
	close(stop)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after stop was closed")
	}

	if tag.State() != StateArbitrate {
		t.Fatalf("state after timeout = %v, want Arbitrate", tag.State())
	}
}

// Test_Run_DeliversQueryReply feeds a full Query command's worth of edges
// through a SimClock (delimiter, RTcal, TRcal, then 22 data bits: a 1 and
// 21 zeros) and
// checks that Run backscatters a reply, exercising the full
// clock->pie.Decoder->Dispatch->miller.Driver pipeline spec.md §5 describes
// end to end.
func Test_Run_DeliversQueryReply(t *testing.T) {
	cfg := defaultTestConfig()
	tag := newTestTag(t, cfg)

	clock := rt.NewSimClock()
	pin := &recordingPin{}
	driver := miller.Driver{Pin: pin}
	stop := make(chan struct{})

	done := make(chan struct{})
	go func() {
		tag.Run(clock, driver, stop)
		close(done)
	}()

	// delimiter, RTcal (0x60), TRcal (wider than RTcal), then 22 data bits:
	// a single wide pulse (bit=1) followed by 21 narrow pulses (bit=0),
	// giving cmd[0]=0x80 — the leading nibble a Query requires.
	edges := []rt.Ticks{0x20, 0x60, 0xA0, 0x40}
	for i := 0; i < 21; i++ {
		edges = append(edges, 0x10)
	}
	for _, interval := range edges {
		clock.Advance(interval)
		clock.Edge()
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after stop was closed")
	}

	if pin.count() == 0 {
		t.Fatalf("Run never drove the backscatter pin, want a queryReply emission")
	}
}
