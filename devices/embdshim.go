// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package devices

// This file is a hack to be able to back the three tag pins with embd on
// boards periph.io/x/host doesn't support yet, mirroring the original
// shim's "switch between embd and some other library" rationale.

import (
	"time"

	"github.com/kidoman/embd"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// NewEmbdPin wraps an embd digital pin (looked up by name, e.g. "GPIO2") as
// a gpio.PinIO usable for any of RFEdgePin, BackscatterPin or PowerGoodPin.
func NewEmbdPin(name string) (gpio.PinIO, error) {
	p, err := embd.NewDigitalPin(name)
	if err != nil {
		return nil, err
	}
	return &embdPin{p: p, edge: make(chan struct{}, 1)}, nil
}

type embdPin struct {
	p    embd.DigitalPin
	dir  embd.Direction
	edge chan struct{}
}

func (g *embdPin) Name() string      { return "embd" }
func (g *embdPin) String() string    { return "embd" }
func (g *embdPin) Number() int       { return -1 }
func (g *embdPin) Function() string  { return "" }
func (g *embdPin) Halt() error       { return nil }

func (g *embdPin) In(pull gpio.Pull, edge gpio.Edge) error {
	if err := g.p.SetDirection(embd.In); err != nil {
		return err
	}
	g.dir = embd.In
	if edge != gpio.NoEdge {
		var e embd.Edge
		switch edge {
		case gpio.RisingEdge:
			e = embd.EdgeRising
		case gpio.FallingEdge:
			e = embd.EdgeFalling
		default:
			e = embd.EdgeBoth
		}
		return g.p.Watch(e, g.edgeCB)
	}
	return nil
}

func (g *embdPin) Read() gpio.Level {
	v, _ := g.p.Read()
	return v != 0
}

func (g *embdPin) WaitForEdge(timeout time.Duration) bool {
	to := time.After(timeout)
	select {
	case <-g.edge:
		return true
	case <-to:
		return false
	}
}

func (g *embdPin) Out(level gpio.Level) error {
	if g.dir != embd.Out {
		if err := g.p.SetDirection(embd.Out); err != nil {
			return err
		}
		g.dir = embd.Out
	}
	v := 0
	if level {
		v = 1
	}
	return g.p.Write(v)
}

func (g *embdPin) PWM(gpio.Duty, physic.Frequency) error {
	return errNotSupported
}

func (g *embdPin) Pull() gpio.Pull { return gpio.PullNoChange }

func (g *embdPin) DefaultPull() gpio.Pull { return gpio.PullNoChange }

func (g *embdPin) edgeCB(embd.DigitalPin) {
	select {
	case g.edge <- struct{}{}:
	default:
	}
}

var errNotSupported = pwmNotSupported{}

type pwmNotSupported struct{}

func (pwmNotSupported) Error() string { return "devices: embd pin does not support PWM" }
