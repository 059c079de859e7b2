// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Command gen2tag-sim loads a gen2.Config the same way cmd/mqttradio loads
// its Config (flag + toml), binds the three hardware pins a tag core needs
// (spec.md §6), and drives a gen2.Tag's receive/reply loop either against
// real periph.io-backed pins or, with -sim, against a synthetic reader
// stimulus so an inventory round can be exercised without hardware, the
// way cmd/sx1231-test exercises a radio driver end to end.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tve/gen2tag/devices"
	"github.com/tve/gen2tag/gen2"
	"github.com/tve/gen2tag/miller"
	"github.com/tve/gen2tag/rt"
	"github.com/tve/gen2tag/sensor"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

func main() {
	configPath := flag.String("config", "", "path to a gen2tag TOML config file")
	rfPin := flag.String("rf-pin", "", "GPIO name of the RF envelope-detector input")
	bsPin := flag.String("bs-pin", "", "GPIO name of the backscatter load-switch output")
	pgPin := flag.String("pg-pin", "", "GPIO name of the power-good input")
	sensorBus := flag.String("sensor-spi", "", "SPI bus name for the sensor collaborator, empty to disable")
	sim := flag.Bool("sim", false, "drive the tag with a synthetic reader stimulus instead of real pins")
	flag.Parse()

	if err := run(*configPath, *rfPin, *bsPin, *pgPin, *sensorBus, *sim); err != nil {
		log.Fatal(err)
	}
}

func run(configPath, rfPin, bsPin, pgPin, sensorBus string, sim bool) error {
	cfg := gen2.DefaultConfig()
	if configPath != "" {
		loaded, err := gen2.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %v", err)
		}
		cfg = loaded
	}

	if sim {
		return runSim(cfg)
	}
	return runHardware(cfg, rfPin, bsPin, pgPin, sensorBus)
}

// runHardware wires a gen2.Tag to real periph.io pins, exactly as
// cmd/sx1231-test's run() binds gpio.ByName pins before constructing a
// radio driver.
func runHardware(cfg gen2.Config, rfPin, bsPin, pgPin, sensorBus string) error {
	if _, err := host.Init(); err != nil {
		return err
	}

	rf := gpioreg.ByName(rfPin)
	if rf == nil {
		return fmt.Errorf("cannot open RF pin %s", rfPin)
	}
	bs := gpioreg.ByName(bsPin)
	if bs == nil {
		return fmt.Errorf("cannot open backscatter pin %s", bsPin)
	}
	pg := gpioreg.ByName(pgPin)
	if pg == nil {
		return fmt.Errorf("cannot open power-good pin %s", pgPin)
	}

	pins := &devices.Pins{RFEdge: rf, Backscatter: bs, PowerGoodPin: pg}

	var samp sensor.Sampler
	if sensorBus == "" {
		cfg.SensorMode = gen2.SensorDataNone
	} else {
		port, err := spireg.Open(sensorBus)
		if err != nil {
			return fmt.Errorf("opening sensor SPI bus: %v", err)
		}
		conn, err := port.Connect(4*physic.MegaHertz, 0, 8)
		if err != nil {
			return fmt.Errorf("configuring sensor SPI conn: %v", err)
		}
		samp, err = sensor.New(conn, 4)
		if err != nil {
			return err
		}
	}

	tag, err := gen2.New(cfg, pins, samp)
	if err != nil {
		return err
	}
	tag.SetLogger(log.Printf)

	clock, err := rt.NewHostClock(rf)
	if err != nil {
		return err
	}
	driver := miller.Driver{Pin: bs}

	log.Printf("gen2tag-sim: running against real hardware, EPC=%x", cfg.EPC)
	tag.Run(clock, driver, nil)
	return nil
}

// runSim drives a gen2.Tag with rt.SimClock and a log-only backscatter
// driver, giving a smoke test of one Query/slot-0 exchange with no hardware
// attached — an exerciser for the ambient stack, not a replacement for the
// package-level protocol tests. No sensor is attached, so sensor sampling is
// turned off.
func runSim(cfg gen2.Config) error {
	cfg.SensorMode = gen2.SensorDataNone
	tag, err := gen2.New(cfg, nil, nil)
	if err != nil {
		return err
	}
	tag.SetLogger(log.Printf)

	clock := rt.NewSimClock()
	driver := miller.Driver{Pin: &loggingPin{}}
	stop := make(chan struct{})

	go tag.Run(clock, driver, stop)

	// Synthetic reader stimulus: a delimiter, RTcal, TRcal, then a minimal
	// 22-bit Query (0x80 leading nibble) asking for Q=0 so the tag
	// immediately backscatters in slot 0, per spec.md §8 scenario 3. The
	// first data bit is a wide pulse (decodes to 1, against the pivot set
	// by RTcal below); the rest are narrow (decode to 0), giving cmd[0] =
	// 0x80 — the leading nibble Query's prefix mask requires.
	feed := []rt.Ticks{0x20, 0x60, 0xA0, 0x40}
	for i := 0; i < 21; i++ {
		feed = append(feed, 0x10)
	}
	for _, interval := range feed {
		clock.Advance(interval)
		clock.Edge()
		time.Sleep(time.Millisecond)
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)

	for _, line := range tag.Trace() {
		fmt.Println(line)
	}
	fmt.Fprintln(os.Stderr, "gen2tag-sim: sim run complete, state =", tag.State())
	return nil
}

// loggingPin is a no-hardware devices.BackscatterPin stand-in for -sim: it
// accepts and discards the levels the modulator drives.
type loggingPin struct{}

func (loggingPin) Halt() error                           { return nil }
func (loggingPin) Name() string                          { return "sim-backscatter" }
func (loggingPin) String() string                        { return "sim-backscatter" }
func (loggingPin) Number() int                           { return -1 }
func (loggingPin) Function() string                      { return "backscatter" }
func (loggingPin) Out(gpio.Level) error                  { return nil }
func (loggingPin) PWM(gpio.Duty, physic.Frequency) error { return errSimPWM }

var errSimPWM = fmt.Errorf("gen2tag-sim: PWM not supported on sim pin")
