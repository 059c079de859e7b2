// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package gen2

import (
	"encoding/hex"
	"fmt"

	"github.com/BurntSushi/toml"
)

// SensorMode selects where sensor data is embedded in a reply, mirroring
// hw41_D41.c's SENSOR_DATA_IN_ID and SENSOR_DATA_IN_READ_COMMAND build
// variants (spec.md §12.3).
type SensorMode int

const (
	// SensorDataNone never samples the sensor collaborator.
	SensorDataNone SensorMode = iota
	// SensorDataInID embeds a sample in the EPC portion of the ackReply.
	// A fresh sample is taken on every ACK that emits an ackReply; there is
	// no periodic sampling state like the original's "every 10 timeouts"
	// STATE_READ_SENSOR pseudo-state.
	SensorDataInID
	// SensorDataInReadCommand samples synchronously inside the Read
	// handler, so every readReply carries a fresh sample.
	SensorDataInReadCommand
)

// Config is the Go-native analogue of hw41_D41.c's preprocessor feature
// flags (spec.md §6 "Build-time configuration"), loadable from TOML the
// same way cmd/mqttradio/main.go loads its Config.
type Config struct {
	EPC [12]byte `toml:"-"` // factory-programmed identifier
	PC  [2]byte  `toml:"-"` // factory-programmed PC word

	EPCHex string `toml:"epc"` // hex-encoded EPC, decoded into EPC by LoadConfig
	PCHex  string `toml:"pc"`  // hex-encoded PC word, decoded into PC by LoadConfig

	EnableSlots    bool `toml:"enable_slots"`
	EnableSessions bool `toml:"enable_sessions"`
	EnableReads    bool `toml:"enable_reads"`
	Miller4        bool `toml:"miller_4_encoding"`

	SensorMode     SensorMode `toml:"-"`
	SensorModeName string     `toml:"sensor_mode"` // "none", "id", "read_command"

	// ReplyQueryRestartsArbitrate preserves the WISP 4.1 low-voltage
	// deviation (spec.md §9 Open Question 1, §12.4): a Query received
	// while in Reply state resets to Arbitrate instead of remaining in
	// Reply. When set, an inter-character timeout in Reply state also moves
	// the tag to Arbitrate. Default true, matching the shipped firmware.
	ReplyQueryRestartsArbitrate bool `toml:"reply_query_restarts_arbitrate"`
}

// DefaultConfig returns the configuration the original WISP 4.1 firmware
// shipped with: all feature flags on, Miller-2, sensor data in the EPC.
func DefaultConfig() Config {
	return Config{
		EnableSlots:                 true,
		EnableSessions:              true,
		EnableReads:                 true,
		Miller4:                     false,
		SensorMode:                  SensorDataInID,
		ReplyQueryRestartsArbitrate: true,
	}
}

// LoadConfig reads a TOML configuration file, exactly as
// cmd/mqttradio/main.go calls toml.DecodeFile, then resolves the hex and
// name-keyed fields into their binary/enum equivalents.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.resolve(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) resolve() error {
	if c.EPCHex != "" {
		if err := decodeHexInto(c.EPC[:], c.EPCHex); err != nil {
			return err
		}
	}
	if c.PCHex != "" {
		if err := decodeHexInto(c.PC[:], c.PCHex); err != nil {
			return err
		}
	}
	switch c.SensorModeName {
	case "", "id":
		c.SensorMode = SensorDataInID
	case "read_command":
		c.SensorMode = SensorDataInReadCommand
	case "none":
		c.SensorMode = SensorDataNone
	}
	return nil
}

func decodeHexInto(dst []byte, s string) error {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("gen2: invalid hex %q: %v", s, err)
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("gen2: expected %d bytes, got %d in %q", len(dst), len(raw), s)
	}
	copy(dst, raw)
	return nil
}
