// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config reads the i2cprobe configuration file.
package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"

	"github.com/i2ckit/i2ckit/internal/logging"
)

// Config is the i2cprobe configuration.
//
//	log:
//	  backend: zap
//	  verbosity: 1
//	adapters:
//	  - bus: 1
//	    name: sim-1
//	    simulate: [0x53]
//	boards:
//	  - {bus: 1, addr: 0x53, name: adxl345}
//	samples: 10
//	interval: 100ms
type Config struct {
	Log      Log           `yaml:"log"`
	Adapters []Adapter     `yaml:"adapters"`
	Boards   []Board       `yaml:"boards"`
	Samples  int           `yaml:"samples"`
	Interval time.Duration `yaml:"interval"`
}

// Log configures logging.
type Log struct {
	Backend   string `yaml:"backend"`
	Verbosity int    `yaml:"verbosity"`
}

// Adapter is a bus controller to register. It is either opened through
// the i2c-dev interface or simulated.
type Adapter struct {
	Bus  int    `yaml:"bus"`
	Name string `yaml:"name"`

	// Devfs opens /dev/i2c-<Bus> under the given directory.
	Devfs string `yaml:"devfs,omitempty"`

	// Simulate attaches a simulated ADXL345 at each listed address. An
	// address is taken as 10-bit when a 10-bit board on the bus uses it.
	Simulate []uint16 `yaml:"simulate,omitempty"`
}

// Board is a device to instantiate.
type Board struct {
	Bus    int    `yaml:"bus"`
	Addr   uint16 `yaml:"addr"`
	Name   string `yaml:"name"`
	TenBit bool   `yaml:"tenbit,omitempty"`
}

// Default returns the configuration used without a file: one simulated
// ADXL345 at 0x53 on bus 1.
func Default() *Config {
	return &Config{
		Log:      Log{Backend: string(logging.Std)},
		Adapters: []Adapter{{Bus: 1, Name: "sim-1", Simulate: []uint16{0x53}}},
		Boards:   []Board{{Bus: 1, Addr: 0x53, Name: "adxl345"}},
		Samples:  5,
		Interval: 100 * time.Millisecond,
	}
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, xerrors.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a configuration. Unknown fields are
// errors. Fields left out keep their Default values, except for lists,
// which replace the defaults when present.
func Parse(data []byte) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return nil, xerrors.Errorf("parse: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks c for values the loader cannot use.
func (c *Config) Validate() error {
	known := false
	for _, b := range logging.Backends() {
		if c.Log.Backend == b {
			known = true
		}
	}
	if !known {
		return xerrors.Errorf("unknown log backend %q", c.Log.Backend)
	}
	if c.Samples < 0 {
		return xerrors.Errorf("negative sample count %d", c.Samples)
	}
	if c.Interval < 0 {
		return xerrors.Errorf("negative interval %v", c.Interval)
	}
	buses := make(map[int]bool)
	for _, a := range c.Adapters {
		if a.Bus < 0 {
			return xerrors.Errorf("adapter %q: negative bus number", a.Name)
		}
		if buses[a.Bus] {
			return xerrors.Errorf("adapter %q: bus %d listed twice", a.Name, a.Bus)
		}
		if a.Devfs != "" && len(a.Simulate) > 0 {
			return xerrors.Errorf("adapter %q: devfs and simulate are exclusive", a.Name)
		}
		buses[a.Bus] = true
	}
	for _, b := range c.Boards {
		if b.Name == "" {
			return xerrors.Errorf("board at %d-%04x has no name", b.Bus, b.Addr)
		}
		if !buses[b.Bus] {
			return xerrors.Errorf("board %q: no adapter for bus %d", b.Name, b.Bus)
		}
	}
	return nil
}
