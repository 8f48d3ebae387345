// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The i2cprobe command loads the ADXL345 driver module, instantiates the
// configured boards and prints acceleration samples read from them.
//
// Usage:
//
//	i2cprobe [-config file] [-log backend] [-v level] [-samples n] [-interval d] [-sim]
//
// Without a configuration file it simulates one ADXL345 at 0x53 on bus 1.
// With -sim every configured bus is replaced by a simulated one carrying
// an ADXL345 at each configured board address. Failing to load the
// driver module exits with status 1.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"
	"golang.org/x/xerrors"

	"github.com/i2ckit/i2ckit/internal/config"
	"github.com/i2ckit/i2ckit/internal/logging"
	"github.com/i2ckit/i2ckit/io/i2c"
	"github.com/i2ckit/i2ckit/io/i2c/adxl345"
	"github.com/i2ckit/i2ckit/io/i2c/core"
	"github.com/i2ckit/i2ckit/io/i2c/driver"
	"github.com/i2ckit/i2ckit/io/i2c/i2ctest"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("i2cprobe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configFlag   = fs.String("config", "", "read configuration from `file`")
		logFlag      = fs.String("log", "", "log `backend`: "+fmt.Sprint(logging.Backends()))
		verboseFlag  = fs.Int("v", -1, "log verbosity `level`")
		samplesFlag  = fs.Int("samples", -1, "number of samples to read from each board")
		intervalFlag = fs.Duration("interval", -1, "pause between samples")
		simFlag      = fs.Bool("sim", false, "simulate every bus")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "usage: i2cprobe [flags]")
		fs.PrintDefaults()
		return 2
	}

	cfg := config.Default()
	if *configFlag != "" {
		var err error
		if cfg, err = config.Load(*configFlag); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	}
	if *logFlag != "" {
		cfg.Log.Backend = *logFlag
	}
	if *verboseFlag >= 0 {
		cfg.Log.Verbosity = *verboseFlag
	}
	if *samplesFlag >= 0 {
		cfg.Samples = *samplesFlag
	}
	if *intervalFlag >= 0 {
		cfg.Interval = *intervalFlag
	}
	if *simFlag {
		simulateAll(cfg)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	log, err := logging.New(logging.Options{
		Backend:   logging.Backend(cfg.Log.Backend),
		Verbosity: cfg.Log.Verbosity,
		Output:    stderr,
	})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	p := &prober{cfg: cfg, log: log.WithName("i2cprobe"), out: stdout}
	if err := p.run(ctx, core.NewHost(core.WithLogger(log))); err != nil {
		log.Error(err, "i2cprobe failed")
		return 1
	}
	return 0
}

// simulateAll replaces every adapter of cfg with a simulated bus holding
// an ADXL345 at each board address on it.
func simulateAll(cfg *config.Config) {
	for i := range cfg.Adapters {
		a := &cfg.Adapters[i]
		a.Devfs = ""
		a.Simulate = nil
		for _, b := range cfg.Boards {
			if b.Bus == a.Bus {
				a.Simulate = append(a.Simulate, b.Addr)
			}
		}
	}
}

type prober struct {
	cfg *config.Config
	log logr.Logger
	out io.Writer
}

func (p *prober) run(ctx context.Context, h *core.Host) (retErr error) {
	for _, ac := range p.cfg.Adapters {
		algo, err := p.openAdapter(ac)
		if err != nil {
			return err
		}
		a, err := h.AddAdapter(ac.Bus, ac.Name, algo)
		if err != nil {
			closeAdapter(algo)
			return xerrors.Errorf("add adapter %d: %w", ac.Bus, err)
		}
		defer func(algo driver.Adapter) {
			retErr = multierr.Append(retErr, h.DelAdapter(a))
			closeAdapter(algo)
		}(algo)
	}

	drv, err := adxl345.NewDriver(adxl345.WithIDCheck(), adxl345.WithProbeHook(func(d *adxl345.Device, s adxl345.Sample) {
		p.log.Info("probe sample", "device", d.Client().String(), "x", s.X, "y", s.Y, "z", s.Z)
	}))
	if err != nil {
		return xerrors.Errorf("load module: %w", err)
	}
	mod, err := i2c.LoadModule(i2c.NewRegistry(h), adxl345.Name, drv)
	if err != nil {
		return err
	}
	defer func() { retErr = multierr.Append(retErr, mod.Unload()) }()

	var devs []*adxl345.Device
	for _, b := range p.cfg.Boards {
		addr := int(b.Addr)
		if b.TenBit {
			addr = i2c.TenBit(addr)
		}
		c, err := mod.NewClient(i2c.BoardInfo{Bus: b.Bus, Addr: addr, Name: b.Name})
		if err != nil {
			return err
		}
		devs = append(devs, adxl345.New(c))
		p.log.V(1).Info("board instantiated", "device", c.String(), "bound", mod.Drivers()[0].Devices())
	}

	for _, d := range devs {
		if err := d.Start(); err != nil {
			return err
		}
	}
	for i := 0; i < p.cfg.Samples; i++ {
		if i > 0 && p.cfg.Interval > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.cfg.Interval):
			}
		}
		for _, d := range devs {
			s, err := d.ReadSample()
			if err != nil {
				return err
			}
			fmt.Fprintf(p.out, "%s\t%d\t%d\t%d\n", d.Client(), s.X, s.Y, s.Z)
		}
	}
	h.Shutdown()
	return nil
}

func (p *prober) openAdapter(ac config.Adapter) (driver.Adapter, error) {
	if ac.Devfs != "" {
		return openDevfs(ac.Devfs, ac.Bus)
	}
	tenbit := make(map[uint16]bool)
	for _, b := range p.cfg.Boards {
		if b.Bus == ac.Bus && b.TenBit {
			tenbit[b.Addr] = true
		}
	}
	bus := i2ctest.NewBus()
	for _, addr := range ac.Simulate {
		if tenbit[addr] {
			bus.AttachTenBit(addr, adxl345.NewSimulator())
			continue
		}
		bus.Attach(addr, adxl345.NewSimulator())
	}
	p.log.V(1).Info("simulated bus", "bus", ac.Bus, "devices", len(ac.Simulate))
	return bus, nil
}

func closeAdapter(a driver.Adapter) {
	if c, ok := a.(io.Closer); ok {
		c.Close()
	}
}
