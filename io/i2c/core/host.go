// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package core is the I2C bus core: it owns the numbered bus adapters,
// the client devices instantiated on them and the table of registered
// drivers, and it binds the two together by matching device names
// against each driver's ID table.
//
// The core talks to drivers through the fixed Driver descriptor, whose
// callbacks follow a negative-errno calling convention. Driver authors
// are expected to use package i2c, which builds descriptors from typed
// callbacks, rather than fill in a Driver by hand.
//
// Lifetimes follow the bus:
//
//   - An Adapter is valid from AddAdapter until DelAdapter.
//   - A Client is valid from NewClientDevice until UnregisterDevice (or
//     the removal of its adapter).
//   - A Driver is live from AddDriver until DelDriver returns. DelDriver
//     stops matching, waits for running probes, and calls Remove for
//     every device still bound before returning.
//
// For a single device the core never runs two driver callbacks at the
// same time. Distinct devices may be probed concurrently.
package core // import "github.com/i2ckit/i2ckit/io/i2c/core"

import (
	"context"
	"sort"
	"sync"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/i2ckit/i2ckit/io/i2c/core"

// DefaultProbeConcurrency bounds how many devices AddDriver probes at
// once.
const DefaultProbeConcurrency = 4

// Host is one instance of the bus core. A process normally has exactly
// one, created at start-up and shared by everything that touches the bus.
type Host struct {
	log        logr.Logger
	tracer     trace.Tracer
	probes     metric.Int64Counter
	transfers  metric.Int64Counter
	probeLimit int

	mu       sync.Mutex
	adapters map[int]*Adapter
	clients  []*Client
	drivers  []*registration // registration order
}

type options struct {
	log        logr.Logger
	tp         trace.TracerProvider
	mp         metric.MeterProvider
	probeLimit int
}

// An Option configures a Host.
type Option func(*options)

// WithLogger sets the logger used for binding and transfer diagnostics.
func WithLogger(l logr.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithTracerProvider sets the provider for probe/remove/shutdown spans.
// The global provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tp = tp }
}

// WithMeterProvider sets the provider for the probe and transfer
// counters. The global provider is used by default.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.mp = mp }
}

// WithProbeConcurrency bounds the number of devices probed in parallel
// when a driver is added. Values below 1 select the default.
func WithProbeConcurrency(n int) Option {
	return func(o *options) { o.probeLimit = n }
}

// NewHost returns an empty bus core.
func NewHost(opts ...Option) *Host {
	o := options{log: logr.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tp == nil {
		o.tp = otel.GetTracerProvider()
	}
	if o.mp == nil {
		o.mp = otel.GetMeterProvider()
	}
	if o.probeLimit < 1 {
		o.probeLimit = DefaultProbeConcurrency
	}
	h := &Host{
		log:        o.log.WithName("i2c-core"),
		tracer:     o.tp.Tracer(instrumentationName),
		probeLimit: o.probeLimit,
		adapters:   make(map[int]*Adapter),
	}
	meter := o.mp.Meter(instrumentationName)
	var err error
	h.probes, err = meter.Int64Counter("i2c.probes",
		metric.WithDescription("Driver probe attempts by result."))
	if err != nil {
		h.log.Error(err, "creating probe counter")
		h.probes = noop.Int64Counter{}
	}
	h.transfers, err = meter.Int64Counter("i2c.transfers",
		metric.WithDescription("Bus transactions by bus and result."))
	if err != nil {
		h.log.Error(err, "creating transfer counter")
		h.transfers = noop.Int64Counter{}
	}
	return h
}

// Logger returns the host's logger.
func (h *Host) Logger() logr.Logger { return h.log }

// Clients returns the live client devices in instantiation order.
func (h *Host) Clients() []*Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Client(nil), h.clients...)
}

// Shutdown calls the Shutdown callback of every bound device. Devices
// stay bound; Shutdown is meant for the system going down, not for
// unloading drivers.
func (h *Host) Shutdown() {
	for _, c := range h.Clients() {
		c.mu.Lock()
		if reg := c.bound.Load(); reg != nil && reg.drv.Shutdown != nil {
			_, span := h.startSpan("i2c.shutdown", reg.drv, c)
			reg.drv.Shutdown(c)
			span.End()
		}
		c.mu.Unlock()
	}
}

func (h *Host) startSpan(name string, d *Driver, c *Client) (context.Context, trace.Span) {
	return h.tracer.Start(context.Background(), name, trace.WithAttributes(
		attribute.String("i2c.driver", d.Name),
		attribute.String("i2c.device", c.String()),
		attribute.String("i2c.name", c.name),
	))
}

func failSpan(span trace.Span, errno int) {
	span.SetStatus(codes.Error, errnoString(errno))
	span.SetAttributes(attribute.Int("i2c.errno", errno))
}

func (h *Host) countProbe(ctx context.Context, d *Driver, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	h.probes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("driver", d.Name),
		attribute.String("result", result),
	))
}

func (h *Host) countTransfer(a *Adapter, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	h.transfers.Add(context.Background(), 1, metric.WithAttributes(
		attribute.Int("bus", a.nr),
		attribute.String("result", result),
	))
}

func sortClients(cs []*Client) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].adapter.nr != cs[j].adapter.nr {
			return cs[i].adapter.nr < cs[j].adapter.nr
		}
		return cs[i].addr < cs[j].addr
	})
}
