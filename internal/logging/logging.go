// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logging builds logr loggers backed by the common Go logging
// libraries, so the bus core can log through whichever one a program
// already uses.
package logging

import (
	"io"
	stdlog "log"
	"os"
	"sort"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"golang.org/x/xerrors"
)

// Backend names a logging library.
type Backend string

const (
	Std     Backend = "std"
	Zap     Backend = "zap"
	Logrus  Backend = "logrus"
	Zerolog Backend = "zerolog"
	GoKit   Backend = "gokit"
)

// Options selects and configures a backend.
type Options struct {
	Backend   Backend   // default Std
	Verbosity int       // highest V-level logged
	Output    io.Writer // default os.Stderr
}

type newSinkFunc func(w io.Writer) emitter

var backends = map[Backend]newSinkFunc{
	Zap:     newZap,
	Logrus:  newLogrus,
	Zerolog: newZerolog,
	GoKit:   newGoKit,
}

// Backends returns the known backend names, sorted.
func Backends() []string {
	names := []string{string(Std)}
	for b := range backends {
		names = append(names, string(b))
	}
	sort.Strings(names)
	return names
}

// New returns a logger for opts.
func New(opts Options) (logr.Logger, error) {
	w := opts.Output
	if w == nil {
		w = os.Stderr
	}
	if opts.Backend == "" || opts.Backend == Std {
		std := stdr.New(stdlog.New(w, "", stdlog.LstdFlags))
		return logr.New(stdSink{LogSink: std.GetSink(), verbosity: opts.Verbosity}), nil
	}
	mk, ok := backends[opts.Backend]
	if !ok {
		return logr.Discard(), xerrors.Errorf("logging: unknown backend %q", opts.Backend)
	}
	return logr.New(&sink{out: mk(w), verbosity: opts.Verbosity}), nil
}

// stdSink keeps the verbosity of a stdr logger per logger; stdr itself
// only has a process-wide level.
type stdSink struct {
	logr.LogSink
	verbosity int
}

// Init is a no-op: stdr.New has initialized the wrapped sink.
func (stdSink) Init(logr.RuntimeInfo) {}

func (s stdSink) Enabled(level int) bool { return level <= s.verbosity }

func (s stdSink) WithValues(keysAndValues ...any) logr.LogSink {
	return stdSink{LogSink: s.LogSink.WithValues(keysAndValues...), verbosity: s.verbosity}
}

func (s stdSink) WithName(name string) logr.LogSink {
	return stdSink{LogSink: s.LogSink.WithName(name), verbosity: s.verbosity}
}
