// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logging

import (
	"github.com/go-logr/logr"
)

// emitter writes one record to a logging library.
type emitter interface {
	info(level int, name, msg string, kv []any)
	error(err error, name, msg string, kv []any)
}

// sink is the logr.LogSink shared by the library backends. It keeps the
// logger name and accumulated values and hands complete records to out.
type sink struct {
	out       emitter
	name      string
	values    []any
	verbosity int
}

var _ logr.LogSink = (*sink)(nil)

func (*sink) Init(logr.RuntimeInfo) {}

func (s *sink) Enabled(level int) bool { return level <= s.verbosity }

func (s *sink) Info(level int, msg string, keysAndValues ...any) {
	s.out.info(level, s.name, msg, s.merge(keysAndValues))
}

func (s *sink) Error(err error, msg string, keysAndValues ...any) {
	s.out.error(err, s.name, msg, s.merge(keysAndValues))
}

func (s *sink) WithValues(keysAndValues ...any) logr.LogSink {
	s2 := *s
	s2.values = s.merge(keysAndValues)
	return &s2
}

func (s *sink) WithName(name string) logr.LogSink {
	s2 := *s
	if s.name == "" {
		s2.name = name
	} else {
		s2.name = s.name + "/" + name
	}
	return &s2
}

// merge returns the sink's values followed by kv, padded to an even
// length.
func (s *sink) merge(kv []any) []any {
	all := make([]any, 0, len(s.values)+len(kv)+1)
	all = append(all, s.values...)
	all = append(all, kv...)
	if len(all)%2 != 0 {
		all = append(all, "(MISSING)")
	}
	return all
}

// pairs calls fn with every key/value pair of kv. Keys that are not
// strings are skipped.
func pairs(kv []any, fn func(key string, value any)) {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			fn(k, kv[i+1])
		}
	}
}
