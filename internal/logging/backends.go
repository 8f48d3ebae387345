// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logging

import (
	"io"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type zapEmitter struct {
	l *zap.Logger
}

func newZap(w io.Writer) emitter {
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return &zapEmitter{l: zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.DebugLevel))}
}

func zapFields(kv []any) []zap.Field {
	fs := make([]zap.Field, 0, len(kv)/2)
	pairs(kv, func(k string, v any) { fs = append(fs, zap.Any(k, v)) })
	return fs
}

func (z *zapEmitter) info(lvl int, name, msg string, kv []any) {
	l := z.l.Named(name)
	if lvl > 0 {
		l.Debug(msg, zapFields(kv)...)
		return
	}
	l.Info(msg, zapFields(kv)...)
}

func (z *zapEmitter) error(err error, name, msg string, kv []any) {
	z.l.Named(name).Error(msg, append(zapFields(kv), zap.Error(err))...)
}

type logrusEmitter struct {
	l *logrus.Logger
}

func newLogrus(w io.Writer) emitter {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true})
	return &logrusEmitter{l: l}
}

func (e *logrusEmitter) entry(name string, kv []any) *logrus.Entry {
	fields := logrus.Fields{}
	if name != "" {
		fields["logger"] = name
	}
	pairs(kv, func(k string, v any) { fields[k] = v })
	return e.l.WithFields(fields)
}

func (e *logrusEmitter) info(lvl int, name, msg string, kv []any) {
	if lvl > 0 {
		e.entry(name, kv).Debug(msg)
		return
	}
	e.entry(name, kv).Info(msg)
}

func (e *logrusEmitter) error(err error, name, msg string, kv []any) {
	e.entry(name, kv).WithError(err).Error(msg)
}

type zerologEmitter struct {
	l zerolog.Logger
}

func newZerolog(w io.Writer) emitter {
	return &zerologEmitter{l: zerolog.New(w).With().Timestamp().Logger()}
}

func (z *zerologEmitter) send(ev *zerolog.Event, name, msg string, kv []any) {
	if name != "" {
		ev = ev.Str("logger", name)
	}
	pairs(kv, func(k string, v any) { ev = ev.Interface(k, v) })
	ev.Msg(msg)
}

func (z *zerologEmitter) info(lvl int, name, msg string, kv []any) {
	if lvl > 0 {
		z.send(z.l.Debug(), name, msg, kv)
		return
	}
	z.send(z.l.Info(), name, msg, kv)
}

func (z *zerologEmitter) error(err error, name, msg string, kv []any) {
	z.send(z.l.Error().Err(err), name, msg, kv)
}

type kitEmitter struct {
	l kitlog.Logger
}

func newGoKit(w io.Writer) emitter {
	return &kitEmitter{l: kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(w))}
}

func (k *kitEmitter) log(l kitlog.Logger, name, msg string, kv []any) {
	keyvals := make([]any, 0, len(kv)+4)
	if name != "" {
		keyvals = append(keyvals, "logger", name)
	}
	keyvals = append(keyvals, "msg", msg)
	keyvals = append(keyvals, kv...)
	l.Log(keyvals...)
}

func (k *kitEmitter) info(lvl int, name, msg string, kv []any) {
	if lvl > 0 {
		k.log(level.Debug(k.l), name, msg, kv)
		return
	}
	k.log(level.Info(k.l), name, msg, kv)
}

func (k *kitEmitter) error(err error, name, msg string, kv []any) {
	k.log(level.Error(k.l), name, msg, append(kv, "err", err))
}
