// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/go-logr/stdr"
	"github.com/google/go-cmp/cmp"
)

func TestBackends(t *testing.T) {
	want := []string{"gokit", "logrus", "std", "zap", "zerolog"}
	if diff := cmp.Diff(want, Backends()); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
}

func TestUnknownBackend(t *testing.T) {
	if _, err := New(Options{Backend: "klog"}); err == nil {
		t.Fatal("got nil error for unknown backend")
	}
}

func TestOutput(t *testing.T) {
	for _, b := range Backends() {
		t.Run(b, func(t *testing.T) {
			var buf bytes.Buffer
			log, err := New(Options{Backend: Backend(b), Output: &buf})
			if err != nil {
				t.Fatal(err)
			}
			log = log.WithName("i2c").WithValues("driver", "adxl345")
			log.Info("device bound", "device", "1-0053")
			log.V(1).Info("hidden chatter")
			log.Error(errors.New("remote I/O error"), "probe failed")

			out := buf.String()
			for _, want := range []string{"device bound", "1-0053", "adxl345", "probe failed", "remote I/O error"} {
				if !strings.Contains(out, want) {
					t.Errorf("output lacks %q:\n%s", want, out)
				}
			}
			if strings.Contains(out, "hidden chatter") {
				t.Errorf("V(1) message logged at verbosity 0:\n%s", out)
			}
		})
	}
}

func TestVerbosity(t *testing.T) {
	for _, b := range []Backend{Std, Zap, Logrus, Zerolog, GoKit} {
		var buf bytes.Buffer
		log, err := New(Options{Backend: b, Verbosity: 1, Output: &buf})
		if err != nil {
			t.Fatal(err)
		}
		log.V(1).Info("binding chatter")
		log.V(2).Info("transfer chatter")
		out := buf.String()
		if !strings.Contains(out, "binding chatter") {
			t.Errorf("%s: V(1) message missing:\n%s", b, out)
		}
		if strings.Contains(out, "transfer chatter") {
			t.Errorf("%s: V(2) message logged at verbosity 1:\n%s", b, out)
		}
	}
}

func TestOddValues(t *testing.T) {
	s := &sink{}
	got := s.merge([]any{"key"})
	if diff := cmp.Diff([]any{"key", "(MISSING)"}, got); diff != "" {
		t.Errorf("mismatch (-want, +got):\n%s", diff)
	}
}

func TestStdVerbosityIsPerLogger(t *testing.T) {
	prev := stdr.SetVerbosity(3)
	defer stdr.SetVerbosity(prev)

	var loud, quiet bytes.Buffer
	l1, err := New(Options{Backend: Std, Verbosity: 1, Output: &loud})
	if err != nil {
		t.Fatal(err)
	}
	l2, err := New(Options{Backend: Std, Verbosity: 0, Output: &quiet})
	if err != nil {
		t.Fatal(err)
	}
	l1.WithName("a").V(1).Info("binding chatter")
	l2.WithValues("k", "v").V(1).Info("binding chatter")
	if !strings.Contains(loud.String(), "binding chatter") {
		t.Errorf("verbosity 1 logger dropped V(1):\n%s", loud.String())
	}
	if quiet.Len() != 0 {
		t.Errorf("verbosity 0 logger wrote V(1):\n%s", quiet.String())
	}
	if got := stdr.SetVerbosity(prev); got != 3 {
		t.Errorf("process-wide stdr verbosity changed to %d by New", got)
	}
}
