// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package main

import (
	"golang.org/x/xerrors"

	"github.com/i2ckit/i2ckit/io/i2c/driver"
)

func openDevfs(dir string, bus int) (driver.Adapter, error) {
	return nil, xerrors.Errorf("bus %d: i2c-dev is only available on linux", bus)
}
