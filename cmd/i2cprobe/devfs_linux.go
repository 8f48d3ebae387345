// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"github.com/i2ckit/i2ckit/io/i2c"
	"github.com/i2ckit/i2ckit/io/i2c/driver"
)

func openDevfs(dir string, bus int) (driver.Adapter, error) {
	return (&i2c.Devfs{Dir: dir}).Open(bus)
}
