// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import "runtime/debug"

// rdiagVersion overrides the reported version when set by the linker
// (-ldflags "-X main.rdiagVersion=...").
var rdiagVersion = ""

// buildVersion reports the rdiagd version: rdiagVersion if the linker set
// it, otherwise the version recorded in the build's module info.
func buildVersion() string {
	if rdiagVersion != "" {
		return rdiagVersion
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(unknown)"
}
