// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command rdiagd runs the diagnostic computation coordinator as a
// standalone MCP server.
package main

import "log"

func main() {
	if err := Execute(); err != nil {
		log.Fatal(err)
	}
}
