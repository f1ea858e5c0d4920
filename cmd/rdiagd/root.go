// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "rdiagd",
	Short: "rdiagd caches per-project analysis context and serves diagnostics over MCP",
	Long: `rdiagd is a remote diagnostic computation coordinator.

It caches the expensive, per-project analysis context that static analysis
needs (loaded packages, type information, the resolved analyzer set) and
arbitrates concurrent diagnostic requests against it through a two-class
HIGH/NORMAL priority scheduler, so an interactive request never waits
behind a slow whole-project sweep.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the rdiagd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(buildVersion())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a rdiagd config file (default: ./rdiagd.yaml or /etc/rdiagd/rdiagd.yaml)")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the rdiagd command tree.
func Execute() error {
	return rootCmd.Execute()
}
