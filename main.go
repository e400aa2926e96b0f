// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// m16ctl - Water Linked M16 Modem Controller
//
// A CLI tool for configuring an M16 acoustic modem, decoding its diagnostic
// reports and sending text over the acoustic link.

package main

import (
	"os"

	"github.com/Thermoquad/m16ctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
