// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/m16ctl/internal/link"
	"github.com/Thermoquad/m16ctl/pkg/m16"
)

var discoveryTimeout int

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Find serial ports with an M16 modem attached",
	Long: `Probe every serial port on the system for an M16 modem.

Each port is opened at the configured baud rate, sent a report request and
given --timeout seconds to answer with a valid diagnostic report. The modem's
configuration is not changed.

Examples:
  m16ctl discovery
  m16ctl discovery --baud 9600 --timeout 3

Exit codes:
  0 - Discovery successful (at least one modem found)
  1 - Discovery failed (no modem answered)
  2 - Ports could not be enumerated`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().IntVar(&discoveryTimeout, "timeout", 3, "Seconds to wait for a report on each port")
}

type discoveredModem struct {
	port   string
	report *m16.Report
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	ports, err := link.ListPorts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Port enumeration error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("M16 - Modem Discovery\n")
	fmt.Printf("Ports: %d\n", len(ports))
	fmt.Printf("Baud: %d\n", appConfig.Serial.Baud)
	fmt.Printf("Timeout: %d seconds per port\n\n", discoveryTimeout)

	found := make([]discoveredModem, 0)
	for _, port := range ports {
		fmt.Printf("Probing %s... ", port)
		report, err := probePort(port, time.Duration(discoveryTimeout)*time.Second)
		if err != nil {
			fmt.Printf("no modem (%v)\n", err)
			continue
		}
		fmt.Printf("found\n")
		found = append(found, discoveredModem{port: port, report: report})
	}

	fmt.Printf("\n")
	if len(found) == 0 {
		fmt.Printf("FAILED: No modems found\n")
		os.Exit(1)
	}

	fmt.Printf("Found %d modem(s):\n", len(found))
	for _, d := range found {
		fmt.Printf("  %s: chip 0x%04X, hw rev %d, channel %d, level %d, %s mode\n",
			d.port, d.report.ChipID, d.report.HWRev, d.report.Channel,
			d.report.PowerLevel(), m16.ModeFromBool(d.report.Diagnostic()))
	}
	return nil
}

// probePort asks the modem on port for one report
func probePort(port string, timeout time.Duration) (*m16.Report, error) {
	conn, err := link.OpenSerial(port, appConfig.Serial.Baud, link.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	modem := m16.Open(conn,
		m16.WithLogger(logger.With(zap.String("port", port))),
		m16.WithTiming(appConfig.Timing.Timing()),
	)
	defer modem.Close()

	return modem.RequestReport(timeout)
}
