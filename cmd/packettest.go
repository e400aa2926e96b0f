// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/m16ctl/pkg/m16"
)

var (
	packetTestTimeout int
	packetTestRequest bool
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid diagnostic report",
	Long: `Wait for a valid M16 diagnostic report on the connection until timeout.

This command connects to a serial port or WebSocket bridge, asks the modem for
a report (unless --request=false) and waits for a complete 18-byte frame that
decodes cleanly. Bytes that do not form a frame are ignored.

Exit codes:
  0 - Report received before timeout
  1 - Timeout reached without receiving a valid report
  2 - Connection error

Useful for checking wiring and baud rate before a dive.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a report")
	packetTestCmd.Flags().BoolVar(&packetTestRequest, "request", true, "Ask the modem for a report first")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	modem, connInfo, err := connectModem(cmd.Context(), false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer modem.Close()

	fmt.Printf("M16 - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid diagnostic report...\n\n")

	if packetTestRequest {
		if err := modem.RequestReportCommand(); err != nil {
			fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
			os.Exit(2)
		}
	}

	deadline := time.Now().Add(time.Duration(packetTestTimeout) * time.Second)
	for time.Now().Before(deadline) {
		wait := time.Until(deadline)
		if wait > appConfig.Timing.FrameWait {
			wait = appConfig.Timing.FrameWait
		}

		report, _, err := modem.ReadReport(wait)
		if report != nil {
			if rejected := modem.Statistics().Snapshot().DecodeErrors(); rejected > 0 {
				fmt.Printf("(skipped %d malformed frames)\n", rejected)
			}
			fmt.Printf("SUCCESS: Received valid report\n")
			fmt.Printf("  Channel: %d\n", report.Channel)
			fmt.Printf("  Power level: %d\n", report.PowerLevel())
			fmt.Printf("  Mode: %s\n", m16.ModeFromBool(report.Diagnostic()))
			fmt.Printf("  Chip ID: 0x%04X\n", report.ChipID)
			os.Exit(0)
		}
		if m16.IsTransportError(err) {
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
			os.Exit(2)
		}
	}

	fmt.Fprintf(os.Stderr, "TIMEOUT: No valid report received within %d seconds\n", packetTestTimeout)
	os.Exit(1)
	return nil
}
