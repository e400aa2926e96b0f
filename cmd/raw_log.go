// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/m16ctl/pkg/m16"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw bytes received from the modem",
	Long: `Continuously display bytes as they arrive, without framing or decoding.

Each read is shown with a timestamp, a printable rendering and a hex dump.
Useful for looking at what the modem actually sends, e.g. text received in
transparent mode or reports that do not decode.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("M16 - Raw Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	poll := time.NewTicker(appConfig.Timing.Poll)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-poll.C:
		}

		if !conn.Available() {
			continue
		}
		data, err := conn.ReadAvailable()
		if len(data) > 0 {
			fmt.Print(m16.FormatRaw(data, time.Now()))
		}
		if err != nil {
			fmt.Printf("Connection closed: %v\n", err)
			return nil
		}
	}
}
