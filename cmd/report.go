// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/m16ctl/pkg/m16"
)

var (
	reportOut  string
	reportWait time.Duration
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Request and decode a diagnostic report",
	Long: `Ask the modem for a diagnostic report, decode it and print it.

The driver's view of the modem configuration (channel, power level, mode) is
updated from the report. With --out the report is also saved to a file; the
format follows the extension (.json, .yaml/.yml, .cbor). Byte fields
(TR_BLOCK, GIT_REV) are written as hexadecimal text.`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "Save the report to this file")
	reportCmd.Flags().DurationVar(&reportWait, "wait", 0, "How long to wait for the report (default timing.frameWait)")
}

func runReport(cmd *cobra.Command, args []string) error {
	modem, connInfo, err := connectModem(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer modem.Close()

	fmt.Printf("M16 - Diagnostic Report\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	wait := reportWait
	if wait <= 0 {
		wait = appConfig.Timing.FrameWait
	}

	report, err := modem.RequestReport(wait)
	if report == nil {
		var de *m16.DecodeError
		switch {
		case errors.Is(err, m16.ErrNoData), errors.Is(err, m16.ErrPartialFrame):
			return fmt.Errorf("no valid report received within %v", wait)
		case errors.As(err, &de):
			return fmt.Errorf("received a malformed report: %w", err)
		}
		return err
	}

	fmt.Print(m16.FormatReport(report, time.Now()))
	if err != nil {
		fmt.Printf("  WARNING: %v\n", err)
	}
	fmt.Printf("\nBelieved configuration: %s\n", modem.Config())

	if reportOut != "" {
		if err := m16.SaveReport(reportOut, report); err != nil {
			return err
		}
		fmt.Printf("Report saved to %s\n", reportOut)
	}
	return nil
}
