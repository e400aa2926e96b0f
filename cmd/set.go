// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/m16ctl/pkg/m16"
)

var (
	setChannel int
	setLevel   int
	setMode    string
	setVerify  bool
)

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Change channel, power level or mode",
	Long: `Send configuration commands to the modem.

Each command is the selector character twice followed by its value, with a
settle delay of one timing unit after every character. Settings are applied in
the order channel, power level, mode.

Modes:
  diagnostic   - the modem emits diagnostic reports and acknowledges packets
  transparent  - the modem passes data through
  toggle       - switch to the other mode

With --verify a report is requested afterwards and the reported configuration
is compared with what was asked for.`,
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)
	setCmd.Flags().IntVarP(&setChannel, "channel", "c", 0, "Channel (1-12)")
	setCmd.Flags().IntVarP(&setLevel, "level", "l", 0, "Power level (1-4)")
	setCmd.Flags().StringVarP(&setMode, "mode", "m", "", "Mode: diagnostic, transparent or toggle")
	setCmd.Flags().BoolVar(&setVerify, "verify", false, "Request a report afterwards and compare")
}

// validateSetArgs checks the requested settings before anything is written
func validateSetArgs(channel, level int, mode string) error {
	if channel == 0 && level == 0 && mode == "" {
		return fmt.Errorf("nothing to set: use --channel, --level or --mode")
	}
	if channel != 0 {
		if err := m16.ValidateChannel(channel); err != nil {
			return err
		}
	}
	if level != 0 {
		if err := m16.ValidatePowerLevel(level); err != nil {
			return err
		}
	}
	switch mode {
	case "", "diagnostic", "transparent", "toggle":
	default:
		return fmt.Errorf("unknown mode %q (use diagnostic, transparent or toggle)", mode)
	}
	return nil
}

func runSet(cmd *cobra.Command, args []string) error {
	if err := validateSetArgs(setChannel, setLevel, setMode); err != nil {
		return err
	}

	modem, connInfo, err := connectModem(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer modem.Close()

	fmt.Printf("M16 - Configure\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	if setChannel != 0 {
		if err := modem.SetChannel(setChannel); err != nil {
			return err
		}
		fmt.Printf("Channel set to %d\n", setChannel)
	}
	if setLevel != 0 {
		if err := modem.SetPowerLevel(setLevel); err != nil {
			return err
		}
		fmt.Printf("Power level set to %d\n", setLevel)
	}

	switch setMode {
	case "diagnostic", "transparent":
		if err := modem.SetDiagnosticMode(setMode == "diagnostic"); err != nil {
			return err
		}
		fmt.Printf("Mode set to %s\n", setMode)
	case "toggle":
		if err := modem.ToggleMode(); err != nil {
			return err
		}
		fmt.Printf("Mode toggled\n")
	}

	if !setVerify {
		return nil
	}

	expected := modem.Config()
	report, err := modem.RequestReport(appConfig.Timing.FrameWait)
	if report == nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	fmt.Println()
	fmt.Print(m16.FormatReport(report, time.Now()))

	got := modem.Config()
	if mismatches := compareConfig(expected, got); len(mismatches) > 0 {
		for _, m := range mismatches {
			fmt.Printf("  MISMATCH: %s\n", m)
		}
		return fmt.Errorf("modem did not take the requested configuration")
	}
	fmt.Printf("Verified: %s\n", got)
	return nil
}

// compareConfig lists the fields where the modem disagrees with the
// requested configuration. Unknown requested values are not compared.
func compareConfig(want, got m16.DeviceConfig) []string {
	var out []string
	if want.Channel != 0 && want.Channel != got.Channel {
		out = append(out, fmt.Sprintf("channel requested %d, reported %d", want.Channel, got.Channel))
	}
	if want.PowerLevel != 0 && want.PowerLevel != got.PowerLevel {
		out = append(out, fmt.Sprintf("power level requested %d, reported %d", want.PowerLevel, got.PowerLevel))
	}
	if want.Mode != m16.ModeUnknown && want.Mode != got.Mode {
		out = append(out, fmt.Sprintf("mode requested %s, reported %s", want.Mode, got.Mode))
	}
	return out
}
