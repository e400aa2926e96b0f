// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package m16

import (
	"fmt"
	"strings"
	"time"
)

// FormatReport formats a report into a human-readable string
func FormatReport(r *Report, timestamp time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] DIAGNOSTIC_REPORT channel=%d level=%d mode=%s\n",
		timestamp.Format("15:04:05.000"), r.Channel, r.PowerLevel(), ModeFromBool(r.Diagnostic()))
	fmt.Fprintf(&b, "  Signal: %d  Noise: %d  BER: %d\n", r.SignalPower, r.NoisePower, r.BER)
	fmt.Fprintf(&b, "  Packets: valid=%d invalid=%d  TR block: %X\n", r.PacketValid, r.PacketInvalid, r.TRBlock[:])
	fmt.Fprintf(&b, "  TX complete: %s  TB valid: %s\n", formatBit(r.TXComplete), formatBit(r.TBValid))
	fmt.Fprintf(&b, "  Chip: 0x%04X  HW rev: %d  Git rev: %02X  Time: %d\n", r.ChipID, r.HWRev, r.GitRev[0], r.Time)

	return b.String()
}

func formatBit(v uint8) string {
	if v == 1 {
		return "yes"
	}
	return "no"
}

// FormatRaw hex-dumps bytes that did not form a valid report
func FormatRaw(data []byte, timestamp time.Time) string {
	result := fmt.Sprintf("[%s] RAW len=%d %q\n", timestamp.Format("15:04:05.000"), len(data), printable(data))
	result += "  Bytes: "
	for i, b := range data {
		if i > 0 && i%16 == 0 {
			result += "\n         "
		}
		result += fmt.Sprintf("%02X ", b)
	}
	return result + "\n"
}

// printable replaces non-printing bytes so received text stays readable
func printable(data []byte) string {
	out := make([]byte, len(data))
	for i, b := range data {
		if b < 0x20 || b > 0x7E {
			out[i] = '.'
		} else {
			out[i] = b
		}
	}
	return string(out)
}
