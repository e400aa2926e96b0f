// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var sendChunkTimeout time.Duration

var sendCmd = &cobra.Command{
	Use:   "send <text>...",
	Short: "Transmit text as 2-byte acoustic packets",
	Long: `Send ASCII text through the modem, two characters per packet.

Odd-length text is padded with one space. In transparent mode every packet is
followed by a fixed dwell of two timing units. In diagnostic mode the driver
waits up to --chunk-timeout for a report with TX_COMPLETE set before sending
the next packet; a missing acknowledgement is reported and sending continues.

Arguments are joined with single spaces.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().DurationVar(&sendChunkTimeout, "chunk-timeout", 5*time.Second, "Acknowledgement timeout per packet (diagnostic mode)")
}

func runSend(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")

	modem, connInfo, err := connectModem(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer modem.Close()

	fmt.Printf("M16 - Send\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Mode: %s\n\n", modem.Config().Mode)

	start := time.Now()
	tx, err := modem.SendMessage(text, appConfig.Timing.ChunkTimeout)
	if err != nil {
		return fmt.Errorf("send failed after %d bytes: %w", tx.BytesWritten, err)
	}

	fmt.Printf("Sent %d packets (%d bytes) in %s\n", len(tx.Chunks), tx.BytesWritten, time.Since(start).Round(time.Millisecond))
	if tx.Diagnostic {
		fmt.Printf("Acknowledged: %d, missed: %d\n", len(tx.Chunks)-tx.AcksMissed, tx.AcksMissed)
	}
	return nil
}
