// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/m16ctl/internal/metrics"
	"github.com/Thermoquad/m16ctl/pkg/m16"
)

var (
	monitorStatsInterval int
	monitorRequestEvery  time.Duration
	monitorShowRaw       bool
	monitorMetricsAddr   string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Continuously decode diagnostic reports",
	Long: `Read diagnostic reports as they arrive, decode and print them.

Frames that fail to decode are shown with a hex dump. Statistics (frames,
decode errors, timeouts) are printed at --stats-interval. With --request the
modem is asked for a report periodically instead of waiting for it to send
one on its own.

With --metrics-addr (or metrics.addr in the config) the driver statistics,
the believed configuration and the link quality of the last report are
exposed for Prometheus.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().DurationVar(&monitorRequestEvery, "request", 0, "Request a report at this interval (0 = passive)")
	monitorCmd.Flags().BoolVar(&monitorShowRaw, "show-raw", false, "Show bytes that did not form a frame")
	monitorCmd.Flags().StringVar(&monitorMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9316)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	modem, connInfo, err := connectModem(ctx, true)
	if err != nil {
		return err
	}
	defer modem.Close()

	fmt.Printf("M16 - Report Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", monitorStatsInterval)
	if monitorRequestEvery > 0 {
		fmt.Printf("Requesting a report every %s\n", monitorRequestEvery)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	var reportMetrics *metrics.ReportMetrics
	if addr := appConfig.Metrics.Addr; addr != "" {
		reg := metrics.NewRegistry()
		reg.MustRegister(metrics.NewDriverCollector(modem.Statistics(), modem.Mirror()))
		reportMetrics = metrics.NewReportMetrics(reg)

		go func() {
			if err := metrics.Serve(ctx, addr, appConfig.Metrics.Path, reg, logger); err != nil {
				logger.Error("metrics endpoint failed", zap.Error(err))
			}
		}()
		fmt.Printf("Metrics: http://%s%s\n\n", addr, appConfig.Metrics.Path)
	}

	return monitorLoop(ctx, modem, reportMetrics)
}

func monitorLoop(ctx context.Context, modem *m16.Modem, reportMetrics *metrics.ReportMetrics) error {
	statsEvery := time.Duration(monitorStatsInterval) * time.Second
	lastStats := time.Now()
	var lastRequest time.Time

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			fmt.Print(modem.Statistics().String())
			return nil
		default:
		}

		if monitorRequestEvery > 0 && time.Since(lastRequest) >= monitorRequestEvery {
			lastRequest = time.Now()
			if err := modem.RequestReportCommand(); err != nil {
				return err
			}
		}

		report, raw, err := modem.ReadReport(appConfig.Timing.FrameWait)
		now := time.Now()
		var de *m16.DecodeError

		switch {
		case report != nil:
			fmt.Print(m16.FormatReport(report, now))
			if err != nil {
				fmt.Printf("  \033[1;33mNOT APPLIED:\033[0m %v\n", err)
			}
			fmt.Println()
			if reportMetrics != nil {
				reportMetrics.Observe(report)
			}

		case errors.As(err, &de):
			fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", now.Format("15:04:05.000"), err)
			fmt.Print(m16.FormatRaw(raw, now))
			fmt.Println()

		case errors.Is(err, m16.ErrPartialFrame):
			if monitorShowRaw {
				fmt.Print(m16.FormatRaw(raw, now))
				fmt.Println()
			}

		case errors.Is(err, m16.ErrNoData):

		case err != nil:
			return err
		}

		if statsEvery > 0 && time.Since(lastStats) >= statsEvery {
			lastStats = time.Now()
			fmt.Println()
			fmt.Print(modem.Statistics().String())
			fmt.Println()
		}
	}
}
