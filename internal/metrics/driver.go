// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Thermoquad/m16ctl/pkg/m16"
)

const namespace = "m16"

// DriverCollector exports a modem's statistics and mirrored configuration.
// Values are read from snapshots at scrape time.
type DriverCollector struct {
	stats  *m16.Statistics
	mirror *m16.Mirror

	bytesRead      *prometheus.Desc
	bytesWritten   *prometheus.Desc
	frames         *prometheus.Desc
	partialFrames  *prometheus.Desc
	timeouts       *prometheus.Desc
	reportsDecoded *prometheus.Desc
	decodeErrors   *prometheus.Desc
	commands       *prometheus.Desc
	chunks         *prometheus.Desc
	acks           *prometheus.Desc
	channel        *prometheus.Desc
	powerLevel     *prometheus.Desc
	diagnostic     *prometheus.Desc
}

// NewDriverCollector creates a collector for one modem connection
func NewDriverCollector(stats *m16.Statistics, mirror *m16.Mirror) *DriverCollector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &DriverCollector{
		stats:          stats,
		mirror:         mirror,
		bytesRead:      desc("bytes_read_total", "Bytes received from the modem."),
		bytesWritten:   desc("bytes_written_total", "Bytes written to the modem."),
		frames:         desc("frames_total", "Candidate frames extracted from the byte stream."),
		partialFrames:  desc("partial_frames_total", "Read windows that ended with an incomplete frame."),
		timeouts:       desc("read_timeouts_total", "Read windows that received nothing."),
		reportsDecoded: desc("reports_decoded_total", "Diagnostic reports decoded successfully."),
		decodeErrors:   desc("decode_errors_total", "Frames rejected by the decoder.", "reason"),
		commands:       desc("commands_total", "Configuration commands sent.", "command"),
		chunks:         desc("chunks_sent_total", "Two-byte data chunks sent."),
		acks:           desc("acks_total", "Diagnostic-mode chunk acknowledgements.", "result"),
		channel:        desc("channel", "Channel the driver believes is selected (0 if unknown)."),
		powerLevel:     desc("power_level", "Power level the driver believes is selected (0 if unknown)."),
		diagnostic:     desc("diagnostic_mode", "1 in diagnostic mode, 0 in transparent mode, -1 if unknown."),
	}
}

// Describe implements prometheus.Collector
func (c *DriverCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.bytesRead, c.bytesWritten, c.frames, c.partialFrames, c.timeouts,
		c.reportsDecoded, c.decodeErrors, c.commands, c.chunks, c.acks,
		c.channel, c.powerLevel, c.diagnostic,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector
func (c *DriverCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats.Snapshot()

	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	counter(c.bytesRead, s.BytesRead)
	counter(c.bytesWritten, s.BytesWritten)
	counter(c.frames, s.Frames)
	counter(c.partialFrames, s.PartialFrames)
	counter(c.timeouts, s.Timeouts)
	counter(c.reportsDecoded, s.ReportsDecoded)
	counter(c.decodeErrors, s.LengthErrors, "length")
	counter(c.decodeErrors, s.MarkerErrors, "marker")
	counter(c.decodeErrors, s.LayoutErrors, "layout")
	for selector, n := range s.Commands {
		counter(c.commands, n, m16.CommandName(selector))
	}
	counter(c.chunks, s.ChunksSent)
	counter(c.acks, s.AcksReceived, "received")
	counter(c.acks, s.AcksMissed, "missed")

	if c.mirror == nil {
		return
	}
	cfg := c.mirror.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.channel, prometheus.GaugeValue, float64(cfg.Channel))
	ch <- prometheus.MustNewConstMetric(c.powerLevel, prometheus.GaugeValue, float64(cfg.PowerLevel))

	mode := -1.0
	switch cfg.Mode {
	case m16.ModeDiagnostic:
		mode = 1
	case m16.ModeTransparent:
		mode = 0
	}
	ch <- prometheus.MustNewConstMetric(c.diagnostic, prometheus.GaugeValue, mode)
}

// ReportMetrics holds link-quality gauges from the most recent report
type ReportMetrics struct {
	SignalPower   prometheus.Gauge
	NoisePower    prometheus.Gauge
	BER           prometheus.Gauge
	PacketValid   prometheus.Gauge
	PacketInvalid prometheus.Gauge
	TXComplete    prometheus.Counter
}

// NewReportMetrics registers and returns the report gauges
func NewReportMetrics(reg prometheus.Registerer) *ReportMetrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Subsystem: "report", Name: name, Help: help})
	}
	m := &ReportMetrics{
		SignalPower:   gauge("signal_power", "SIGNAL_POWER of the last report."),
		NoisePower:    gauge("noise_power", "NOISE_POWER of the last report."),
		BER:           gauge("bit_error_rate", "BER of the last report."),
		PacketValid:   gauge("packets_valid", "PACKET_VALID of the last report."),
		PacketInvalid: gauge("packets_invalid", "PACKET_INVALID of the last report."),
		TXComplete: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "tx_complete_total",
			Help:      "Reports observed with TX_COMPLETE set.",
		}),
	}
	reg.MustRegister(m.SignalPower, m.NoisePower, m.BER, m.PacketValid, m.PacketInvalid, m.TXComplete)
	return m
}

// Observe updates the gauges from a decoded report
func (m *ReportMetrics) Observe(r *m16.Report) {
	m.SignalPower.Set(float64(r.SignalPower))
	m.NoisePower.Set(float64(r.NoisePower))
	m.BER.Set(float64(r.BER))
	m.PacketValid.Set(float64(r.PacketValid))
	m.PacketInvalid.Set(float64(r.PacketInvalid))
	if r.TransmitComplete() {
		m.TXComplete.Inc()
	}
}
