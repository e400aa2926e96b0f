// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/m16ctl/pkg/m16"
)

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time        { return c.now }
func (c *stepClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

// sinkTransport accepts writes and never has anything to read
type sinkTransport struct{}

func (sinkTransport) Available() bool                { return false }
func (sinkTransport) ReadAvailable() ([]byte, error) { return nil, nil }
func (sinkTransport) Write(p []byte) (int, error)    { return len(p), nil }
func (sinkTransport) Close() error                   { return nil }

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestDriverCollector(t *testing.T) {
	modem := m16.Open(sinkTransport{}, m16.WithClock(&stepClock{}))
	require.NoError(t, modem.SetChannel(3))
	require.NoError(t, modem.SetDiagnosticMode(true))
	modem.Statistics().RecordDecode(&m16.DecodeError{Reason: m16.ReasonLength, Length: 4})

	reg := prometheus.NewRegistry()
	reg.MustRegister(NewDriverCollector(modem.Statistics(), modem.Mirror()))

	body := scrape(t, reg)
	for _, want := range []string{
		`m16_commands_total{command="SET_CHANNEL"} 1`,
		`m16_commands_total{command="DIAGNOSTIC_MODE"} 1`,
		`m16_bytes_written_total 5`,
		`m16_decode_errors_total{reason="length"} 1`,
		`m16_channel 3`,
		`m16_power_level 0`,
		`m16_diagnostic_mode 1`,
	} {
		assert.Contains(t, body, want)
	}
}

func TestDriverCollector_UnknownMode(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewDriverCollector(m16.NewStatistics(), m16.NewMirror(m16.DeviceConfig{})))

	assert.Contains(t, scrape(t, reg), "m16_diagnostic_mode -1")
}

func TestReportMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	rm := NewReportMetrics(reg)

	rm.Observe(&m16.Report{SignalPower: 120, NoisePower: 30, BER: 2, PacketValid: 900, TXComplete: 1})

	body := scrape(t, reg)
	assert.Contains(t, body, "m16_report_signal_power 120")
	assert.Contains(t, body, "m16_report_noise_power 30")
	assert.Contains(t, body, "m16_report_packets_valid 900")
	assert.Contains(t, body, "m16_report_tx_complete_total 1")
}

func TestNewRegistry_RuntimeCollectors(t *testing.T) {
	assert.Contains(t, scrape(t, NewRegistry()), "go_goroutines")
}
