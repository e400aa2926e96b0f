// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package m16

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestChannelToken(t *testing.T) {
	tests := []struct {
		channel int
		want    byte
	}{
		{1, '1'}, {5, '5'}, {9, '9'},
		{10, 'a'}, {11, 'b'}, {12, 'c'},
	}

	for _, tt := range tests {
		got, err := ChannelToken(tt.channel)
		if err != nil {
			t.Errorf("ChannelToken(%d) failed: %v", tt.channel, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ChannelToken(%d) = %q, want %q", tt.channel, got, tt.want)
		}
		back, ok := ChannelFromToken(got)
		if !ok || back != tt.channel {
			t.Errorf("ChannelFromToken(%q) = %d, %v", got, back, ok)
		}
	}

	for _, bad := range []int{-1, 0, 13, 100} {
		if _, err := ChannelToken(bad); err == nil {
			t.Errorf("ChannelToken(%d) should fail", bad)
		}
	}
}

func TestModem_SetChannel(t *testing.T) {
	for ch := MinChannel; ch <= MaxChannel; ch++ {
		m, tr, clock := newTestModem()

		if err := m.SetChannel(ch); err != nil {
			t.Fatalf("SetChannel(%d) failed: %v", ch, err)
		}

		tok, _ := ChannelToken(ch)
		want := []string{"c", "c", string(tok)}
		if !reflect.DeepEqual(tr.written(), want) {
			t.Errorf("SetChannel(%d) wrote %q, want %q", ch, tr.written(), want)
		}
		wantSleeps := []time.Duration{time.Second, time.Second, time.Second}
		if !reflect.DeepEqual(clock.sleeps, wantSleeps) {
			t.Errorf("SetChannel(%d) slept %v, want %v", ch, clock.sleeps, wantSleeps)
		}
		if m.Config().Channel != ch {
			t.Errorf("mirror channel = %d, want %d", m.Config().Channel, ch)
		}
	}
}

func TestModem_InvalidValuesWriteNothing(t *testing.T) {
	start := DeviceConfig{Channel: 3, PowerLevel: 2, Mode: ModeTransparent}

	tests := []struct {
		name string
		call func(m *Modem) error
	}{
		{"channel 0", func(m *Modem) error { return m.SetChannel(0) }},
		{"channel 13", func(m *Modem) error { return m.SetChannel(13) }},
		{"level 0", func(m *Modem) error { return m.SetPowerLevel(0) }},
		{"level 5", func(m *Modem) error { return m.SetPowerLevel(5) }},
		{"chunk too long", func(m *Modem) error { _, err := m.SendTwoBytes("abc"); return err }},
		{"non-ascii message", func(m *Modem) error { _, err := m.SendMessage("héllo", time.Second); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, tr, clock := newTestModem(WithInitialConfig(start))

			err := tt.call(m)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if len(tr.writes) != 0 {
				t.Errorf("wrote %q for invalid input", tr.written())
			}
			if len(clock.sleeps) != 0 {
				t.Errorf("slept %v for invalid input", clock.sleeps)
			}
			if m.Config() != start {
				t.Errorf("mirror changed to %v", m.Config())
			}
		})
	}
}

func TestModem_SetPowerLevel(t *testing.T) {
	for level := MinPowerLevel; level <= MaxPowerLevel; level++ {
		m, tr, _ := newTestModem()

		if err := m.SetPowerLevel(level); err != nil {
			t.Fatalf("SetPowerLevel(%d) failed: %v", level, err)
		}
		want := []string{"l", "l", string(rune('0' + level))}
		if !reflect.DeepEqual(tr.written(), want) {
			t.Errorf("SetPowerLevel(%d) wrote %q, want %q", level, tr.written(), want)
		}
		if m.Config().PowerLevel != level {
			t.Errorf("mirror level = %d, want %d", m.Config().PowerLevel, level)
		}
	}
}

func TestModem_SetDiagnosticMode(t *testing.T) {
	tests := []struct {
		on    bool
		wrote []string
		mode  Mode
	}{
		{true, []string{"d", "d"}, ModeDiagnostic},
		{false, []string{"t", "t"}, ModeTransparent},
	}

	for _, tt := range tests {
		m, tr, clock := newTestModem()

		if err := m.SetDiagnosticMode(tt.on); err != nil {
			t.Fatalf("SetDiagnosticMode(%v) failed: %v", tt.on, err)
		}
		if !reflect.DeepEqual(tr.written(), tt.wrote) {
			t.Errorf("wrote %q, want %q", tr.written(), tt.wrote)
		}
		if clock.totalSleep() != 2*time.Second {
			t.Errorf("slept %v, want 2s", clock.totalSleep())
		}
		if m.Config().Mode != tt.mode {
			t.Errorf("mode = %s, want %s", m.Config().Mode, tt.mode)
		}
	}
}

func TestModem_ToggleMode(t *testing.T) {
	tests := []struct {
		from Mode
		to   Mode
	}{
		{ModeDiagnostic, ModeTransparent},
		{ModeTransparent, ModeDiagnostic},
		{ModeUnknown, ModeUnknown},
	}

	for _, tt := range tests {
		m, tr, _ := newTestModem(WithInitialConfig(DeviceConfig{Mode: tt.from}))

		if err := m.ToggleMode(); err != nil {
			t.Fatalf("ToggleMode failed: %v", err)
		}
		if !reflect.DeepEqual(tr.written(), []string{"m", "m"}) {
			t.Errorf("wrote %q, want [m m]", tr.written())
		}
		if m.Config().Mode != tt.to {
			t.Errorf("toggle from %s gave %s, want %s", tt.from, m.Config().Mode, tt.to)
		}
	}
}

func TestModem_Apply(t *testing.T) {
	m, tr, _ := newTestModem()

	err := m.Apply(DeviceConfig{Channel: 10, PowerLevel: 4, Mode: ModeDiagnostic})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	want := []string{"c", "c", "a", "l", "l", "4", "d", "d"}
	if !reflect.DeepEqual(tr.written(), want) {
		t.Errorf("wrote %q, want %q", tr.written(), want)
	}

	snap := m.Statistics().Snapshot()
	if snap.Commands[SelectChannel] != 1 || snap.Commands[SelectLevel] != 1 || snap.Commands[SelectDiagnostic] != 1 {
		t.Errorf("command counts = %v", snap.Commands)
	}
	if snap.BytesWritten != 8 {
		t.Errorf("BytesWritten = %d, want 8", snap.BytesWritten)
	}
}

func TestModem_ApplySkipsUnknownMode(t *testing.T) {
	m, tr, _ := newTestModem()

	if err := m.Apply(DeviceConfig{Channel: 1, PowerLevel: 1}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(tr.writes) != 6 {
		t.Errorf("wrote %q, want channel and level only", tr.written())
	}
}

func TestModem_RequestReport(t *testing.T) {
	m, tr, _ := newTestModem(WithInitialConfig(DeviceConfig{Channel: 1, PowerLevel: 1, Mode: ModeTransparent}))
	rCount := 0
	tr.onWrite = func(tr *scriptTransport, p []byte) {
		if string(p) == "r" {
			rCount++
			if rCount == 2 {
				tr.deliverNow(goldenFrame)
			}
		}
	}

	r, err := m.RequestReport(2 * time.Second)
	if err != nil {
		t.Fatalf("RequestReport failed: %v", err)
	}
	if !reflect.DeepEqual(tr.written(), []string{"r", "r"}) {
		t.Errorf("wrote %q, want [r r]", tr.written())
	}
	if r.Channel != 11 {
		t.Errorf("report channel = %d, want 11", r.Channel)
	}

	want := DeviceConfig{Channel: 11, PowerLevel: 3, Mode: ModeDiagnostic}
	if m.Config() != want {
		t.Errorf("mirror = %v, want %v", m.Config(), want)
	}
	if m.Statistics().Snapshot().ReportsDecoded != 1 {
		t.Error("decoded report not counted")
	}
}

func TestModem_ReportOverridesOptimisticState(t *testing.T) {
	m, tr, _ := newTestModem()

	if err := m.SetChannel(5); err != nil {
		t.Fatalf("SetChannel failed: %v", err)
	}
	// the modem did not take the command and still reports channel 2
	tr.deliverNow(statusFrame(2, 1, false, false))

	if _, _, err := m.ReadReport(time.Second); err != nil {
		t.Fatalf("ReadReport failed: %v", err)
	}
	if m.Config().Channel != 2 {
		t.Errorf("channel = %d, want the reported 2", m.Config().Channel)
	}
	if m.Config().PowerLevel != 1 || m.Config().Mode != ModeTransparent {
		t.Errorf("mirror = %v", m.Config())
	}
}

func TestModem_ReportWithInvalidChannelRejected(t *testing.T) {
	start := DeviceConfig{Channel: 4, PowerLevel: 2, Mode: ModeDiagnostic}
	m, tr, _ := newTestModem(WithInitialConfig(start))
	tr.deliverNow(statusFrame(15, 1, false, false))

	r, _, err := m.ReadReport(time.Second)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if r == nil || r.Channel != 15 {
		t.Errorf("decoded report should still be returned, got %+v", r)
	}
	if m.Config() != start {
		t.Errorf("mirror changed to %v", m.Config())
	}
}

func TestModem_ReadReportNoData(t *testing.T) {
	m, _, clock := newTestModem()

	r, raw, err := m.ReadReport(2 * time.Second)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
	if r != nil || raw != nil {
		t.Errorf("got report %+v raw %X", r, raw)
	}
	if clock.elapsed() != 2*time.Second {
		t.Errorf("elapsed = %v, want 2s", clock.elapsed())
	}
}

func TestModem_ReadReportBadFrame(t *testing.T) {
	m, tr, _ := newTestModem()
	bad := append([]byte(nil), goldenFrame...)
	bad[17] = 'X'
	tr.deliverNow(append(bad, '\n'))

	_, raw, err := m.ReadReport(time.Second)
	var de *DecodeError
	if !errors.As(err, &de) || de.Reason != ReasonEndMarker {
		t.Fatalf("err = %v, want end marker DecodeError", err)
	}
	if len(raw) != FrameLength {
		t.Errorf("raw = %X", raw)
	}
	if m.Statistics().Snapshot().MarkerErrors != 1 {
		t.Error("marker error not counted")
	}
}

func TestModem_WriteFailure(t *testing.T) {
	start := DeviceConfig{Channel: 3, PowerLevel: 2, Mode: ModeTransparent}
	m, tr, _ := newTestModem(WithInitialConfig(start))
	tr.writeErr = errors.New("broken pipe")

	err := m.SetChannel(7)
	if !IsTransportError(err) {
		t.Fatalf("err = %v, want transport error", err)
	}
	if m.Config() != start {
		t.Errorf("mirror changed to %v after failed write", m.Config())
	}
}

func TestModem_Closed(t *testing.T) {
	m, tr, _ := newTestModem()

	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !tr.closed {
		t.Error("transport not closed")
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	if err := m.SetChannel(1); !errors.Is(err, ErrClosed) {
		t.Errorf("SetChannel after close: %v", err)
	}
	if _, err := m.RequestReport(time.Second); !errors.Is(err, ErrClosed) {
		t.Errorf("RequestReport after close: %v", err)
	}
	if _, err := m.SendMessage("Hi", time.Second); !errors.Is(err, ErrClosed) {
		t.Errorf("SendMessage after close: %v", err)
	}
}

func TestModem_SharedStatistics(t *testing.T) {
	stats := NewStatistics()

	first, _, _ := newTestModem(WithStatistics(stats))
	if err := first.SetChannel(2); err != nil {
		t.Fatalf("SetChannel failed: %v", err)
	}
	first.Close()

	second, _, _ := newTestModem(WithStatistics(stats))
	if err := second.SetPowerLevel(3); err != nil {
		t.Fatalf("SetPowerLevel failed: %v", err)
	}

	snap := stats.Snapshot()
	if snap.Commands[SelectChannel] != 1 || snap.Commands[SelectLevel] != 1 {
		t.Errorf("commands = %v, want one channel and one level", snap.Commands)
	}
	if second.Statistics() != stats {
		t.Error("modem does not expose the shared tracker")
	}
}
