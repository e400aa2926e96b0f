// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Thermoquad/m16ctl/internal/config"
	"github.com/Thermoquad/m16ctl/pkg/m16"
)

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time        { return c.now }
func (c *stepClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

// recordTransport accepts writes and never has anything to read
type recordTransport struct{ written []byte }

func (r *recordTransport) Available() bool                { return false }
func (r *recordTransport) ReadAvailable() ([]byte, error) { return nil, nil }
func (r *recordTransport) Write(p []byte) (int, error) {
	r.written = append(r.written, p...)
	return len(p), nil
}
func (r *recordTransport) Close() error { return nil }

func newTestManager(t *testing.T) (*connectionManager, *recordTransport) {
	t.Helper()
	tr := &recordTransport{}
	modem := m16.Open(tr, m16.WithClock(&stepClock{}))
	return &connectionManager{modem: modem, connInfo: "test"}, tr
}

func withTestConfig(t *testing.T) {
	t.Helper()
	cfg, err := config.Load("", nil)
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}
	prev := appConfig
	appConfig = cfg
	t.Cleanup(func() { appConfig = prev })
}

func enter(m *controlModel, line string) tea.Cmd {
	m.input.SetValue(line)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func lastLog(m *controlModel) logEntry {
	entries := m.log.last(1)
	if len(entries) == 0 {
		return logEntry{}
	}
	return entries[0]
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want controlCommand
	}{
		{"channel 3", controlCommand{kind: cmdChannel, value: 3}},
		{"c 12", controlCommand{kind: cmdChannel, value: 12}},
		{"  CH 1 ", controlCommand{kind: cmdChannel, value: 1}},
		{"level 4", controlCommand{kind: cmdLevel, value: 4}},
		{"l 1", controlCommand{kind: cmdLevel, value: 1}},
		{"d", controlCommand{kind: cmdDiagnostic}},
		{"diagnostic", controlCommand{kind: cmdDiagnostic}},
		{"t", controlCommand{kind: cmdTransparent}},
		{"toggle", controlCommand{kind: cmdToggle}},
		{"m", controlCommand{kind: cmdToggle}},
		{"r", controlCommand{kind: cmdReport}},
		{"send hello there", controlCommand{kind: cmdSend, text: "hello there"}},
		{"?", controlCommand{kind: cmdHelp}},
		{"exit", controlCommand{kind: cmdQuit}},
	}

	for _, tt := range tests {
		got, err := parseCommand(tt.line)
		if err != nil {
			t.Errorf("parseCommand(%q) failed: %v", tt.line, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseCommand(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

func TestParseCommand_Errors(t *testing.T) {
	for _, line := range []string{"", "   ", "channel", "channel x", "channel 0", "channel 13", "level 5", "send", "launch"} {
		if _, err := parseCommand(line); err == nil {
			t.Errorf("parseCommand(%q) succeeded, want error", line)
		}
	}
}

func TestValidateSetArgs(t *testing.T) {
	tests := []struct {
		channel, level int
		mode           string
		ok             bool
	}{
		{0, 0, "", false},
		{3, 0, "", true},
		{0, 2, "", true},
		{0, 0, "toggle", true},
		{12, 4, "diagnostic", true},
		{13, 0, "", false},
		{-1, 0, "", false},
		{0, 5, "", false},
		{0, 0, "loud", false},
	}

	for _, tt := range tests {
		err := validateSetArgs(tt.channel, tt.level, tt.mode)
		if (err == nil) != tt.ok {
			t.Errorf("validateSetArgs(%d, %d, %q) = %v, want ok=%v", tt.channel, tt.level, tt.mode, err, tt.ok)
		}
	}
}

func TestCompareConfig(t *testing.T) {
	got := m16.DeviceConfig{Channel: 3, PowerLevel: 2, Mode: m16.ModeTransparent}

	if diff := compareConfig(m16.DeviceConfig{Channel: 3}, got); len(diff) != 0 {
		t.Errorf("unexpected mismatch: %v", diff)
	}

	diff := compareConfig(m16.DeviceConfig{Channel: 4, PowerLevel: 2, Mode: m16.ModeDiagnostic}, got)
	if len(diff) != 2 {
		t.Fatalf("got %d mismatches, want 2: %v", len(diff), diff)
	}
	if !strings.Contains(diff[0], "channel requested 4, reported 3") {
		t.Errorf("diff[0] = %q", diff[0])
	}
	if !strings.Contains(diff[1], "mode requested diagnostic, reported transparent") {
		t.Errorf("diff[1] = %q", diff[1])
	}
}

func TestControlModel_NoConnection(t *testing.T) {
	m := initialControlModel(nil, "Serial: /dev/null")

	cmd := enter(m, "channel 3")
	if cmd == nil {
		t.Fatal("expected a command")
	}
	if m.busy != 1 {
		t.Errorf("busy = %d, want 1", m.busy)
	}

	msg := cmd()
	result, ok := msg.(commandResultMsg)
	if !ok || result.err == nil {
		t.Fatalf("got %#v, want failing commandResultMsg", msg)
	}

	m.Update(result)
	if m.busy != 0 {
		t.Errorf("busy = %d after result", m.busy)
	}
	if e := lastLog(m); !e.isError || !strings.Contains(e.message, "not connected") {
		t.Errorf("last log entry = %+v", e)
	}
}

func TestControlModel_SetChannel(t *testing.T) {
	withTestConfig(t)
	cm, tr := newTestManager(t)
	m := initialControlModel(cm, "test")

	cmd := enter(m, "c 7")
	if cmd == nil {
		t.Fatal("expected a command")
	}
	m.Update(cmd())

	if string(tr.written) != "cc7" {
		t.Errorf("written %q, want \"cc7\"", tr.written)
	}
	if m.config.Channel != 7 {
		t.Errorf("model channel = %d, want 7", m.config.Channel)
	}
	if !strings.Contains(m.View(), "Channel:") {
		t.Error("view does not show the channel")
	}
}

func TestControlModel_Send(t *testing.T) {
	withTestConfig(t)
	cm, tr := newTestManager(t)
	m := initialControlModel(cm, "test")

	cmd := enter(m, "send Hey")
	m.Update(cmd())

	if string(tr.written) != "Hey " {
		t.Errorf("written %q, want \"Hey \"", tr.written)
	}
	if e := lastLog(m); e.isError || !strings.Contains(e.message, "Sent 2 chunk(s), 4 bytes") {
		t.Errorf("last log entry = %+v", e)
	}
}

func TestControlModel_LocalCommands(t *testing.T) {
	m := initialControlModel(nil, "test")

	if cmd := enter(m, "help"); cmd != nil {
		t.Error("help should not produce a command")
	}
	if lastLog(m).message != controlHelp {
		t.Errorf("help not logged: %+v", lastLog(m))
	}

	if cmd := enter(m, "bogus"); cmd != nil {
		t.Error("unknown command should not produce a command")
	}
	if !lastLog(m).isError {
		t.Error("unknown command not logged as an error")
	}

	if cmd := enter(m, "q"); cmd == nil || !m.quitting {
		t.Error("quit did not quit")
	}
	if m.View() != "Shutting down...\n" {
		t.Errorf("View() = %q", m.View())
	}
}

func TestControlModel_ConnectionLost(t *testing.T) {
	m := initialControlModel(nil, "Serial: /dev/ttyUSB0")

	m.Update(connectionLostMsg{err: errors.New("device gone")})
	if !strings.Contains(m.View(), "RECONNECTING") {
		t.Error("view does not show reconnecting")
	}
	if cmd := enter(m, "r"); cmd != nil {
		t.Error("commands should be refused while the connection is lost")
	}

	m.Update(reconnectedMsg{connInfo: "Serial: /dev/ttyUSB1"})
	if m.connectionLost || m.connInfo != "Serial: /dev/ttyUSB1" {
		t.Errorf("reconnect not applied: lost=%v info=%q", m.connectionLost, m.connInfo)
	}
}

func TestControlModel_Report(t *testing.T) {
	m := initialControlModel(nil, "test")
	if !strings.Contains(m.View(), "No report yet") {
		t.Error("expected empty report box")
	}

	m.Update(reportMsg{report: &m16.Report{Channel: 5, SignalPower: 88, NoisePower: 12, TXComplete: 1}})
	view := m.View()
	for _, want := range []string{"Signal:", "88", "TX:"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m.Update(rawDataMsg{data: []byte("hi\n")})
	if e := lastLog(m); e.message != `Received "hi."` {
		t.Errorf("raw data logged as %q", e.message)
	}
}
