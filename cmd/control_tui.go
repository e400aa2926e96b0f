// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Thermoquad/m16ctl/pkg/m16"
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	// Connection manager (for sending commands and reconnection)
	connMgr  *connectionManager
	connInfo string

	// Modem state as last seen by the UI
	config       m16.DeviceConfig
	lastReport   *m16.Report
	lastReportAt time.Time
	stats        m16.StatsSnapshot

	log   eventLog
	input textinput.Model

	// UI state
	width          int
	height         int
	busy           int // commands in flight
	quitting       bool
	connectionLost bool
	styles         tuiStyles
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type reportMsg struct {
	report *m16.Report
	err    error // set when the report was rejected by the mirror
}

type frameErrorMsg struct {
	err error
	raw []byte
}

// rawDataMsg carries bytes that did not form a frame, usually transparent
// mode payload from the remote modem
type rawDataMsg struct {
	data []byte
}

type commandResultMsg struct {
	command controlCommand
	err     error
	report  *m16.Report
	tx      *m16.Transmission
}

type connectionLostMsg struct {
	err error
}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(connMgr *connectionManager, connInfo string) *controlModel {
	ti := textinput.New()
	ti.Placeholder = "channel 3"
	ti.Prompt = "> "
	ti.CharLimit = 120
	ti.Width = 60
	ti.Focus()

	m := &controlModel{
		connMgr:  connMgr,
		connInfo: connInfo,
		log:      newEventLog(100),
		input:    ti,
		width:    80,
		height:   24,
		styles:   newTUIStyles(),
	}
	m.refresh()
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m *controlModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, controlTickCmd())
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m *controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			return m.handleEnter()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-8, 10)
		return m, nil

	case controlTickMsg:
		m.refresh()
		return m, controlTickCmd()

	case reportMsg:
		m.lastReport = msg.report
		m.lastReportAt = time.Now()
		if msg.err != nil {
			m.log.add(fmt.Sprintf("Report not applied: %v", msg.err), true)
		}
		m.refresh()
		return m, nil

	case frameErrorMsg:
		m.log.add(fmt.Sprintf("Bad frame (%d bytes): %v", len(msg.raw), msg.err), true)
		return m, nil

	case rawDataMsg:
		m.log.add(fmt.Sprintf("Received %q", printable(msg.data)), false)
		return m, nil

	case commandResultMsg:
		m.handleResult(msg)
		return m, nil

	case connectionLostMsg:
		m.connectionLost = true
		m.log.add(fmt.Sprintf("Connection lost (%v) - reconnecting...", msg.err), true)
		return m, nil

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.log.add("Reconnected", false)
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *controlModel) handleEnter() (tea.Model, tea.Cmd) {
	line := m.input.Value()
	m.input.Reset()
	if strings.TrimSpace(line) == "" {
		return m, nil
	}

	c, err := parseCommand(line)
	if err != nil {
		m.log.add(err.Error(), true)
		return m, nil
	}

	switch c.kind {
	case cmdQuit:
		m.quitting = true
		return m, tea.Quit
	case cmdHelp:
		m.log.add(controlHelp, false)
		return m, nil
	}

	// Don't allow control commands while connection is lost
	if m.connectionLost {
		m.log.add("Cannot send command: connection lost", true)
		return m, nil
	}

	m.busy++
	m.log.add(fmt.Sprintf("> %s", c), false)
	return m, executeCommand(m.connMgr, c)
}

func (m *controlModel) handleResult(msg commandResultMsg) {
	if m.busy > 0 {
		m.busy--
	}
	defer m.refresh()

	if msg.err != nil {
		m.log.add(fmt.Sprintf("%s failed: %v", msg.command, msg.err), true)
		return
	}

	switch {
	case msg.report != nil:
		m.lastReport = msg.report
		m.lastReportAt = time.Now()
		m.log.add(fmt.Sprintf("Report: channel=%d level=%d signal=%d noise=%d",
			msg.report.Channel, msg.report.PowerLevel(), msg.report.SignalPower, msg.report.NoisePower), false)
	case msg.tx != nil:
		text := fmt.Sprintf("Sent %d chunk(s), %d bytes", len(msg.tx.Chunks), msg.tx.BytesWritten)
		if msg.tx.AcksMissed > 0 {
			m.log.add(fmt.Sprintf("%s, %d without TX complete", text, msg.tx.AcksMissed), true)
			return
		}
		m.log.add(text, false)
	default:
		m.log.add(fmt.Sprintf("%s done", msg.command), false)
	}
}

// refresh copies the believed configuration and counters from the modem
func (m *controlModel) refresh() {
	modem := m.connMgr.getModem()
	if modem == nil {
		return
	}
	m.config = modem.Config()
	m.stats = modem.Statistics().Snapshot()
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m *controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	st := m.styles
	var s strings.Builder

	s.WriteString(st.title.Render("M16 CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = st.warning.Render("RECONNECTING...")
	}
	s.WriteString(st.header.Render(fmt.Sprintf("| %s | esc=quit help=commands", connStatus)))
	s.WriteString("\n\n")

	s.WriteString(m.renderConfig())
	s.WriteString("\n")
	s.WriteString(m.renderReport())
	s.WriteString("\n")
	s.WriteString(m.renderStatistics())
	s.WriteString("\n")
	s.WriteString(m.renderEventLog())
	s.WriteString("\n")

	inputBox := st.focusedBox
	if m.busy > 0 {
		inputBox = st.box
	}
	s.WriteString(inputBox.Width(m.boxWidth()).Render(m.input.View()))
	s.WriteString("\n")

	return s.String()
}

func (m *controlModel) boxWidth() int {
	return max(m.width-4, 20)
}

func (m *controlModel) field(label, value string) string {
	return fmt.Sprintf("%s %s  ", m.styles.label.Render(label), m.styles.value.Render(value))
}

func (m *controlModel) renderConfig() string {
	ch, lvl := "?", "?"
	if m.config.Channel != 0 {
		ch = fmt.Sprintf("%d", m.config.Channel)
	}
	if m.config.PowerLevel != 0 {
		lvl = fmt.Sprintf("%d", m.config.PowerLevel)
	}

	var content strings.Builder
	content.WriteString(m.styles.label.Render("MODEM"))
	content.WriteString(" | ")
	content.WriteString(m.field("Channel:", ch))
	content.WriteString(m.field("Level:", lvl))
	content.WriteString(m.field("Mode:", m.config.Mode.String()))
	if m.busy > 0 {
		content.WriteString(m.styles.warning.Render("busy"))
	}
	return m.styles.box.Width(m.boxWidth()).Render(content.String())
}

func (m *controlModel) renderReport() string {
	var content strings.Builder
	content.WriteString(m.styles.label.Render("REPORT"))
	content.WriteString(" | ")

	r := m.lastReport
	if r == nil {
		content.WriteString(m.styles.header.Render("No report yet"))
		return m.styles.box.Width(m.boxWidth()).Render(content.String())
	}

	content.WriteString(m.styles.header.Render(m.lastReportAt.Format("15:04:05")))
	content.WriteString("  ")
	content.WriteString(m.field("Signal:", fmt.Sprintf("%d", r.SignalPower)))
	content.WriteString(m.field("Noise:", fmt.Sprintf("%d", r.NoisePower)))
	content.WriteString(m.field("BER:", fmt.Sprintf("%d", r.BER)))
	content.WriteString(m.field("Packets:", fmt.Sprintf("%d/%d", r.PacketValid, r.PacketInvalid)))
	tx := "no"
	if r.TransmitComplete() {
		tx = "yes"
	}
	content.WriteString(m.field("TX:", tx))
	return m.styles.box.Width(m.boxWidth()).Render(content.String())
}

func (m *controlModel) renderStatistics() string {
	s := m.stats
	content := m.field("Frames:", fmt.Sprintf("%d", s.Frames)) +
		m.field("Reports:", fmt.Sprintf("%d", s.ReportsDecoded)) +
		m.field("Sent:", fmt.Sprintf("%d B", s.BytesWritten)) +
		m.field("Chunks:", fmt.Sprintf("%d", s.ChunksSent))
	if n := s.DecodeErrors(); n > 0 {
		content += fmt.Sprintf("%s %s", m.styles.label.Render("Errors:"), m.styles.err.Render(fmt.Sprintf("%d", n)))
	} else {
		content += m.field("Errors:", "0")
	}
	return m.styles.box.Width(m.boxWidth()).Render(content)
}

func (m *controlModel) renderEventLog() string {
	var s strings.Builder
	s.WriteString(m.styles.label.Render("EVENTS"))
	s.WriteString("\n")

	// header, boxes and input take about 16 lines
	logHeight := max(m.height-16, 3)
	entries := m.log.last(logHeight)

	if len(entries) == 0 {
		s.WriteString(m.styles.header.Render("  (no events yet)"))
	}
	for _, entry := range entries {
		icon := "i"
		style := m.styles.warning
		if entry.isError {
			icon = "x"
			style = m.styles.err
		}
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			m.styles.header.Render(entry.timestamp.Format("15:04:05.000")),
			style.Render(icon),
			entry.message))
	}

	return m.styles.box.Width(m.boxWidth()).Render(strings.TrimRight(s.String(), "\n"))
}

// printable replaces control bytes so received data cannot disturb the screen
func printable(data []byte) string {
	out := make([]byte, len(data))
	for i, b := range data {
		if b < 0x20 || b > 0x7E {
			b = '.'
		}
		out[i] = b
	}
	return string(out)
}
