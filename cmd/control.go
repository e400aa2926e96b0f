// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/m16ctl/internal/logging"
	"github.com/Thermoquad/m16ctl/pkg/m16"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for controlling the modem",
	Long: `Control an M16 modem via an interactive terminal UI.

Commands are typed at the prompt:
  channel N (c N)     select channel 1-12
  level N (l N)       select power level 1-4
  diag (d)            enter diagnostic mode
  transparent (t)     enter transparent mode
  toggle (m)          toggle mode
  report (r)          request a diagnostic report
  send TEXT (s TEXT)  transmit text in 2-byte packets
  quit (q)            exit

Features:
  - Believed configuration, updated from every decoded report
  - Latest report with link quality
  - Data received in transparent mode
  - Statistics tracking and event logging
  - Automatic reconnection on connection loss

Supports both serial and WebSocket connections.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

// connectionManager handles connection lifecycle and reconnection
type connectionManager struct {
	ctx      context.Context
	stats    *m16.Statistics // shared across reconnects
	modem    *m16.Modem
	connInfo string
	mu       sync.RWMutex
	p        *tea.Program
	done     chan struct{}
}

func (cm *connectionManager) getModem() *m16.Modem {
	if cm == nil {
		return nil
	}
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.modem
}

func (cm *connectionManager) setModem(modem *m16.Modem, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.modem = modem
	cm.connInfo = connInfo
}

func runControl(cmd *cobra.Command, args []string) error {
	// log lines on the terminal would corrupt the TUI
	quiet, err := logging.NewLogger(appConfig.Logging, io.Discard)
	if err != nil {
		return err
	}
	logger = quiet

	stats := m16.NewStatistics()

	fmt.Printf("Connecting...\n")
	modem, connInfo, err := connectModem(cmd.Context(), true, m16.WithStatistics(stats))
	if err != nil {
		return err
	}

	cm := &connectionManager{
		ctx:      cmd.Context(),
		stats:    stats,
		modem:    modem,
		connInfo: connInfo,
		done:     make(chan struct{}),
	}

	m := initialControlModel(cm, connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen())
	cm.p = p

	go cm.readerLoop()

	_, runErr := p.Run()
	close(cm.done)
	if modem := cm.getModem(); modem != nil {
		modem.Close()
	}
	if runErr != nil {
		return fmt.Errorf("TUI error: %v", runErr)
	}
	return nil
}

// readerLoop reads reports between commands and forwards them to the TUI,
// reconnecting when the link fails
func (cm *connectionManager) readerLoop() {
	for {
		select {
		case <-cm.done:
			return
		default:
		}

		modem := cm.getModem()
		report, raw, err := modem.ReadReport(appConfig.Timing.FrameWait)

		var de *m16.DecodeError
		switch {
		case report != nil:
			cm.p.Send(reportMsg{report: report, err: err})
		case errors.As(err, &de):
			cm.p.Send(frameErrorMsg{err: err, raw: raw})
		case errors.Is(err, m16.ErrPartialFrame):
			cm.p.Send(rawDataMsg{data: raw})
		case errors.Is(err, m16.ErrNoData):
		case err != nil:
			select {
			case <-cm.done:
				return
			default:
			}
			cm.p.Send(connectionLostMsg{err: err})
			if !cm.reconnect() {
				return
			}
		}
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *connectionManager) reconnect() bool {
	if modem := cm.getModem(); modem != nil {
		modem.Close()
	}

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		modem, connInfo, err := connectModem(cm.ctx, true, m16.WithStatistics(cm.stats))
		if err == nil {
			cm.setModem(modem, connInfo)
			cm.p.Send(reconnectedMsg{connInfo: connInfo})
			return true
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// executeCommand runs a prompt command against the modem in the background
func executeCommand(cm *connectionManager, c controlCommand) tea.Cmd {
	return func() tea.Msg {
		modem := cm.getModem()
		if modem == nil {
			return commandResultMsg{command: c, err: fmt.Errorf("not connected")}
		}

		result := commandResultMsg{command: c}
		switch c.kind {
		case cmdChannel:
			result.err = modem.SetChannel(c.value)
		case cmdLevel:
			result.err = modem.SetPowerLevel(c.value)
		case cmdDiagnostic:
			result.err = modem.SetDiagnosticMode(true)
		case cmdTransparent:
			result.err = modem.SetDiagnosticMode(false)
		case cmdToggle:
			result.err = modem.ToggleMode()
		case cmdReport:
			result.report, result.err = modem.RequestReport(appConfig.Timing.FrameWait)
		case cmdSend:
			tx, err := modem.SendMessage(c.text, appConfig.Timing.ChunkTimeout)
			result.tx, result.err = &tx, err
		}
		return result
	}
}
