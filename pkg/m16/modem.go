// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package m16

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Modem drives one M16 over a Transport.
//
// All operations hold the modem's lock for their whole duration, so a
// command and any acknowledgement wait that follows it never interleave
// with another caller's writes.
type Modem struct {
	mu     sync.Mutex
	t      Transport
	framer *Framer
	mirror *Mirror
	stats  *Statistics
	clock  Clock
	timing Timing
	logger *zap.Logger
	closed bool
}

// Option configures a Modem
type Option func(*Modem)

// WithLogger sets the logger used by the driver
func WithLogger(l *zap.Logger) Option {
	return func(m *Modem) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock replaces the wall clock
func WithClock(c Clock) Option {
	return func(m *Modem) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithTiming overrides the hardware timings
func WithTiming(t Timing) Option {
	return func(m *Modem) {
		m.timing = t
	}
}

// WithStatistics shares a statistics tracker with the caller
func WithStatistics(s *Statistics) Option {
	return func(m *Modem) {
		if s != nil {
			m.stats = s
		}
	}
}

// WithInitialConfig seeds the mirror without writing anything to the modem
func WithInitialConfig(cfg DeviceConfig) Option {
	return func(m *Modem) {
		m.mirror = NewMirror(cfg)
	}
}

// Open wraps an established transport. Nothing is written until a command
// is issued; use Apply to push an initial configuration.
func Open(t Transport, opts ...Option) *Modem {
	m := &Modem{
		t:      t,
		mirror: NewMirror(DeviceConfig{}),
		stats:  NewStatistics(),
		clock:  SystemClock(),
		timing: DefaultTiming(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.framer = NewFramer(t, m.clock, m.timing.Poll)
	m.framer.stats = m.stats
	m.framer.logger = m.logger
	return m
}

// Config returns the configuration the driver currently believes in
func (m *Modem) Config() DeviceConfig {
	return m.mirror.Snapshot()
}

// Mirror exposes the state mirror
func (m *Modem) Mirror() *Mirror {
	return m.mirror
}

// Statistics returns the connection's statistics tracker
func (m *Modem) Statistics() *Statistics {
	return m.stats
}

// Timing returns the delays in use
func (m *Modem) Timing() Timing {
	return m.timing
}

// Apply pushes a full configuration to the modem: channel, power level,
// then mode. It stops at the first failure.
func (m *Modem) Apply(cfg DeviceConfig) error {
	m.logger.Info("applying configuration",
		zap.Int("channel", cfg.Channel),
		zap.Int("level", cfg.PowerLevel),
		zap.Stringer("mode", cfg.Mode))

	if err := m.SetChannel(cfg.Channel); err != nil {
		return err
	}
	if err := m.SetPowerLevel(cfg.PowerLevel); err != nil {
		return err
	}
	if cfg.Mode == ModeUnknown {
		return nil
	}
	return m.SetDiagnosticMode(cfg.Mode == ModeDiagnostic)
}

// SetChannel selects channel n (1-12)
func (m *Modem) SetChannel(n int) error {
	steps, err := EncodeSetChannel(n)
	if err != nil {
		m.logger.Warn("rejected channel", zap.Int("channel", n), zap.Error(err))
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sendCommand(SelectChannel, steps); err != nil {
		return err
	}
	if err := m.mirror.ApplyCommandResult(FieldChannel, n); err != nil {
		return err
	}
	m.logger.Info("channel set", zap.Int("channel", n))
	return nil
}

// SetPowerLevel selects power level n (1-4)
func (m *Modem) SetPowerLevel(n int) error {
	steps, err := EncodeSetPowerLevel(n)
	if err != nil {
		m.logger.Warn("rejected power level", zap.Int("level", n), zap.Error(err))
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sendCommand(SelectLevel, steps); err != nil {
		return err
	}
	if err := m.mirror.ApplyCommandResult(FieldPowerLevel, n); err != nil {
		return err
	}
	m.logger.Info("power level set", zap.Int("level", n))
	return nil
}

// SetDiagnosticMode enters diagnostic mode (on) or transparent mode (off)
func (m *Modem) SetDiagnosticMode(on bool) error {
	selector := SelectTransparent
	if on {
		selector = SelectDiagnostic
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sendCommand(selector, EncodeSetMode(on)); err != nil {
		return err
	}
	value := 0
	if on {
		value = 1
	}
	if err := m.mirror.ApplyCommandResult(FieldDiagnosticMode, value); err != nil {
		return err
	}
	m.logger.Info("mode set", zap.Stringer("mode", ModeFromBool(on)))
	return nil
}

// ToggleMode switches between diagnostic and transparent mode. The mirror
// follows only if the previous mode was known.
func (m *Modem) ToggleMode() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sendCommand(SelectToggleMode, EncodeCommand(SelectToggleMode)); err != nil {
		return err
	}
	mode := m.mirror.Toggle()
	m.logger.Info("mode toggled", zap.Stringer("mode", mode))
	return nil
}

// RequestReportCommand asks the modem for a diagnostic report. It does not
// read the answer; follow with ReadReport or use RequestReport.
func (m *Modem) RequestReportCommand() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sendCommand(SelectReport, EncodeCommand(SelectReport))
}

// RequestReport asks for a report, waits up to maxWait for it, decodes it
// and updates the mirror from it.
func (m *Modem) RequestReport(maxWait time.Duration) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Debug("requesting report")
	if err := m.sendCommand(SelectReport, EncodeCommand(SelectReport)); err != nil {
		return nil, err
	}
	report, _, err := m.readReport(maxWait)
	return report, err
}

// ReadFrame waits up to maxWait for a candidate frame. See Framer.ReadFrame.
func (m *Modem) ReadFrame(maxWait time.Duration) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	return m.framer.ReadFrame(maxWait)
}

// ReadReport waits for one frame and decodes it, updating the mirror on
// success. The raw bytes are returned as well, including when decoding fails
// or only a partial buffer arrived.
func (m *Modem) ReadReport(maxWait time.Duration) (*Report, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.readReport(maxWait)
}

func (m *Modem) readReport(maxWait time.Duration) (*Report, []byte, error) {
	if m.closed {
		return nil, nil, ErrClosed
	}

	frame, err := m.framer.ReadFrame(maxWait)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			m.logger.Info("no valid packet received")
		} else if errors.Is(err, ErrPartialFrame) {
			m.logger.Info("no complete frame received", zap.Int("bytes", len(frame)))
		}
		return nil, frame, err
	}

	report, err := Decode(frame)
	m.stats.RecordDecode(err)
	if err != nil {
		m.logger.Info("failed to decode frame", zap.Error(err))
		return nil, frame, err
	}

	if err := m.mirror.ApplyReport(report); err != nil {
		m.logger.Warn("report not applied", zap.Error(err))
		return report, frame, err
	}
	m.logger.Debug("state updated from report", zap.Stringer("config", m.mirror.Snapshot()))
	return report, frame, nil
}

// Close closes the transport. Further operations fail with ErrClosed.
func (m *Modem) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	return m.t.Close()
}

// sendCommand writes each step followed by the settle delay.
// Caller holds m.mu.
func (m *Modem) sendCommand(selector byte, steps [][]byte) error {
	if m.closed {
		return ErrClosed
	}

	m.logger.Debug("sending command", zap.String("command", CommandName(selector)))
	for _, step := range steps {
		if err := m.write(step); err != nil {
			return err
		}
		m.clock.Sleep(m.timing.Settle())
	}
	m.stats.recordCommand(selector)
	return nil
}

func (m *Modem) write(data []byte) error {
	n, err := m.t.Write(data)
	m.stats.recordBytesWritten(n)
	if err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	if n != len(data) {
		return &TransportError{Op: "write", Err: fmt.Errorf("partial write: expected %d bytes, wrote %d", len(data), n)}
	}
	return nil
}
