// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package m16

import (
	"fmt"
	"sync"
)

// Mode is the modem's operating mode as far as the driver knows it
type Mode int

// Mode values
const (
	ModeUnknown Mode = iota
	ModeTransparent
	ModeDiagnostic
)

// String returns the mode name
func (m Mode) String() string {
	switch m {
	case ModeTransparent:
		return "transparent"
	case ModeDiagnostic:
		return "diagnostic"
	default:
		return "unknown"
	}
}

// ModeFromBool maps a diagnostic flag to a Mode
func ModeFromBool(diagnostic bool) Mode {
	if diagnostic {
		return ModeDiagnostic
	}
	return ModeTransparent
}

// DeviceConfig is the configuration the driver believes the modem has.
// Zero Channel or PowerLevel means it has not been set or reported yet.
type DeviceConfig struct {
	Channel    int
	PowerLevel int
	Mode       Mode
}

// Diagnostic reports whether the mode is known to be diagnostic
func (c DeviceConfig) Diagnostic() bool {
	return c.Mode == ModeDiagnostic
}

// String formats the configuration for logs and status lines
func (c DeviceConfig) String() string {
	ch, lvl := "unknown", "unknown"
	if c.Channel != 0 {
		ch = fmt.Sprintf("%d", c.Channel)
	}
	if c.PowerLevel != 0 {
		lvl = fmt.Sprintf("%d", c.PowerLevel)
	}
	return fmt.Sprintf("channel=%s level=%s mode=%s", ch, lvl, c.Mode)
}

// Field names a DeviceConfig field for optimistic updates
type Field int

// Field values
const (
	FieldChannel Field = iota
	FieldPowerLevel
	FieldDiagnosticMode
)

// String returns the field name
func (f Field) String() string {
	switch f {
	case FieldChannel:
		return "channel"
	case FieldPowerLevel:
		return "power level"
	case FieldDiagnosticMode:
		return "diagnostic mode"
	default:
		return "unknown field"
	}
}

// Mirror holds the driver's belief about the modem configuration.
//
// It has two writers: ApplyCommandResult, called right after a command was
// written (optimistic), and ApplyReport, called after every successfully
// decoded report (authoritative). The last report always wins.
type Mirror struct {
	mu  sync.RWMutex
	cfg DeviceConfig
}

// NewMirror creates a mirror starting from cfg
func NewMirror(cfg DeviceConfig) *Mirror {
	return &Mirror{cfg: cfg}
}

// Snapshot returns a copy of the current belief
func (m *Mirror) Snapshot() DeviceConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// ApplyCommandResult records the value a command just asked the modem for.
// For FieldDiagnosticMode any non-zero value means diagnostic.
func (m *Mirror) ApplyCommandResult(field Field, value int) error {
	switch field {
	case FieldChannel:
		if err := ValidateChannel(value); err != nil {
			return err
		}
	case FieldPowerLevel:
		if err := ValidatePowerLevel(value); err != nil {
			return err
		}
	case FieldDiagnosticMode:
	default:
		return &ValidationError{Field: "field", Value: int(field), Message: "unknown configuration field"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch field {
	case FieldChannel:
		m.cfg.Channel = value
	case FieldPowerLevel:
		m.cfg.PowerLevel = value
	case FieldDiagnosticMode:
		m.cfg.Mode = ModeFromBool(value != 0)
	}
	return nil
}

// Toggle flips a known mode. An unknown mode stays unknown because the
// firmware does not say which way a toggle went.
func (m *Mirror) Toggle() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.cfg.Mode {
	case ModeDiagnostic:
		m.cfg.Mode = ModeTransparent
	case ModeTransparent:
		m.cfg.Mode = ModeDiagnostic
	}
	return m.cfg.Mode
}

// ApplyReport overwrites the belief with what the modem reported.
// A report carrying a channel outside 1-12 is rejected as a whole.
func (m *Mirror) ApplyReport(r *Report) error {
	channel := int(r.Channel)
	if err := ValidateChannel(channel); err != nil {
		return err
	}
	level := r.PowerLevel()
	if err := ValidatePowerLevel(level); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cfg.Channel = channel
	m.cfg.PowerLevel = level
	m.cfg.Mode = ModeFromBool(r.Diagnostic())
	return nil
}

// ValidateChannel checks n is a channel the modem accepts
func ValidateChannel(n int) error {
	if n < MinChannel || n > MaxChannel {
		return &ValidationError{
			Field:   "channel",
			Value:   n,
			Message: fmt.Sprintf("needs to be between %d-%d", MinChannel, MaxChannel),
		}
	}
	return nil
}

// ValidatePowerLevel checks n is a power level the modem accepts
func ValidatePowerLevel(n int) error {
	if n < MinPowerLevel || n > MaxPowerLevel {
		return &ValidationError{
			Field:   "power level",
			Value:   n,
			Message: fmt.Sprintf("needs to be between %d-%d", MinPowerLevel, MaxPowerLevel),
		}
	}
	return nil
}
