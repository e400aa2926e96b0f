// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// ErrPortNotFound is returned when the serial device does not exist
var ErrPortNotFound = errors.New("serial port not found")

// serialReadTimeout bounds each blocking read so Close is noticed promptly
const serialReadTimeout = 50 * time.Millisecond

// PortExists reports whether name is a device path or an enumerated port
func PortExists(name string) bool {
	if _, err := os.Stat(name); err == nil {
		return true
	}
	ports, err := serial.GetPortsList()
	if err != nil {
		return false
	}
	for _, p := range ports {
		if p == name {
			return true
		}
	}
	return false
}

// OpenSerial opens the modem's serial port at 8N1 and starts a pump over it
func OpenSerial(name string, baud int, opts ...Option) (*Pump, error) {
	if !PortExists(name) {
		return nil, fmt.Errorf("%w: %s", ErrPortNotFound, name)
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", name, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to flush %s: %w", name, err)
	}

	o := buildOptions(opts)
	o.logger.Info("serial port opened", zap.String("port", name), zap.Int("baud", baud))
	// a read timeout surfaces as (0, nil), which the pump treats as idle
	return NewPump(port, opts...), nil
}

// ListPorts returns the serial ports known to the system
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
