// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/Thermoquad/m16ctl/internal/link"
	"github.com/Thermoquad/m16ctl/pkg/m16"
)

// passwordEnv holds the WebSocket bridge password
const passwordEnv = "M16_BRIDGE_PASSWORD"

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenConnection opens either a WebSocket bridge or a serial port, as configured
func OpenConnection(ctx context.Context) (m16.Transport, string, error) {
	bridge := appConfig.Bridge
	if bridge.URL != "" {
		password := ""
		if bridge.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := link.OpenWebSocket(ctx, bridge.URL, bridge.Username, password, bridge.NoSSLVerify, link.WithLogger(logger))
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("WebSocket: %s", bridge.URL), nil
	}

	serial := appConfig.Serial
	if serial.Port != "" {
		conn, err := link.OpenSerial(serial.Port, serial.Baud, link.WithLogger(logger))
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", serial.Port, serial.Baud), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// connectModem opens the configured connection and wraps it in a driver.
// With apply set and modem.applyOnConnect enabled, the configured channel,
// power level and mode are pushed before returning.
func connectModem(ctx context.Context, apply bool, opts ...m16.Option) (*m16.Modem, string, error) {
	t, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return nil, "", err
	}

	opts = append([]m16.Option{
		m16.WithLogger(logger),
		m16.WithTiming(appConfig.Timing.Timing()),
	}, opts...)
	modem := m16.Open(t, opts...)

	if apply && appConfig.Modem.ApplyOnConnect {
		if err := modem.Apply(appConfig.Modem.DeviceConfig()); err != nil {
			modem.Close()
			return nil, "", fmt.Errorf("failed to configure modem: %w", err)
		}
	}

	return modem, connInfo, nil
}
