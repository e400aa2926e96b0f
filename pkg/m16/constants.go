// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package m16 is a host-side driver for the Water Linked M16 acoustic modem.
//
// The modem is configured with single-character commands over a serial link
// and, in diagnostic mode, emits fixed-length 18-byte report frames. This
// package encodes commands, reassembles and decodes report frames, mirrors
// the configuration the modem is believed to have, and sends payloads in the
// 2-byte chunks the acoustic link carries.
//
// See https://docs.waterlinked.com/modem-m16/modem-m16-uart-interface/
package m16

import "time"

// Frame markers and size
const (
	StartMarker = '$'  // 0x24
	EndMarker   = '\n' // 0x0A

	FrameLength   = 18
	PayloadLength = FrameLength - 2
)

// Command selectors. Every selector is written twice before any payload.
const (
	SelectChannel     byte = 'c'
	SelectLevel       byte = 'l'
	SelectDiagnostic  byte = 'd'
	SelectTransparent byte = 't'
	SelectToggleMode  byte = 'm'
	SelectReport      byte = 'r'
)

// Configuration ranges
const (
	MinChannel = 1
	MaxChannel = 12

	MinPowerLevel = 1
	MaxPowerLevel = 4
)

// ChunkSize is the number of bytes carried by one acoustic transmission.
const ChunkSize = 2

// Report bit layout (flags byte and mode byte)
const (
	hwRevMask    = 0b00000011
	channelMask  = 0b00111100
	channelShift = 2
	tbValidBit   = 6
	txDoneBit    = 7

	diagModeMask = 0b00000001
	levelMask    = 0b00001100
	levelShift   = 2
)

// Timing holds the fixed delays the firmware needs. Unit is the firmware's
// "time unit"; settle and dwell are expressed as multiples of it.
type Timing struct {
	Unit      time.Duration // 1 s on real hardware
	Poll      time.Duration // sleep between empty transport polls
	FrameWait time.Duration // default ReadFrame window
}

// DefaultTiming returns the timings used with real hardware.
func DefaultTiming() Timing {
	return Timing{
		Unit:      time.Second,
		Poll:      100 * time.Millisecond,
		FrameWait: 2 * time.Second,
	}
}

// Settle is the pause after every command write.
func (t Timing) Settle() time.Duration {
	return t.Unit
}

// Dwell is the pause after a chunk in transparent mode.
func (t Timing) Dwell() time.Duration {
	return 2 * t.Unit
}
