// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package m16

// Command encoding.
//
// The firmware needs the selector character entered twice to arm a command,
// and a settle delay after each write before it recognizes the next one.
// Closely spaced digits can still be taken by the modem as a 2-byte data
// send; the disambiguation rule is undocumented firmware behavior, so the
// framing below is kept exactly as the firmware expects it.

// ChannelToken returns the payload character for a channel:
// '1'-'9' for channels 1-9 and 'a', 'b', 'c' for 10, 11, 12.
func ChannelToken(n int) (byte, error) {
	if err := ValidateChannel(n); err != nil {
		return 0, err
	}
	if n <= 9 {
		return byte('0' + n), nil
	}
	return byte('a' + n - 10), nil
}

// ChannelFromToken is the inverse of ChannelToken
func ChannelFromToken(tok byte) (int, bool) {
	switch {
	case tok >= '1' && tok <= '9':
		return int(tok - '0'), true
	case tok >= 'a' && tok <= 'c':
		return int(tok-'a') + 10, true
	}
	return 0, false
}

// LevelToken returns the payload character for a power level ('1'-'4')
func LevelToken(n int) (byte, error) {
	if err := ValidatePowerLevel(n); err != nil {
		return 0, err
	}
	return byte('0' + n), nil
}

// EncodeCommand returns the individual writes for a command: the selector
// twice followed by the payload tokens. Each write is followed by the
// settle delay when sent.
func EncodeCommand(selector byte, payload ...byte) [][]byte {
	steps := make([][]byte, 0, 2+len(payload))
	steps = append(steps, []byte{selector}, []byte{selector})
	for _, b := range payload {
		steps = append(steps, []byte{b})
	}
	return steps
}

// EncodeSetChannel returns the writes for selecting a channel
func EncodeSetChannel(n int) ([][]byte, error) {
	tok, err := ChannelToken(n)
	if err != nil {
		return nil, err
	}
	return EncodeCommand(SelectChannel, tok), nil
}

// EncodeSetPowerLevel returns the writes for selecting a power level
func EncodeSetPowerLevel(n int) ([][]byte, error) {
	tok, err := LevelToken(n)
	if err != nil {
		return nil, err
	}
	return EncodeCommand(SelectLevel, tok), nil
}

// EncodeSetMode returns the writes for entering diagnostic or transparent mode
func EncodeSetMode(diagnostic bool) [][]byte {
	if diagnostic {
		return EncodeCommand(SelectDiagnostic)
	}
	return EncodeCommand(SelectTransparent)
}

// CommandName returns a readable name for a selector
func CommandName(selector byte) string {
	switch selector {
	case SelectChannel:
		return "SET_CHANNEL"
	case SelectLevel:
		return "SET_LEVEL"
	case SelectDiagnostic:
		return "DIAGNOSTIC_MODE"
	case SelectTransparent:
		return "TRANSPARENT_MODE"
	case SelectToggleMode:
		return "TOGGLE_MODE"
	case SelectReport:
		return "REQUEST_REPORT"
	default:
		return "UNKNOWN"
	}
}
