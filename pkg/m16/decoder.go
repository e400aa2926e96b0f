// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package m16

import (
	"bytes"
	"encoding/binary"
)

// wireReport is the little-endian payload between the frame markers:
// H B B B H B B B B B H B B
type wireReport struct {
	TRBlock       uint16
	BER           uint8
	SignalPower   uint8
	NoisePower    uint8
	PacketValid   uint16
	PacketInvalid uint8
	GitRev        uint8
	Time0         uint8
	Time1         uint8
	Time2         uint8
	ChipID        uint16
	Flags         uint8
	Mode          uint8
}

// Decode validates a raw frame and unpacks it into a Report.
// Decode has no side effects; callers push the result into the Mirror.
func Decode(frame []byte) (*Report, error) {
	// A byte slice is always 8-bit clean, so the first check of the
	// original text-based validation is implicit here.
	if len(frame) != FrameLength {
		return nil, &DecodeError{Reason: ReasonLength, Length: len(frame)}
	}
	if frame[0] != StartMarker {
		return nil, &DecodeError{Reason: ReasonStartMarker, Length: len(frame)}
	}
	if frame[FrameLength-1] != EndMarker {
		return nil, &DecodeError{Reason: ReasonEndMarker, Length: len(frame)}
	}

	payload := frame[1 : FrameLength-1]
	if binary.Size(wireReport{}) != len(payload) {
		return nil, &DecodeError{Reason: ReasonLayout, Length: len(payload)}
	}

	var w wireReport
	if err := binary.Read(bytes.NewReader(payload), binary.LittleEndian, &w); err != nil {
		return nil, &DecodeError{Reason: ReasonLayout, Length: len(payload)}
	}

	r := &Report{
		BER:            w.BER,
		SignalPower:    w.SignalPower,
		NoisePower:     w.NoisePower,
		PacketValid:    w.PacketValid,
		PacketInvalid:  w.PacketInvalid,
		GitRev:         [1]byte{w.GitRev},
		Time:           uint32(w.Time2)<<16 | uint32(w.Time1)<<8 | uint32(w.Time0),
		ChipID:         w.ChipID,
		HWRev:          w.Flags & hwRevMask,
		Channel:        (w.Flags & channelMask) >> channelShift,
		TBValid:        (w.Flags >> tbValidBit) & 1,
		TXComplete:     (w.Flags >> txDoneBit) & 1,
		DiagnosticMode: w.Mode & diagModeMask,
		Level:          (w.Mode & levelMask) >> levelShift,
	}
	binary.LittleEndian.PutUint16(r.TRBlock[:], w.TRBlock)

	return r, nil
}
