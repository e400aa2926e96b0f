// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package m16

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// Report is one decoded diagnostic report. It is never modified after Decode.
type Report struct {
	TRBlock        [2]byte
	BER            uint8
	SignalPower    uint8
	NoisePower     uint8
	PacketValid    uint16
	PacketInvalid  uint8
	GitRev         [1]byte
	Time           uint32 // 24-bit
	ChipID         uint16
	HWRev          uint8
	Channel        uint8
	TBValid        uint8
	TXComplete     uint8
	DiagnosticMode uint8
	Level          uint8 // inverted power level as reported (0-3)
}

// PowerLevel converts the reported level back to the 1-4 scale used by
// SetPowerLevel.
func (r *Report) PowerLevel() int {
	return InvertLevel(int(r.Level))
}

// Diagnostic reports whether the modem says it is in diagnostic mode
func (r *Report) Diagnostic() bool {
	return r.DiagnosticMode == 1
}

// TransmitComplete reports whether the last chunk has left the modem
func (r *Report) TransmitComplete() bool {
	return r.TXComplete == 1
}

// InvertLevel maps between the domain power level (1-4) and the level
// carried in reports (3-0). The mapping is its own inverse.
func InvertLevel(level int) int {
	return MaxPowerLevel - level
}

// ReportDocument is the export form of a Report. Byte-sequence fields are
// rendered as hexadecimal text; LEVEL keeps the raw (inverted) value.
type ReportDocument struct {
	TRBlock        string `json:"TR_BLOCK" yaml:"TR_BLOCK" cbor:"TR_BLOCK"`
	BER            uint8  `json:"BER" yaml:"BER" cbor:"BER"`
	SignalPower    uint8  `json:"SIGNAL_POWER" yaml:"SIGNAL_POWER" cbor:"SIGNAL_POWER"`
	NoisePower     uint8  `json:"NOISE_POWER" yaml:"NOISE_POWER" cbor:"NOISE_POWER"`
	PacketValid    uint16 `json:"PACKET_VALID" yaml:"PACKET_VALID" cbor:"PACKET_VALID"`
	PacketInvalid  uint8  `json:"PACKET_INVALID" yaml:"PACKET_INVALID" cbor:"PACKET_INVALID"`
	GitRev         string `json:"GIT_REV" yaml:"GIT_REV" cbor:"GIT_REV"`
	Time           uint32 `json:"TIME" yaml:"TIME" cbor:"TIME"`
	ChipID         uint16 `json:"CHIP_ID" yaml:"CHIP_ID" cbor:"CHIP_ID"`
	HWRev          uint8  `json:"HW_REV" yaml:"HW_REV" cbor:"HW_REV"`
	Channel        uint8  `json:"CHANNEL" yaml:"CHANNEL" cbor:"CHANNEL"`
	TBValid        uint8  `json:"TB_VALID" yaml:"TB_VALID" cbor:"TB_VALID"`
	TXComplete     uint8  `json:"TX_COMPLETE" yaml:"TX_COMPLETE" cbor:"TX_COMPLETE"`
	DiagnosticMode uint8  `json:"DIAGNOSTIC_MODE" yaml:"DIAGNOSTIC_MODE" cbor:"DIAGNOSTIC_MODE"`
	Level          uint8  `json:"LEVEL" yaml:"LEVEL" cbor:"LEVEL"`
}

// Document returns the export form of the report
func (r *Report) Document() ReportDocument {
	return ReportDocument{
		TRBlock:        hex.EncodeToString(r.TRBlock[:]),
		BER:            r.BER,
		SignalPower:    r.SignalPower,
		NoisePower:     r.NoisePower,
		PacketValid:    r.PacketValid,
		PacketInvalid:  r.PacketInvalid,
		GitRev:         hex.EncodeToString(r.GitRev[:]),
		Time:           r.Time,
		ChipID:         r.ChipID,
		HWRev:          r.HWRev,
		Channel:        r.Channel,
		TBValid:        r.TBValid,
		TXComplete:     r.TXComplete,
		DiagnosticMode: r.DiagnosticMode,
		Level:          r.Level,
	}
}

// ExportFormat selects the encoding of an exported report
type ExportFormat int

const (
	FormatJSON ExportFormat = iota
	FormatYAML
	FormatCBOR
)

// FormatForPath picks the export format from a file extension.
// Unknown extensions fall back to JSON.
func FormatForPath(path string) ExportFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".cbor":
		return FormatCBOR
	default:
		return FormatJSON
	}
}

// WriteReport encodes the report document to w
func WriteReport(w io.Writer, r *Report, format ExportFormat) error {
	doc := r.Document()

	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(4)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode YAML report: %w", err)
		}
		return enc.Close()

	case FormatCBOR:
		data, err := cbor.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to encode CBOR report: %w", err)
		}
		_, err = w.Write(data)
		return err

	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode JSON report: %w", err)
		}
		return nil
	}
}

// SaveReport writes the report to path in the format implied by its extension
func SaveReport(path string, r *Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	if err := WriteReport(f, r, FormatForPath(path)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
