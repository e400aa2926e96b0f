// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package m16

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Statistics tracks link traffic and error counts for one modem connection.
// A nil *Statistics is valid and records nothing.
type Statistics struct {
	mu sync.Mutex
	s  StatsSnapshot
}

// StatsSnapshot is a point-in-time copy of the counters
type StatsSnapshot struct {
	StartTime time.Time

	// Receive side
	BytesRead      uint64
	Frames         uint64
	PartialFrames  uint64
	Timeouts       uint64
	ReportsDecoded uint64
	LengthErrors   uint64
	MarkerErrors   uint64
	LayoutErrors   uint64

	// Transmit side
	BytesWritten uint64
	Commands     map[byte]uint64
	ChunksSent   uint64
	AcksReceived uint64
	AcksMissed   uint64
}

// DecodeErrors is the total of all rejected frames
func (s StatsSnapshot) DecodeErrors() uint64 {
	return s.LengthErrors + s.MarkerErrors + s.LayoutErrors
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{s: StatsSnapshot{
		StartTime: time.Now(),
		Commands:  make(map[byte]uint64),
	}}
}

func (st *Statistics) update(fn func(s *StatsSnapshot)) {
	if st == nil {
		return
	}
	st.mu.Lock()
	fn(&st.s)
	st.mu.Unlock()
}

func (st *Statistics) recordBytesRead(n int) {
	st.update(func(s *StatsSnapshot) { s.BytesRead += uint64(n) })
}

func (st *Statistics) recordBytesWritten(n int) {
	st.update(func(s *StatsSnapshot) { s.BytesWritten += uint64(n) })
}

func (st *Statistics) recordFrame() {
	st.update(func(s *StatsSnapshot) { s.Frames++ })
}

func (st *Statistics) recordPartial() {
	st.update(func(s *StatsSnapshot) { s.PartialFrames++ })
}

func (st *Statistics) recordTimeout() {
	st.update(func(s *StatsSnapshot) { s.Timeouts++ })
}

func (st *Statistics) recordCommand(selector byte) {
	st.update(func(s *StatsSnapshot) { s.Commands[selector]++ })
}

func (st *Statistics) recordChunk(acked, diagnostic bool) {
	st.update(func(s *StatsSnapshot) {
		s.ChunksSent++
		if !diagnostic {
			return
		}
		if acked {
			s.AcksReceived++
		} else {
			s.AcksMissed++
		}
	})
}

// RecordDecode counts the outcome of one Decode call
func (st *Statistics) RecordDecode(err error) {
	st.update(func(s *StatsSnapshot) {
		if err == nil {
			s.ReportsDecoded++
			return
		}
		var de *DecodeError
		if !errors.As(err, &de) {
			return
		}
		switch de.Reason {
		case ReasonLength:
			s.LengthErrors++
		case ReasonStartMarker, ReasonEndMarker:
			s.MarkerErrors++
		default:
			s.LayoutErrors++
		}
	})
}

// Snapshot returns a copy of the counters
func (st *Statistics) Snapshot() StatsSnapshot {
	if st == nil {
		return StatsSnapshot{}
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	snap := st.s
	snap.Commands = make(map[byte]uint64, len(st.s.Commands))
	for k, v := range st.s.Commands {
		snap.Commands[k] = v
	}
	return snap
}

// Reset resets all statistics counters
func (st *Statistics) Reset() {
	st.update(func(s *StatsSnapshot) {
		*s = StatsSnapshot{
			StartTime: time.Now(),
			Commands:  make(map[byte]uint64),
		}
	})
}

// String returns a formatted statistics summary
func (st *Statistics) String() string {
	s := st.Snapshot()
	elapsed := time.Since(s.StartTime)

	var frameRate float64
	if elapsed.Seconds() > 0 {
		frameRate = float64(s.Frames) / elapsed.Seconds()
	}

	var validPercent float64
	if s.Frames > 0 {
		validPercent = float64(s.ReportsDecoded) * 100.0 / float64(s.Frames)
	}

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Bytes Read:      %8d\n", s.BytesRead)
	result += fmt.Sprintf("Frames:          %8d\n", s.Frames)
	result += fmt.Sprintf("Valid Reports:   %8d (%.1f%%)\n", s.ReportsDecoded, validPercent)

	if s.DecodeErrors() > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d\n", s.DecodeErrors())
		if s.LengthErrors > 0 {
			result += fmt.Sprintf("  Length:           %5d\n", s.LengthErrors)
		}
		if s.MarkerErrors > 0 {
			result += fmt.Sprintf("  Markers:          %5d\n", s.MarkerErrors)
		}
		if s.LayoutErrors > 0 {
			result += fmt.Sprintf("  Layout:           %5d\n", s.LayoutErrors)
		}
	}
	if s.PartialFrames > 0 {
		result += fmt.Sprintf("Partial Frames:  %8d\n", s.PartialFrames)
	}
	if s.Timeouts > 0 {
		result += fmt.Sprintf("Timeouts:        %8d\n", s.Timeouts)
	}
	if s.BytesWritten > 0 {
		result += fmt.Sprintf("Bytes Written:   %8d\n", s.BytesWritten)
	}
	if s.ChunksSent > 0 {
		result += fmt.Sprintf("Chunks Sent:     %8d (acked %d, missed %d)\n", s.ChunksSent, s.AcksReceived, s.AcksMissed)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", frameRate)
	result += "================================\n"

	return result
}
