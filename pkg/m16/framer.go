// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package m16

import (
	"bytes"
	"io"
	"time"

	"go.uber.org/zap"
)

// Transport is the duplex byte channel to the modem. Implementations are
// not required to be safe for concurrent use; the Modem serializes access.
type Transport interface {
	// Available reports whether ReadAvailable would return data right now
	Available() bool
	// ReadAvailable returns the bytes received so far without blocking
	ReadAvailable() ([]byte, error)
	io.Writer
	io.Closer
}

// Framer reassembles report frames from the transport byte stream.
//
// It is deliberately lenient: a candidate is anything from a '$' to a
// '\n' at least FrameLength bytes later. Strict checks belong to Decode.
type Framer struct {
	t      Transport
	clock  Clock
	poll   time.Duration
	stats  *Statistics
	logger *zap.Logger
}

// NewFramer creates a frame reader over t
func NewFramer(t Transport, clock Clock, poll time.Duration) *Framer {
	if clock == nil {
		clock = SystemClock()
	}
	return &Framer{
		t:      t,
		clock:  clock,
		poll:   poll,
		logger: zap.NewNop(),
	}
}

// ReadFrame polls the transport for up to maxWait and returns the first
// candidate frame found. A candidate of exactly FrameLength bytes is returned
// as-is and a longer one is truncated to FrameLength.
//
// If the window closes without a candidate, the bytes that did arrive are
// returned along with ErrPartialFrame; if nothing arrived the error is
// ErrNoData. Transport failures are returned as *TransportError.
func (f *Framer) ReadFrame(maxWait time.Duration) ([]byte, error) {
	var buffer []byte
	deadline := f.clock.Now().Add(maxWait)

	for {
		received := false
		if f.t.Available() {
			data, err := f.t.ReadAvailable()
			if err != nil {
				return nil, &TransportError{Op: "read", Err: err}
			}
			if len(data) > 0 {
				received = true
				buffer = append(buffer, data...)
				f.stats.recordBytesRead(len(data))
				f.logger.Debug("buffer updated", zap.Int("length", len(buffer)), zap.Binary("buffer", buffer))
			}

			if frame, ok := findFrame(buffer); ok {
				f.stats.recordFrame()
				f.logger.Debug("frame found", zap.Binary("frame", frame))
				return frame, nil
			}
		}

		if !f.clock.Now().Before(deadline) {
			break
		}
		if !received {
			f.clock.Sleep(f.poll)
		}
	}

	if len(buffer) == 0 {
		f.stats.recordTimeout()
		return nil, ErrNoData
	}
	f.stats.recordPartial()
	f.logger.Debug("returning partial buffer", zap.Binary("buffer", buffer))
	return buffer, ErrPartialFrame
}

// findFrame locates the first candidate frame in buf. End markers closer than
// FrameLength to the start marker are part of the binary payload and skipped.
func findFrame(buf []byte) ([]byte, bool) {
	start := bytes.IndexByte(buf, StartMarker)
	if start < 0 {
		return nil, false
	}

	offset := start
	for {
		i := bytes.IndexByte(buf[offset:], EndMarker)
		if i < 0 {
			return nil, false
		}
		end := offset + i
		if end-start+1 >= FrameLength {
			frame := make([]byte, FrameLength)
			copy(frame, buf[start:start+FrameLength])
			return frame, true
		}
		offset = end + 1
	}
}
