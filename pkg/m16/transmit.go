// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package m16

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// Transmission summarizes one SendMessage call
type Transmission struct {
	Chunks       []string
	BytesWritten int
	AcksMissed   int
	Diagnostic   bool // acknowledgements were awaited
}

// SplitChunks pads text to an even length with one space and splits it into
// ChunkSize pieces, in order.
func SplitChunks(text string) []string {
	if len(text)%ChunkSize != 0 {
		text += " "
	}
	chunks := make([]string, 0, len(text)/ChunkSize)
	for i := 0; i < len(text); i += ChunkSize {
		chunks = append(chunks, text[i:i+ChunkSize])
	}
	return chunks
}

func validateText(text string) error {
	for i := 0; i < len(text); i++ {
		if text[i] > 0x7F {
			return &ValidationError{Field: "message", Value: text, Message: "must be ASCII"}
		}
	}
	return nil
}

// SendTwoBytes writes exactly two ASCII characters and waits the settle delay
func (m *Modem) SendTwoBytes(data string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.writeChunk(data)
	if err != nil {
		return n, err
	}
	m.clock.Sleep(m.timing.Settle())
	return n, nil
}

// writeChunk is the raw 2-byte send primitive. Caller holds m.mu.
func (m *Modem) writeChunk(chunk string) (int, error) {
	if m.closed {
		return 0, ErrClosed
	}
	if len(chunk) != ChunkSize {
		return 0, &ValidationError{Field: "chunk", Value: chunk, Message: "must be exactly 2 characters"}
	}
	if err := validateText(chunk); err != nil {
		return 0, err
	}
	if err := m.write([]byte(chunk)); err != nil {
		return 0, err
	}
	return len(chunk), nil
}

// SendMessage sends text as consecutive 2-byte chunks. In diagnostic mode
// each chunk waits up to perChunkTimeout for a report with TX_COMPLETE set;
// a missing acknowledgement is logged and the next chunk goes out anyway.
// Otherwise each chunk is followed by the fixed dwell time.
func (m *Modem) SendMessage(text string, perChunkTimeout time.Duration) (Transmission, error) {
	if err := validateText(text); err != nil {
		return Transmission{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := Transmission{
		Chunks:     SplitChunks(text),
		Diagnostic: m.mirror.Snapshot().Diagnostic(),
	}

	for _, chunk := range tx.Chunks {
		n, err := m.writeChunk(chunk)
		tx.BytesWritten += n
		if err != nil {
			return tx, err
		}
		m.logger.Info("sent chunk", zap.String("chunk", chunk))

		if !tx.Diagnostic {
			m.stats.recordChunk(false, false)
			m.clock.Sleep(m.timing.Dwell())
			continue
		}

		acked, err := m.awaitTransmitComplete(perChunkTimeout)
		if err != nil {
			return tx, err
		}
		m.stats.recordChunk(acked, true)
		if acked {
			m.logger.Info("transmission complete for chunk", zap.String("chunk", chunk))
		} else {
			tx.AcksMissed++
			m.logger.Warn("no TX_COMPLETE for chunk", zap.String("chunk", chunk), zap.Duration("timeout", perChunkTimeout))
		}
	}

	return tx, nil
}

// awaitTransmitComplete polls for reports until one has TX_COMPLETE set or
// the timeout passes. Only transport errors abort the wait.
// Caller holds m.mu.
func (m *Modem) awaitTransmitComplete(timeout time.Duration) (bool, error) {
	deadline := m.clock.Now().Add(timeout)

	for m.clock.Now().Before(deadline) {
		wait := deadline.Sub(m.clock.Now())
		if wait > m.timing.FrameWait {
			wait = m.timing.FrameWait
		}

		report, _, err := m.readReport(wait)
		if err != nil && (IsTransportError(err) || errors.Is(err, ErrClosed)) {
			return false, err
		}
		if report != nil && report.TransmitComplete() {
			return true, nil
		}
		m.clock.Sleep(m.timing.Poll)
	}
	return false, nil
}
