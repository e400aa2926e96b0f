// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package m16

import (
	"errors"
	"time"
)

// ============================================================
// Virtual clock
// ============================================================

type fakeClock struct {
	start  time.Time
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return &fakeClock{start: t0, now: t0}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) elapsed() time.Duration { return c.now.Sub(c.start) }

func (c *fakeClock) totalSleep() time.Duration {
	var total time.Duration
	for _, d := range c.sleeps {
		total += d
	}
	return total
}

// ============================================================
// Scripted transport
// ============================================================

type delivery struct {
	at   time.Duration // offset from clock start
	data []byte
}

// scriptTransport delivers scheduled bytes as the virtual clock advances and
// records every write.
type scriptTransport struct {
	clock     *fakeClock
	scheduled []delivery
	pending   []byte
	writes    [][]byte
	polls     int
	readErr   error
	writeErr  error
	closed    bool
	onWrite   func(t *scriptTransport, p []byte)
}

func newScriptTransport(clock *fakeClock) *scriptTransport {
	return &scriptTransport{clock: clock}
}

// deliverAt schedules data to become readable at the given clock offset
func (t *scriptTransport) deliverAt(at time.Duration, data []byte) {
	t.scheduled = append(t.scheduled, delivery{at: at, data: data})
}

// deliverNow makes data readable immediately
func (t *scriptTransport) deliverNow(data []byte) {
	t.pending = append(t.pending, data...)
}

func (t *scriptTransport) release() {
	remaining := t.scheduled[:0]
	for _, d := range t.scheduled {
		if t.clock.elapsed() >= d.at {
			t.pending = append(t.pending, d.data...)
		} else {
			remaining = append(remaining, d)
		}
	}
	t.scheduled = remaining
}

func (t *scriptTransport) Available() bool {
	t.polls++
	if t.readErr != nil {
		return true
	}
	t.release()
	return len(t.pending) > 0
}

func (t *scriptTransport) ReadAvailable() ([]byte, error) {
	if t.readErr != nil {
		return nil, t.readErr
	}
	t.release()
	data := t.pending
	t.pending = nil
	return data, nil
}

func (t *scriptTransport) Write(p []byte) (int, error) {
	if t.closed {
		return 0, errors.New("write on closed transport")
	}
	if t.writeErr != nil {
		return 0, t.writeErr
	}
	t.writes = append(t.writes, append([]byte(nil), p...))
	if t.onWrite != nil {
		t.onWrite(t, p)
	}
	return len(p), nil
}

func (t *scriptTransport) Close() error {
	t.closed = true
	return nil
}

// written returns all writes as strings
func (t *scriptTransport) written() []string {
	out := make([]string, len(t.writes))
	for i, w := range t.writes {
		out[i] = string(w)
	}
	return out
}

// ============================================================
// Frame builders
// ============================================================

type frameFields struct {
	trBlock       uint16
	ber           uint8
	signal        uint8
	noise         uint8
	packetValid   uint16
	packetInvalid uint8
	gitRev        uint8
	time          uint32
	chipID        uint16
	hwRev         uint8
	channel       uint8
	tbValid       uint8
	txComplete    uint8
	diagnostic    uint8
	level         uint8 // raw (inverted) level
}

func buildFrame(f frameFields) []byte {
	flags := f.hwRev&0x03 | (f.channel&0x0F)<<2 | (f.tbValid&1)<<6 | (f.txComplete&1)<<7
	mode := f.diagnostic&1 | (f.level&0x03)<<2
	return []byte{
		StartMarker,
		byte(f.trBlock), byte(f.trBlock >> 8),
		f.ber, f.signal, f.noise,
		byte(f.packetValid), byte(f.packetValid >> 8),
		f.packetInvalid,
		f.gitRev,
		byte(f.time), byte(f.time >> 8), byte(f.time >> 16),
		byte(f.chipID), byte(f.chipID >> 8),
		flags, mode,
		EndMarker,
	}
}

// statusFrame builds a report frame carrying only configuration bits
func statusFrame(channel, powerLevel int, diagnostic, txComplete bool) []byte {
	f := frameFields{
		channel: uint8(channel),
		level:   uint8(InvertLevel(powerLevel)),
	}
	if diagnostic {
		f.diagnostic = 1
	}
	if txComplete {
		f.txComplete = 1
	}
	return buildFrame(f)
}

func newTestModem(opts ...Option) (*Modem, *scriptTransport, *fakeClock) {
	clock := newFakeClock()
	tr := newScriptTransport(clock)
	opts = append([]Option{WithClock(clock)}, opts...)
	return Open(tr, opts...), tr, clock
}
