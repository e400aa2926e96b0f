// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrClosed is returned by a pump after Close
var ErrClosed = errors.New("link closed")

const readBufferSize = 256

// Option configures a link
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger for the link
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Pump turns a blocking byte stream into the polled transport the modem
// driver expects. A background goroutine reads into a buffer; Available and
// ReadAvailable never block.
type Pump struct {
	rw     io.ReadWriteCloser
	logger *zap.Logger

	mu     sync.Mutex
	buf    []byte
	err    error
	closed bool

	done      chan struct{}
	closeOnce sync.Once
}

// NewPump starts reading from rw
func NewPump(rw io.ReadWriteCloser, opts ...Option) *Pump {
	o := buildOptions(opts)
	p := &Pump{
		rw:     rw,
		logger: o.logger,
		done:   make(chan struct{}),
	}
	go p.readLoop()
	return p
}

func (p *Pump) readLoop() {
	defer close(p.done)

	chunk := make([]byte, readBufferSize)
	for {
		n, err := p.rw.Read(chunk)

		p.mu.Lock()
		if n > 0 {
			p.buf = append(p.buf, chunk[:n]...)
		}
		if err != nil {
			if p.closed {
				p.err = ErrClosed
			} else {
				p.err = err
				p.logger.Warn("link read failed", zap.Error(err))
			}
		}
		p.mu.Unlock()

		if err != nil {
			return
		}
	}
}

// Available reports whether buffered data or a read error is pending
func (p *Pump) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf) > 0 || p.err != nil
}

// ReadAvailable drains the buffer. Buffered bytes are delivered before a
// pending read error.
func (p *Pump) ReadAvailable() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.buf) > 0 {
		data := p.buf
		p.buf = nil
		return data, nil
	}
	return nil, p.err
}

// Write sends p to the underlying stream
func (p *Pump) Write(b []byte) (int, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}
	return p.rw.Write(b)
}

// Close closes the stream and waits briefly for the reader to exit
func (p *Pump) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		err = p.rw.Close()
		select {
		case <-p.done:
		case <-time.After(time.Second):
			p.logger.Warn("link reader did not exit after close")
		}
	})
	return err
}
