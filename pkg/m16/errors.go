// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package m16

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData is returned by ReadFrame when nothing arrived within the wait window
	ErrNoData = errors.New("m16: no data received")
	// ErrPartialFrame is returned together with the accumulated bytes when
	// data arrived but no delimited frame could be found before the deadline
	ErrPartialFrame = errors.New("m16: no complete frame before deadline")
	// ErrClosed is returned when operating on a closed modem
	ErrClosed = errors.New("m16: modem closed")
)

// ValidationError reports an argument rejected before anything was written
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", v.Field, v.Value, v.Message)
}

// DecodeReason identifies why a frame was rejected
type DecodeReason int

const (
	ReasonLength DecodeReason = iota
	ReasonStartMarker
	ReasonEndMarker
	ReasonLayout
)

// String returns the reason name used in logs and statistics
func (r DecodeReason) String() string {
	switch r {
	case ReasonLength:
		return "length"
	case ReasonStartMarker:
		return "start_marker"
	case ReasonEndMarker:
		return "end_marker"
	case ReasonLayout:
		return "layout"
	default:
		return "unknown"
	}
}

// DecodeError is returned by Decode for frames that are not valid reports
type DecodeError struct {
	Reason DecodeReason
	Length int
}

// Error implements the error interface
func (d *DecodeError) Error() string {
	switch d.Reason {
	case ReasonLength:
		return fmt.Sprintf("invalid frame length: %d (expected %d)", d.Length, FrameLength)
	case ReasonStartMarker:
		return "frame does not start with '$'"
	case ReasonEndMarker:
		return "frame does not end with '\\n'"
	default:
		return fmt.Sprintf("payload does not match report layout (%d bytes)", d.Length)
	}
}

// TransportError wraps a failure of the underlying byte channel. The
// connection should be considered unusable after one.
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (t *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", t.Op, t.Err)
}

// Unwrap returns the underlying error
func (t *TransportError) Unwrap() error {
	return t.Err
}

// IsTransportError reports whether err came from the byte channel
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
