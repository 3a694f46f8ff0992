// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scs

import (
	"errors"
	"fmt"
)

// ErrOversizeFrame is returned when a frame would exceed MaxFrameSize
var ErrOversizeFrame = errors.New("scs: frame exceeds maximum size")

// CorruptReason identifies why a received frame was rejected
type CorruptReason int

// Corrupt frame reasons
const (
	ReasonBadHeader CorruptReason = iota + 1
	ReasonBadLength
	ReasonShortRead
	ReasonChecksum
	ReasonIDMismatch
)

// String returns the reason name
func (r CorruptReason) String() string {
	switch r {
	case ReasonBadHeader:
		return "bad header"
	case ReasonBadLength:
		return "bad length"
	case ReasonShortRead:
		return "short read"
	case ReasonChecksum:
		return "checksum mismatch"
	case ReasonIDMismatch:
		return "id mismatch"
	default:
		return "unknown"
	}
}

// CorruptError reports a frame that violated the wire format
type CorruptError struct {
	Reason CorruptReason
	State  State // stage of the read at which the violation was seen

	// Expected and Got hold the offending byte values for header,
	// checksum and id mismatches
	Expected byte
	Got      byte

	Err error // underlying short-read error, if any
}

// Error implements the error interface
func (e *CorruptError) Error() string {
	switch e.Reason {
	case ReasonChecksum:
		return fmt.Sprintf("scs: corrupt frame: checksum mismatch: expected 0x%02X, got 0x%02X", e.Expected, e.Got)
	case ReasonIDMismatch:
		return fmt.Sprintf("scs: corrupt frame: reply from id %d, expected %d", e.Got, e.Expected)
	case ReasonBadHeader:
		return fmt.Sprintf("scs: corrupt frame: bad header byte 0x%02X", e.Got)
	case ReasonBadLength:
		return fmt.Sprintf("scs: corrupt frame: length %d below minimum %d", e.Got, MinLength)
	case ReasonShortRead:
		return fmt.Sprintf("scs: corrupt frame: short read in %s: %v", e.State, e.Err)
	default:
		return "scs: corrupt frame"
	}
}

// Unwrap returns the underlying read error
func (e *CorruptError) Unwrap() error {
	return e.Err
}

// IsCorrupt reports whether err is or wraps a *CorruptError
func IsCorrupt(err error) bool {
	var ce *CorruptError
	return errors.As(err, &ce)
}

// readError wraps a transport read fault with the stage it interrupted
type readError struct {
	state State
	err   error
}

func (e *readError) Error() string {
	return fmt.Sprintf("scs: read failed in %s: %v", e.state, e.err)
}

func (e *readError) Unwrap() error {
	return e.err
}
