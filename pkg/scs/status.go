// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scs

import (
	"errors"
	"fmt"
	"io"
)

// StatusFrame is a validated response frame
type StatusFrame struct {
	id       uint8
	length   uint8
	errFlags byte
	params   []byte
	checksum byte
}

// ID returns the id of the responding device
func (f *StatusFrame) ID() uint8 {
	return f.id
}

// Length returns the frame length field (parameters + 2)
func (f *StatusFrame) Length() uint8 {
	return f.length
}

// ErrorFlags returns the status error bit-field
func (f *StatusFrame) ErrorFlags() ServoError {
	return ServoError(f.errFlags)
}

// Params returns a copy of the status parameters
func (f *StatusFrame) Params() []byte {
	p := make([]byte, len(f.params))
	copy(p, f.params)
	return p
}

// Checksum returns the frame checksum
func (f *StatusFrame) Checksum() byte {
	return f.checksum
}

// Bytes returns the wire encoding of the frame
func (f *StatusFrame) Bytes() []byte {
	out := make([]byte, 0, int(f.length)+4)
	out = append(out, HeaderByte, HeaderByte, f.id, f.length, f.errFlags)
	out = append(out, f.params...)
	return append(out, f.checksum)
}

// ParseStatus reads exactly one status frame from r.
//
// Framing violations (bad header, length below minimum, checksum mismatch,
// or the stream ending before the frame is complete) are returned as
// *CorruptError. Any other read error is returned wrapped, so callers can
// tell a transport fault or timeout from a damaged frame with errors.Is.
func ParseStatus(r io.Reader) (*StatusFrame, error) {
	return parseStatus(r, nil)
}

func parseStatus(r io.Reader, track func(State)) (*StatusFrame, error) {
	raw, err := readFrame(r, track)
	if err != nil {
		return nil, err
	}
	return &StatusFrame{
		id:       raw.id,
		length:   raw.length,
		errFlags: raw.instr,
		params:   raw.params,
		checksum: raw.checksum,
	}, nil
}

// EncodeStatus returns the wire encoding of a status frame. Devices send
// these; the function exists for simulators and tests.
func EncodeStatus(id uint8, errFlags byte, params []byte) ([]byte, error) {
	if len(params) > MaxParams {
		return nil, fmt.Errorf("%w: %d parameters (max %d)", ErrOversizeFrame, len(params), MaxParams)
	}
	length := uint8(len(params) + MinLength)
	out := make([]byte, 0, int(length)+4)
	out = append(out, HeaderByte, HeaderByte, id, length, errFlags)
	out = append(out, params...)
	return append(out, Checksum(id, length, errFlags, params)), nil
}

// rawFrame holds the fields common to both frame directions
type rawFrame struct {
	id       uint8
	length   uint8
	instr    byte
	params   []byte
	checksum byte
}

// readFrame walks header, meta, parameters and checksum, reporting each
// stage to track before reading it.
func readFrame(r io.Reader, track func(State)) (*rawFrame, error) {
	enter := func(s State) {
		if track != nil {
			track(s)
		}
	}

	enter(StateAwaitingHeader)
	var header [HeaderSize]byte
	if err := readExact(r, header[:], StateAwaitingHeader); err != nil {
		return nil, err
	}
	for _, b := range header {
		if b != HeaderByte {
			return nil, &CorruptError{Reason: ReasonBadHeader, State: StateAwaitingHeader, Expected: HeaderByte, Got: b}
		}
	}

	enter(StateAwaitingMeta)
	var meta [3]byte
	if err := readExact(r, meta[:], StateAwaitingMeta); err != nil {
		return nil, err
	}
	frame := &rawFrame{id: meta[0], length: meta[1], instr: meta[2]}
	if frame.length < MinLength {
		return nil, &CorruptError{Reason: ReasonBadLength, State: StateAwaitingMeta, Expected: MinLength, Got: frame.length}
	}

	enter(StateAwaitingParams)
	frame.params = make([]byte, int(frame.length)-MinLength)
	if err := readExact(r, frame.params, StateAwaitingParams); err != nil {
		return nil, err
	}

	enter(StateAwaitingChecksum)
	var sum [1]byte
	if err := readExact(r, sum[:], StateAwaitingChecksum); err != nil {
		return nil, err
	}
	frame.checksum = sum[0]

	enter(StateValidating)
	expected := Checksum(frame.id, frame.length, frame.instr, frame.params)
	if expected != frame.checksum {
		return nil, &CorruptError{Reason: ReasonChecksum, State: StateValidating, Expected: expected, Got: frame.checksum}
	}
	return frame, nil
}

// readExact fills buf, turning an early end of stream into a short-read
// CorruptError and wrapping every other error with the current stage.
func readExact(r io.Reader, buf []byte, state State) error {
	if len(buf) == 0 {
		return nil
	}
	_, err := io.ReadFull(r, buf)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &CorruptError{Reason: ReasonShortRead, State: state, Err: err}
	}
	return &readError{state: state, err: err}
}
