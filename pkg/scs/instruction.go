// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scs

import (
	"fmt"
	"io"
)

// InstructionFrame is an outbound request frame. The checksum is computed
// once by BuildInstruction; fields are read-only afterwards.
type InstructionFrame struct {
	id       uint8
	length   uint8
	opcode   Opcode
	params   []byte
	checksum byte
}

// BuildInstruction creates an instruction frame for the given device.
// Returns an error wrapping ErrOversizeFrame if the encoded frame would
// exceed MaxFrameSize. Parameters are copied.
func BuildInstruction(id uint8, op Opcode, params []byte) (*InstructionFrame, error) {
	if len(params) > MaxParams {
		return nil, fmt.Errorf("%w: %d bytes with %d parameters (max %d)",
			ErrOversizeFrame, len(params)+FrameOverhead, len(params), MaxParams)
	}

	p := make([]byte, len(params))
	copy(p, params)
	length := uint8(len(p) + MinLength)

	return &InstructionFrame{
		id:       id,
		length:   length,
		opcode:   op,
		params:   p,
		checksum: Checksum(id, length, byte(op), p),
	}, nil
}

// ID returns the addressed device id
func (f *InstructionFrame) ID() uint8 {
	return f.id
}

// Length returns the frame length field (parameters + 2)
func (f *InstructionFrame) Length() uint8 {
	return f.length
}

// Opcode returns the instruction opcode
func (f *InstructionFrame) Opcode() Opcode {
	return f.opcode
}

// Params returns a copy of the instruction parameters
func (f *InstructionFrame) Params() []byte {
	p := make([]byte, len(f.params))
	copy(p, f.params)
	return p
}

// Checksum returns the frame checksum
func (f *InstructionFrame) Checksum() byte {
	return f.checksum
}

// Size returns the number of bytes Bytes produces
func (f *InstructionFrame) Size() int {
	return int(f.length) + 4
}

// IsBroadcast returns true if the frame is addressed to all devices
func (f *InstructionFrame) IsBroadcast() bool {
	return f.id == BroadcastID
}

// Bytes returns the wire encoding of the frame
func (f *InstructionFrame) Bytes() []byte {
	out := make([]byte, 0, f.Size())
	out = append(out, HeaderByte, HeaderByte, f.id, f.length, byte(f.opcode))
	out = append(out, f.params...)
	return append(out, f.checksum)
}

// ParseInstruction reads one instruction frame from r. It validates the
// same way ParseStatus does and is meant for passive bus inspection and
// capture replay. Unknown opcodes are accepted as-is.
func ParseInstruction(r io.Reader) (*InstructionFrame, error) {
	raw, err := readFrame(r, nil)
	if err != nil {
		return nil, err
	}
	return &InstructionFrame{
		id:       raw.id,
		length:   raw.length,
		opcode:   Opcode(raw.instr),
		params:   raw.params,
		checksum: raw.checksum,
	}, nil
}
