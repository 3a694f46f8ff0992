// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package scs implements the packet layer of the Feetech SCS/STS serial
// servo protocol, a Robotis Protocol 1.0 compatible framing.
//
// The package builds and checksums instruction frames, writes them to a
// Transport, and parses and validates the status frames devices send back.
// Every transmit or receive condition is reported as an outcome value;
// nothing in this package panics or exits on malformed bus data.
//
// Wire layout (both directions):
//
//	0xFF 0xFF | ID | LENGTH | INSTR/ERROR | PARAMS... | CHECKSUM
//
// LENGTH counts the parameters plus two (the instruction/error byte and
// the checksum). The checksum is the complement of the low byte of the sum
// of ID, LENGTH, INSTR/ERROR and every parameter.
package scs

// Frame header
const (
	HeaderByte = 0xFF
	HeaderSize = 2
)

// Frame size limits
const (
	MaxFrameSize  = 250 // header + id + length + instr + params + checksum
	FrameOverhead = 6   // everything in a frame except the parameters
	MaxParams     = MaxFrameSize - FrameOverhead
	MinLength     = 2 // instr/error byte + checksum
)

// Special device IDs
const (
	BroadcastID = 0xFE // all devices, no status reply
	MaxDeviceID = 0xFD // highest addressable device
)

// Status error flags (bit-field carried in the status frame error byte)
const (
	ErrFlagVoltage     = 0x01
	ErrFlagAngleLimit  = 0x02
	ErrFlagOverheat    = 0x04
	ErrFlagRange       = 0x08
	ErrFlagChecksum    = 0x10
	ErrFlagOverload    = 0x20
	ErrFlagInstruction = 0x40
)

// Session states
type State int

// State values, in the order a round trip walks through them
const (
	StateIdle State = iota
	StateTransmitting
	StateAwaitingHeader
	StateAwaitingMeta
	StateAwaitingParams
	StateAwaitingChecksum
	StateValidating
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateTransmitting:
		return "TRANSMITTING"
	case StateAwaitingHeader:
		return "AWAITING_HEADER"
	case StateAwaitingMeta:
		return "AWAITING_META"
	case StateAwaitingParams:
		return "AWAITING_PARAMS"
	case StateAwaitingChecksum:
		return "AWAITING_CHECKSUM"
	case StateValidating:
		return "VALIDATING"
	default:
		return "UNKNOWN"
	}
}
