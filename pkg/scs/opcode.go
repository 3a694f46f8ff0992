// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scs

import "fmt"

// Opcode is the instruction byte of a request frame
type Opcode uint8

// Instruction opcodes. Values are fixed by the wire protocol.
const (
	OpPing      Opcode = 0x01
	OpRead      Opcode = 0x02
	OpWrite     Opcode = 0x03
	OpRegWrite  Opcode = 0x04
	OpAction    Opcode = 0x05
	OpSyncRead  Opcode = 0x82
	OpSyncWrite Opcode = 0x83
)

// Opcodes lists every defined opcode in wire-value order
var Opcodes = []Opcode{OpPing, OpRead, OpWrite, OpRegWrite, OpAction, OpSyncRead, OpSyncWrite}

// Valid reports whether op is a defined opcode
func (op Opcode) Valid() bool {
	_, ok := contracts[op]
	return ok
}

// String returns the opcode name
func (op Opcode) String() string {
	switch op {
	case OpPing:
		return "PING"
	case OpRead:
		return "READ"
	case OpWrite:
		return "WRITE"
	case OpRegWrite:
		return "REG_WRITE"
	case OpAction:
		return "ACTION"
	case OpSyncRead:
		return "SYNC_READ"
	case OpSyncWrite:
		return "SYNC_WRITE"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(op))
	}
}

// ResponseShape describes what the bus sends back for an instruction
type ResponseShape int

// Response shapes
const (
	ResponseStatus    ResponseShape = iota // one status frame from the addressed device
	ResponseNone                           // no reply
	ResponsePerDevice                      // one status frame per id listed in the parameters
)

// String returns the response shape name
func (r ResponseShape) String() string {
	switch r {
	case ResponseStatus:
		return "status"
	case ResponseNone:
		return "none"
	case ResponsePerDevice:
		return "per-device"
	default:
		return "unknown"
	}
}

// Contract is the parameter count and reply shape an opcode requires.
// The packet layer carries parameters opaquely; callers that compose
// parameters check them against the contract before building a frame.
type Contract struct {
	MinParams int
	MaxParams int
	Response  ResponseShape
}

// Check returns an error if n parameters violate the contract
func (c Contract) Check(n int) error {
	if n < c.MinParams || n > c.MaxParams {
		if c.MinParams == c.MaxParams {
			return fmt.Errorf("expected %d parameters, got %d", c.MinParams, n)
		}
		return fmt.Errorf("expected %d..%d parameters, got %d", c.MinParams, c.MaxParams, n)
	}
	return nil
}

var contracts = map[Opcode]Contract{
	// no parameters
	OpPing: {MinParams: 0, MaxParams: 0, Response: ResponseStatus},
	// start address, byte count
	OpRead: {MinParams: 2, MaxParams: 2, Response: ResponseStatus},
	// start address, data...
	OpWrite:    {MinParams: 2, MaxParams: MaxParams, Response: ResponseStatus},
	OpRegWrite: {MinParams: 2, MaxParams: MaxParams, Response: ResponseStatus},
	// no parameters; usually broadcast
	OpAction: {MinParams: 0, MaxParams: 0, Response: ResponseStatus},
	// start address, byte count, id...
	OpSyncRead: {MinParams: 3, MaxParams: MaxParams, Response: ResponsePerDevice},
	// start address, byte count, (id, data...)...
	OpSyncWrite: {MinParams: 4, MaxParams: MaxParams, Response: ResponseNone},
}

// ContractFor returns the contract of op. ok is false for undefined opcodes.
func ContractFor(op Opcode) (c Contract, ok bool) {
	c, ok = contracts[op]
	return c, ok
}
