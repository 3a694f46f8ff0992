// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scs

// Checksum computes the frame checksum over id, length, the instruction
// (or status error) byte and the parameters.
func Checksum(id, length, instr byte, params []byte) byte {
	// uint16 so the running sum never wraps before the final truncation
	sum := uint16(id) + uint16(length) + uint16(instr)
	for _, b := range params {
		sum += uint16(b)
	}
	return ^byte(sum & 0xFF)
}

// VerifyChecksum reports whether claimed matches the checksum of the fields
func VerifyChecksum(id, length, instr byte, params []byte, claimed byte) bool {
	return Checksum(id, length, instr, params) == claimed
}
