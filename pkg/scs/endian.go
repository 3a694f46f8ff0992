// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scs

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Endianness selects how multi-byte register values are laid out inside
// frame parameters. Frame fields themselves are single bytes; the session
// only stores this setting for the layer that encodes register values.
type Endianness int

// Byte orders
const (
	LittleEndian Endianness = iota
	BigEndian
)

// ParseEndianness parses "little" or "big"
func ParseEndianness(s string) (Endianness, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "little", "le":
		return LittleEndian, nil
	case "big", "be":
		return BigEndian, nil
	default:
		return LittleEndian, fmt.Errorf("unknown byte order %q (use little or big)", s)
	}
}

// String returns "little" or "big"
func (e Endianness) String() string {
	if e == BigEndian {
		return "big"
	}
	return "little"
}

// ByteOrder returns the encoding/binary order
func (e Endianness) ByteOrder() binary.ByteOrder {
	if e == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Uint16 decodes a 16-bit register value
func (e Endianness) Uint16(b []byte) uint16 {
	return e.ByteOrder().Uint16(b)
}

// PutUint16 encodes a 16-bit register value
func (e Endianness) PutUint16(b []byte, v uint16) {
	e.ByteOrder().PutUint16(b, v)
}

// AppendUint16 appends a 16-bit register value
func (e Endianness) AppendUint16(b []byte, v uint16) []byte {
	var buf [2]byte
	e.PutUint16(buf[:], v)
	return append(b, buf[:]...)
}
