// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpcode_WireValues(t *testing.T) {
	expected := map[Opcode]byte{
		OpPing:      0x01,
		OpRead:      0x02,
		OpWrite:     0x03,
		OpRegWrite:  0x04,
		OpAction:    0x05,
		OpSyncRead:  0x82,
		OpSyncWrite: 0x83,
	}
	require.Len(t, Opcodes, len(expected))
	for op, b := range expected {
		assert.Equal(t, b, byte(op), op.String())
		assert.True(t, op.Valid())
	}
	assert.False(t, Opcode(0x06).Valid())
	assert.Equal(t, "UNKNOWN(0x06)", Opcode(0x06).String())
}

func TestContract_EveryOpcodeDefined(t *testing.T) {
	for _, op := range Opcodes {
		c, ok := ContractFor(op)
		require.True(t, ok, "%s has no contract", op)
		assert.LessOrEqual(t, c.MinParams, c.MaxParams)
		assert.LessOrEqual(t, c.MaxParams, MaxParams)
	}
	_, ok := ContractFor(Opcode(0x7F))
	assert.False(t, ok)
}

func TestContract_Check(t *testing.T) {
	tests := []struct {
		op    Opcode
		count int
		ok    bool
	}{
		{OpPing, 0, true},
		{OpPing, 1, false},
		{OpRead, 2, true},
		{OpRead, 1, false},
		{OpRead, 3, false},
		{OpWrite, 1, false},
		{OpWrite, 2, true},
		{OpWrite, MaxParams, true},
		{OpWrite, MaxParams + 1, false},
		{OpAction, 0, true},
		{OpSyncRead, 2, false},
		{OpSyncRead, 4, true},
		{OpSyncWrite, 3, false},
		{OpSyncWrite, 7, true},
	}

	for _, tt := range tests {
		c, _ := ContractFor(tt.op)
		err := c.Check(tt.count)
		if tt.ok {
			assert.NoError(t, err, "%s with %d params", tt.op, tt.count)
		} else {
			assert.Error(t, err, "%s with %d params", tt.op, tt.count)
		}
	}
}

func TestContract_ResponseShapes(t *testing.T) {
	c, _ := ContractFor(OpSyncWrite)
	assert.Equal(t, ResponseNone, c.Response)
	c, _ = ContractFor(OpSyncRead)
	assert.Equal(t, ResponsePerDevice, c.Response)
	c, _ = ContractFor(OpPing)
	assert.Equal(t, ResponseStatus, c.Response)
}

func TestEndianness(t *testing.T) {
	buf := make([]byte, 2)
	LittleEndian.PutUint16(buf, 0x0800)
	assert.Equal(t, []byte{0x00, 0x08}, buf)
	BigEndian.PutUint16(buf, 0x0800)
	assert.Equal(t, []byte{0x08, 0x00}, buf)

	assert.Equal(t, []byte{0x2A, 0xD2, 0x04}, LittleEndian.AppendUint16([]byte{0x2A}, 1234))
	assert.Equal(t, uint16(1234), BigEndian.Uint16([]byte{0x04, 0xD2}))

	e, err := ParseEndianness("BIG")
	require.NoError(t, err)
	assert.Equal(t, BigEndian, e)
	e, err = ParseEndianness("")
	require.NoError(t, err)
	assert.Equal(t, LittleEndian, e)
	_, err = ParseEndianness("middle")
	assert.Error(t, err)
}
