// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scs

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireCorrupt(t *testing.T, err error, reason CorruptReason) *CorruptError {
	t.Helper()
	var ce *CorruptError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, reason, ce.Reason, "reason: %s", ce.Reason)
	return ce
}

func TestParseStatus_Valid(t *testing.T) {
	stream := []byte{0xFF, 0xFF, 0x01, 0x04, 0x00, 0x00, 0x08, 0xF2}
	require.Equal(t, Checksum(0x01, 0x04, 0x00, []byte{0x00, 0x08}), stream[7])

	f, err := ParseStatus(bytes.NewReader(stream))
	require.NoError(t, err)

	assert.Equal(t, uint8(1), f.ID())
	assert.Equal(t, uint8(4), f.Length())
	assert.Equal(t, ServoError(0), f.ErrorFlags())
	assert.Equal(t, []byte{0x00, 0x08}, f.Params())
	assert.Equal(t, stream, f.Bytes())
}

func TestParseStatus_NoParams(t *testing.T) {
	f, err := ParseStatus(bytes.NewReader([]byte{0xFF, 0xFF, 0x01, 0x02, 0x00, 0xFC}))
	require.NoError(t, err)
	assert.Empty(t, f.Params())
}

func TestParseStatus_ParamsAreCopied(t *testing.T) {
	f, err := ParseStatus(bytes.NewReader(mustStatus(1, 0, []byte{0x01, 0x02})))
	require.NoError(t, err)

	f.Params()[0] = 0x09
	assert.Equal(t, []byte{0x01, 0x02}, f.Params())

	again, err := ParseStatus(bytes.NewReader(f.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, again.Params())
}

func TestParseStatus_ChecksumMismatchExample(t *testing.T) {
	// computed checksum is ~(1+2+0) = 0xFC
	_, err := ParseStatus(bytes.NewReader([]byte{0xFF, 0xFF, 0x01, 0x02, 0x00, 0xFD}))
	ce := requireCorrupt(t, err, ReasonChecksum)
	assert.Equal(t, byte(0xFC), ce.Expected)
	assert.Equal(t, byte(0xFD), ce.Got)
}

func TestParseStatus_BadHeader(t *testing.T) {
	tests := []struct {
		name   string
		stream []byte
	}{
		{"first byte", []byte{0xFE, 0xFF, 0x01, 0x02, 0x00, 0xFC}},
		{"second byte", []byte{0xFF, 0x00, 0x01, 0x02, 0x00, 0xFC}},
		{"both bytes", []byte{0x00, 0x00, 0x01, 0x02, 0x00, 0xFC}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStatus(bytes.NewReader(tt.stream))
			requireCorrupt(t, err, ReasonBadHeader)
		})
	}
}

func TestParseStatus_BadLength(t *testing.T) {
	for _, length := range []byte{0x00, 0x01} {
		_, err := ParseStatus(bytes.NewReader([]byte{0xFF, 0xFF, 0x01, length, 0x00, 0xFC}))
		requireCorrupt(t, err, ReasonBadLength)
	}
}

func TestParseStatus_ShortRead(t *testing.T) {
	full := mustStatus(1, 0, []byte{0x00, 0x08})

	tests := []struct {
		name  string
		n     int
		state State
	}{
		{"empty", 0, StateAwaitingHeader},
		{"half header", 1, StateAwaitingHeader},
		{"header only", 2, StateAwaitingMeta},
		{"partial meta", 4, StateAwaitingMeta},
		{"partial params", 6, StateAwaitingParams},
		{"missing checksum", 7, StateAwaitingChecksum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStatus(bytes.NewReader(full[:tt.n]))
			ce := requireCorrupt(t, err, ReasonShortRead)
			assert.Equal(t, tt.state, ce.State)
		})
	}
}

func TestParseStatus_OneByteReads(t *testing.T) {
	full := mustStatus(9, ErrFlagOverload, []byte{0x10, 0x20, 0x30})
	f, err := ParseStatus(iotest.OneByteReader(bytes.NewReader(full)))
	require.NoError(t, err)
	assert.True(t, f.ErrorFlags().Has(ErrFlagOverload))
	assert.Equal(t, []byte{0x10, 0x20, 0x30}, f.Params())
}

func TestParseStatus_TransportErrorsPassThrough(t *testing.T) {
	boom := errors.New("boom")

	_, err := ParseStatus(iotest.ErrReader(ErrTimeout))
	require.ErrorIs(t, err, ErrTimeout)
	assert.False(t, IsCorrupt(err))

	_, err = ParseStatus(iotest.ErrReader(boom))
	require.ErrorIs(t, err, boom)
	assert.False(t, IsCorrupt(err))

	// timeout after the header arrived
	r := io.MultiReader(bytes.NewReader([]byte{0xFF, 0xFF}), iotest.ErrReader(ErrTimeout))
	_, err = ParseStatus(r)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestEncodeStatus(t *testing.T) {
	b, err := EncodeStatus(1, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x01, 0x02, 0x00, 0xFC}, b)

	_, err = EncodeStatus(1, 0, make([]byte, MaxParams+1))
	require.ErrorIs(t, err, ErrOversizeFrame)
}

func TestServoError_String(t *testing.T) {
	assert.Equal(t, "none", ServoError(0).String())
	assert.Equal(t, "OVERHEAT", ServoError(ErrFlagOverheat).String())
	assert.Equal(t, "VOLTAGE|OVERLOAD", ServoError(ErrFlagVoltage|ErrFlagOverload).String())
}
