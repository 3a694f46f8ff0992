// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scs

import (
	"bufio"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResync_SkipsNoise(t *testing.T) {
	frame := mustStatus(3, 0, []byte{0x01})
	stream := append([]byte{0x12, 0xFF, 0x00, 0x34}, frame...)
	r := bufio.NewReader(bytes.NewReader(stream))

	skipped, err := Resync(r)
	require.NoError(t, err)
	assert.Equal(t, 4, skipped)

	f, err := ParseStatus(r)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), f.ID())
}

func TestResync_RunOfHeaderBytes(t *testing.T) {
	frame := mustStatus(1, 0, nil)
	stream := append([]byte{0xFF, 0xFF, 0xFF}, frame...)
	r := bufio.NewReader(bytes.NewReader(stream))

	skipped, err := Resync(r)
	require.NoError(t, err)
	assert.Equal(t, 3, skipped)

	f, err := ParseStatus(r)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), f.ID())
}

func TestResync_AlreadyAligned(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader(mustStatus(1, 0, nil)))
	skipped, err := Resync(r)
	require.NoError(t, err)
	assert.Zero(t, skipped)
}

func TestResync_NoHeader(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte{0x01, 0x02, 0x03}))
	skipped, err := Resync(r)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, skipped)
}
