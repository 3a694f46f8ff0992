// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/servostat/pkg/scs"
)

func TestParseHexBytes(t *testing.T) {
	tests := []struct {
		in   string
		want []byte
	}{
		{"38 02", []byte{0x38, 0x02}},
		{"3802", []byte{0x38, 0x02}},
		{"0x38,0x02", []byte{0x38, 0x02}},
		{"ff:FE", []byte{0xFF, 0xFE}},
		{"", []byte{}},
	}
	for _, tt := range tests {
		got, err := parseHexBytes(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseHexBytes("3")
	assert.Error(t, err)
	_, err = parseHexBytes("zz")
	assert.Error(t, err)
}

func TestParseIDList(t *testing.T) {
	ids, err := parseIDList("1, 3,5-7")
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 3, 5, 6, 7}, ids)

	ids, err = parseIDList("0x10")
	require.NoError(t, err)
	assert.Equal(t, []uint8{16}, ids)

	for _, bad := range []string{"", "254", "7-5", "a", "1-300"} {
		_, err := parseIDList(bad)
		assert.Error(t, err, bad)
	}
}

func TestCheckID(t *testing.T) {
	id, err := checkID(253, false)
	require.NoError(t, err)
	assert.Equal(t, uint8(253), id)

	_, err = checkID(254, false)
	assert.Error(t, err)

	id, err = checkID(254, true)
	require.NoError(t, err)
	assert.Equal(t, uint8(scs.BroadcastID), id)

	_, err = checkID(255, true)
	assert.Error(t, err)
	_, err = checkID(-1, true)
	assert.Error(t, err)
}

func TestResultError(t *testing.T) {
	ok, err := scs.EncodeStatus(1, 0, nil)
	require.NoError(t, err)
	faulted, err := scs.EncodeStatus(1, scs.ErrFlagOverheat, nil)
	require.NoError(t, err)

	okStatus := mustParseStatus(t, ok)
	faultStatus := mustParseStatus(t, faulted)

	assert.NoError(t, resultError(scs.Result{Outcome: scs.RxSuccess, Status: okStatus}))
	assert.NoError(t, resultError(scs.Result{Outcome: scs.RxSuccess}))

	err = resultError(scs.Result{Outcome: scs.RxSuccess, Status: faultStatus})
	assert.Equal(t, ExitDevice, ExitCode(err))
	assert.ErrorContains(t, err, "OVERHEAT")

	assert.Equal(t, ExitDevice, ExitCode(resultError(scs.Result{Outcome: scs.RxTimeout, Err: scs.ErrTimeout})))
	assert.Equal(t, ExitDevice, ExitCode(resultError(scs.Result{Outcome: scs.RxCorrupt, Err: errors.New("bad")})))
	assert.Equal(t, ExitConnection, ExitCode(resultError(scs.Result{Outcome: scs.RxPortBusy, Err: scs.ErrPortBusy})))
	assert.Equal(t, ExitConnection, ExitCode(resultError(scs.Result{Outcome: scs.RxUnavailable, Err: scs.ErrUnavailable})))

	err = resultError(scs.Result{Outcome: scs.RxTimeout, Err: scs.ErrTimeout})
	assert.ErrorIs(t, err, scs.ErrTimeout)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitDevice, ExitCode(errors.New("plain")))
	assert.Equal(t, ExitConnection, ExitCode(fmt.Errorf("wrapped: %w", connectionError(errors.New("no port")))))
}
