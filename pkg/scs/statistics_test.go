// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatistics_CountsOutcomes(t *testing.T) {
	stats := NewStatistics()
	ft := newFakeTransport(
		mustStatus(1, 0, nil),
		[]byte{0xFF, 0xFF, 0x01, 0x02, 0x00, 0xFD},
		mustStatus(1, ErrFlagOverheat, nil),
		mustStatus(4, 0, nil),
	)
	s := NewSession(ft, WithObserver(stats))
	ctx := context.Background()

	s.Probe(ctx, 1)           // success
	s.Probe(ctx, 1)           // checksum
	s.Probe(ctx, 1)           // success with servo fault
	s.Probe(ctx, 1)           // id mismatch
	s.Probe(ctx, 1)           // timeout
	s.Probe(ctx, BroadcastID) // success, no reply

	snap := stats.Snapshot()
	assert.Equal(t, uint64(6), snap.TotalRoundTrips)
	assert.Equal(t, uint64(3), snap.Successes)
	assert.Equal(t, uint64(3), snap.Failures)
	assert.Equal(t, uint64(2), snap.CorruptFrames)
	assert.Equal(t, uint64(1), snap.Timeouts)
	assert.Equal(t, uint64(1), snap.ServoFaults)
	assert.Equal(t, uint64(1), stats.ChecksumErrors)
	assert.Equal(t, uint64(1), stats.IDMismatches)
	assert.LessOrEqual(t, snap.MinLatency, snap.AvgLatency)
	assert.LessOrEqual(t, snap.AvgLatency, snap.MaxLatency)
}

func TestStatistics_Latency(t *testing.T) {
	stats := NewStatistics()
	status := &StatusFrame{id: 1, length: 2}
	for _, d := range []time.Duration{2 * time.Millisecond, 4 * time.Millisecond, 6 * time.Millisecond} {
		stats.ObserveRoundTrip(1, OpPing, Result{Outcome: RxSuccess, Status: status, Elapsed: d})
	}
	assert.Equal(t, 2*time.Millisecond, stats.MinLatency)
	assert.Equal(t, 6*time.Millisecond, stats.MaxLatency)
	assert.Equal(t, 4*time.Millisecond, stats.AvgLatency())
}

func TestStatistics_StringAndReset(t *testing.T) {
	stats := NewStatistics()
	stats.ObserveRoundTrip(1, OpPing, Result{Outcome: RxTimeout, Err: ErrTimeout})
	stats.ObserveRoundTrip(1, OpPing, Result{Outcome: RxTransportFailure})

	out := stats.String()
	assert.True(t, strings.Contains(out, "Round Trips:"))
	assert.Contains(t, out, "Timeouts:")
	assert.Contains(t, out, "Transport Errors:")
	assert.Equal(t, uint64(2), stats.Failures())

	stats.Reset()
	assert.Equal(t, uint64(0), stats.Snapshot().TotalRoundTrips)
	assert.Equal(t, time.Duration(0), stats.AvgLatency())
}
