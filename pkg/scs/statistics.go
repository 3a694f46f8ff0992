// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scs

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Statistics tracks round trip outcomes and rates. It implements Observer
// and is safe for concurrent use.
type Statistics struct {
	mu sync.Mutex

	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalRoundTrips uint64
	Successes       uint64
	Timeouts        uint64
	CorruptFrames   uint64
	ChecksumErrors  uint64
	HeaderErrors    uint64
	ShortReads      uint64
	IDMismatches    uint64
	TransportErrors uint64
	PortBusy        uint64
	Unavailable     uint64
	ServoFaults     uint64 // successful replies with a non-zero error byte

	// Latency of successful addressed round trips
	MinLatency   time.Duration
	MaxLatency   time.Duration
	totalLatency time.Duration
	latencyCount uint64

	// Rates (calculated)
	RoundTripRate float64 // round trips/sec
	ErrorRate     float64 // failures/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// ObserveRoundTrip records one result
func (s *Statistics) ObserveRoundTrip(id uint8, op Opcode, res Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TotalRoundTrips++
	switch res.Outcome {
	case RxSuccess:
		s.Successes++
		if res.Status != nil {
			if res.Status.ErrorFlags() != 0 {
				s.ServoFaults++
			}
			s.recordLatency(res.Elapsed)
		}
	case RxTimeout:
		s.Timeouts++
	case RxCorrupt:
		s.CorruptFrames++
		var ce *CorruptError
		if errors.As(res.Err, &ce) {
			switch ce.Reason {
			case ReasonChecksum:
				s.ChecksumErrors++
			case ReasonBadHeader, ReasonBadLength:
				s.HeaderErrors++
			case ReasonShortRead:
				s.ShortReads++
			case ReasonIDMismatch:
				s.IDMismatches++
			}
		}
	case RxTransportFailure:
		s.TransportErrors++
	case RxPortBusy:
		s.PortBusy++
	case RxUnavailable:
		s.Unavailable++
	}

	s.LastUpdateTime = time.Now()
}

func (s *Statistics) recordLatency(d time.Duration) {
	if s.latencyCount == 0 || d < s.MinLatency {
		s.MinLatency = d
	}
	if d > s.MaxLatency {
		s.MaxLatency = d
	}
	s.totalLatency += d
	s.latencyCount++
}

// Failures returns the number of round trips that did not succeed
func (s *Statistics) Failures() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures()
}

func (s *Statistics) failures() uint64 {
	return s.TotalRoundTrips - s.Successes
}

// AvgLatency returns the mean latency of successful addressed round trips
func (s *Statistics) AvgLatency() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.avgLatency()
}

func (s *Statistics) avgLatency() time.Duration {
	if s.latencyCount == 0 {
		return 0
	}
	return s.totalLatency / time.Duration(s.latencyCount)
}

// CalculateRates calculates round trip and error rates
func (s *Statistics) CalculateRates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
}

func (s *Statistics) calculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.RoundTripRate = float64(s.TotalRoundTrips) / elapsed
		s.ErrorRate = float64(s.failures()) / elapsed
	}
}

// StatsSnapshot is a point-in-time copy of Statistics
type StatsSnapshot struct {
	Elapsed         time.Duration
	TotalRoundTrips uint64
	Successes       uint64
	Failures        uint64
	Timeouts        uint64
	CorruptFrames   uint64
	TransportErrors uint64
	PortBusy        uint64
	Unavailable     uint64
	ServoFaults     uint64
	MinLatency      time.Duration
	AvgLatency      time.Duration
	MaxLatency      time.Duration
	RoundTripRate   float64
	ErrorRate       float64
}

// Snapshot returns a copy of the counters with rates calculated
func (s *Statistics) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
	return StatsSnapshot{
		Elapsed:         time.Since(s.StartTime),
		TotalRoundTrips: s.TotalRoundTrips,
		Successes:       s.Successes,
		Failures:        s.failures(),
		Timeouts:        s.Timeouts,
		CorruptFrames:   s.CorruptFrames,
		TransportErrors: s.TransportErrors,
		PortBusy:        s.PortBusy,
		Unavailable:     s.Unavailable,
		ServoFaults:     s.ServoFaults,
		MinLatency:      s.MinLatency,
		AvgLatency:      s.avgLatency(),
		MaxLatency:      s.MaxLatency,
		RoundTripRate:   s.RoundTripRate,
		ErrorRate:       s.ErrorRate,
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()

	var successPercent, failurePercent float64
	if s.TotalRoundTrips > 0 {
		successPercent = float64(s.Successes) * 100.0 / float64(s.TotalRoundTrips)
		failurePercent = float64(s.failures()) * 100.0 / float64(s.TotalRoundTrips)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Round Trips:     %8d\n", s.TotalRoundTrips)
	result += fmt.Sprintf("Successful:      %8d (%.1f%%)\n", s.Successes, successPercent)
	result += fmt.Sprintf("Failed:          %8d (%.1f%%)\n", s.failures(), failurePercent)

	if s.Timeouts > 0 {
		result += fmt.Sprintf("  Timeouts:         %5d\n", s.Timeouts)
	}
	if s.CorruptFrames > 0 {
		result += fmt.Sprintf("  Corrupt Frames:   %5d\n", s.CorruptFrames)
		if s.ChecksumErrors > 0 {
			result += fmt.Sprintf("    Checksum:       %5d\n", s.ChecksumErrors)
		}
		if s.HeaderErrors > 0 {
			result += fmt.Sprintf("    Header/Length:  %5d\n", s.HeaderErrors)
		}
		if s.ShortReads > 0 {
			result += fmt.Sprintf("    Short Reads:    %5d\n", s.ShortReads)
		}
		if s.IDMismatches > 0 {
			result += fmt.Sprintf("    ID Mismatch:    %5d\n", s.IDMismatches)
		}
	}
	if s.TransportErrors > 0 {
		result += fmt.Sprintf("  Transport Errors: %5d\n", s.TransportErrors)
	}
	if s.PortBusy > 0 {
		result += fmt.Sprintf("  Port Busy:        %5d\n", s.PortBusy)
	}
	if s.Unavailable > 0 {
		result += fmt.Sprintf("  Unavailable:      %5d\n", s.Unavailable)
	}
	if s.ServoFaults > 0 {
		result += fmt.Sprintf("Servo Faults:    %8d\n", s.ServoFaults)
	}
	if s.latencyCount > 0 {
		result += fmt.Sprintf("Latency:         min %s / avg %s / max %s\n",
			s.MinLatency, s.avgLatency(), s.MaxLatency)
	}

	result += fmt.Sprintf("Round Trip Rate: %8.1f /sec\n", s.RoundTripRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.StartTime = now
	s.LastUpdateTime = now
	s.TotalRoundTrips = 0
	s.Successes = 0
	s.Timeouts = 0
	s.CorruptFrames = 0
	s.ChecksumErrors = 0
	s.HeaderErrors = 0
	s.ShortReads = 0
	s.IDMismatches = 0
	s.TransportErrors = 0
	s.PortBusy = 0
	s.Unavailable = 0
	s.ServoFaults = 0
	s.MinLatency = 0
	s.MaxLatency = 0
	s.totalLatency = 0
	s.latencyCount = 0
	s.RoundTripRate = 0
	s.ErrorRate = 0
}
