// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scs

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// TxOutcome is the result of writing one instruction frame
type TxOutcome int

// Transmit outcomes
const (
	TxSuccess TxOutcome = iota
	TxPortBusy
	TxTransportFailure
	TxOversizeFrame
	TxUnavailable
)

// String returns the outcome name
func (o TxOutcome) String() string {
	switch o {
	case TxSuccess:
		return "SUCCESS"
	case TxPortBusy:
		return "PORT_BUSY"
	case TxTransportFailure:
		return "TRANSPORT_FAILURE"
	case TxOversizeFrame:
		return "OVERSIZE_FRAME"
	case TxUnavailable:
		return "UNAVAILABLE"
	default:
		return "UNKNOWN"
	}
}

// RxOutcome is the result of a full round trip
type RxOutcome int

// Receive outcomes
const (
	RxSuccess RxOutcome = iota
	RxPortBusy
	RxTransportFailure
	RxTimeout
	RxCorrupt
	RxUnavailable
)

// RxOutcomes lists every receive outcome
var RxOutcomes = []RxOutcome{RxSuccess, RxPortBusy, RxTransportFailure, RxTimeout, RxCorrupt, RxUnavailable}

// String returns the outcome name
func (o RxOutcome) String() string {
	switch o {
	case RxSuccess:
		return "SUCCESS"
	case RxPortBusy:
		return "PORT_BUSY"
	case RxTransportFailure:
		return "TRANSPORT_FAILURE"
	case RxTimeout:
		return "TIMEOUT"
	case RxCorrupt:
		return "CORRUPT"
	case RxUnavailable:
		return "UNAVAILABLE"
	default:
		return "UNKNOWN"
	}
}

// Result is the outcome of a round trip. Status is set only for RxSuccess
// on an addressed (non-broadcast) request; Err carries the underlying
// cause for every other outcome.
type Result struct {
	Outcome RxOutcome
	Status  *StatusFrame
	Err     error
	Elapsed time.Duration
}

// OK reports whether the round trip succeeded
func (r Result) OK() bool {
	return r.Outcome == RxSuccess
}

// rxFromTx maps a failed transmit onto the receive taxonomy
func rxFromTx(o TxOutcome) RxOutcome {
	switch o {
	case TxSuccess:
		return RxSuccess
	case TxPortBusy:
		return RxPortBusy
	case TxUnavailable:
		return RxUnavailable
	default:
		// Oversize frames have no receive counterpart; they never reach
		// the wire and are reported as a transmit-side failure.
		return RxTransportFailure
	}
}

// classifyWrite maps a transport write error to a transmit outcome
func classifyWrite(err error) TxOutcome {
	switch {
	case err == nil:
		return TxSuccess
	case errors.Is(err, ErrOversizeFrame):
		return TxOversizeFrame
	case errors.Is(err, ErrPortBusy):
		return TxPortBusy
	case errors.Is(err, ErrUnavailable), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return TxUnavailable
	default:
		return TxTransportFailure
	}
}

// classifyRead maps a ParseStatus error to a receive outcome
func classifyRead(err error) RxOutcome {
	switch {
	case err == nil:
		return RxSuccess
	case IsCorrupt(err):
		return RxCorrupt
	case isTimeout(err):
		return RxTimeout
	case errors.Is(err, ErrPortBusy):
		return RxPortBusy
	case errors.Is(err, ErrUnavailable):
		return RxUnavailable
	default:
		return RxTransportFailure
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// ServoError is the status frame error bit-field
type ServoError byte

// Has reports whether flag is set
func (e ServoError) Has(flag byte) bool {
	return byte(e)&flag != 0
}

// String lists the set flags, or "none"
func (e ServoError) String() string {
	if e == 0 {
		return "none"
	}
	names := []struct {
		flag byte
		name string
	}{
		{ErrFlagVoltage, "VOLTAGE"},
		{ErrFlagAngleLimit, "ANGLE_LIMIT"},
		{ErrFlagOverheat, "OVERHEAT"},
		{ErrFlagRange, "RANGE"},
		{ErrFlagChecksum, "CHECKSUM"},
		{ErrFlagOverload, "OVERLOAD"},
		{ErrFlagInstruction, "INSTRUCTION"},
	}
	parts := []string{}
	for _, n := range names {
		if e.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	if byte(e)&0x80 != 0 {
		parts = append(parts, "RESERVED")
	}
	return strings.Join(parts, "|")
}
