// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scs

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Session runs request/response exchanges over one Transport.
//
// The bus is half-duplex, so a session has at most one exchange in flight:
// RoundTrip holds the session lock from the first byte written until the
// reply is validated. Use a Dispatcher when several goroutines need their
// requests issued in strict arrival order.
//
// A session keeps no state between round trips besides the transport.
// There are no retries; callers decide what to do with a Timeout or
// Corrupt result.
type Session struct {
	mu        sync.Mutex
	transport Transport
	endian    Endianness
	logger    *zap.Logger
	observers []Observer
	state     atomic.Int32
}

// NewSession creates a session that takes ownership of t
func NewSession(t Transport, opts ...Option) *Session {
	s := &Session{
		transport: t,
		endian:    LittleEndian,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Endianness returns the configured register byte order
func (s *Session) Endianness() Endianness {
	return s.endian
}

// State returns the current exchange stage
func (s *Session) State() State {
	return State(s.state.Load())
}

// Close closes the transport if it implements io.Closer
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.transport.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Probe pings a device
func (s *Session) Probe(ctx context.Context, id uint8) Result {
	return s.RoundTrip(ctx, id, OpPing, nil)
}

// RoundTrip sends one instruction and, unless id is BroadcastID, reads and
// validates the status reply.
func (s *Session) RoundTrip(ctx context.Context, id uint8, op Opcode, params []byte) Result {
	start := time.Now()
	res := s.roundTrip(ctx, id, op, params)
	res.Elapsed = time.Since(start)

	for _, o := range s.observers {
		o.ObserveRoundTrip(id, op, res)
	}
	return res
}

func (s *Session) roundTrip(ctx context.Context, id uint8, op Opcode, params []byte) Result {
	frame, err := BuildInstruction(id, op, params)
	if err != nil {
		s.logger.Warn("instruction rejected",
			zap.Uint8("id", id), zap.Stringer("op", op), zap.Int("params", len(params)), zap.Error(err))
		return Result{Outcome: rxFromTx(TxOversizeFrame), Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.setState(StateIdle)

	if tx, err := s.transmitLocked(ctx, frame); tx != TxSuccess {
		return Result{Outcome: rxFromTx(tx), Err: err}
	}

	if frame.IsBroadcast() {
		return Result{Outcome: RxSuccess}
	}

	status, err := parseStatus(s.transport, s.setState)
	if err != nil {
		outcome := classifyRead(err)
		if outcome == RxCorrupt {
			s.logger.Warn("corrupt reply", zap.Uint8("id", id), zap.Stringer("op", op), zap.Error(err))
		} else {
			s.logger.Debug("receive failed", zap.Uint8("id", id), zap.Stringer("outcome", outcome), zap.Error(err))
		}
		return Result{Outcome: outcome, Err: err}
	}

	if status.ID() != id {
		err := &CorruptError{Reason: ReasonIDMismatch, State: StateValidating, Expected: id, Got: status.ID()}
		s.logger.Warn("corrupt reply", zap.Uint8("id", id), zap.Stringer("op", op), zap.Error(err))
		return Result{Outcome: RxCorrupt, Err: err}
	}

	s.logger.Debug("rx", zap.Uint8("id", status.ID()), zap.Stringer("error", status.ErrorFlags()),
		zap.Binary("frame", status.Bytes()))
	return Result{Outcome: RxSuccess, Status: status}
}

// Transmit writes one instruction frame without waiting for a reply
func (s *Session) Transmit(ctx context.Context, frame *InstructionFrame) (TxOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.setState(StateIdle)
	return s.transmitLocked(ctx, frame)
}

func (s *Session) transmitLocked(ctx context.Context, frame *InstructionFrame) (TxOutcome, error) {
	if err := ctx.Err(); err != nil {
		return TxUnavailable, err
	}

	s.setState(StateTransmitting)
	data := frame.Bytes()
	n, err := s.transport.Write(data)
	if err == nil && n < len(data) {
		err = fmt.Errorf("wrote %d of %d bytes: %w", n, len(data), io.ErrShortWrite)
	}
	if err != nil {
		tx := classifyWrite(err)
		s.logger.Debug("tx failed", zap.Uint8("id", frame.ID()), zap.Stringer("outcome", tx), zap.Error(err))
		return tx, err
	}

	s.logger.Debug("tx", zap.Uint8("id", frame.ID()), zap.Stringer("op", frame.Opcode()), zap.Binary("frame", data))
	return TxSuccess, nil
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}
