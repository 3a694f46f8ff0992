// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scs

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestSession(t *testing.T, ft *fakeTransport, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	return NewSession(ft, opts...)
}

func TestSession_ProbeSuccess(t *testing.T) {
	ft := newFakeTransport(mustStatus(1, 0, nil))
	s := newTestSession(t, ft)

	res := s.Probe(context.Background(), 1)

	require.Equal(t, RxSuccess, res.Outcome, "err: %v", res.Err)
	require.NotNil(t, res.Status)
	assert.Equal(t, uint8(1), res.Status.ID())
	assert.Equal(t, [][]byte{{0xFF, 0xFF, 0x01, 0x02, 0x01, 0xFB}}, ft.writes())
	assert.Equal(t, StateIdle, s.State())
}

func TestSession_BroadcastProbe(t *testing.T) {
	ft := newFakeTransport()
	s := newTestSession(t, ft)

	res := s.Probe(context.Background(), BroadcastID)

	assert.Equal(t, RxSuccess, res.Outcome)
	assert.Nil(t, res.Status)
	assert.NoError(t, res.Err)
	assert.Equal(t, 0, ft.readCount(), "broadcast must not read")
	require.Len(t, ft.writes(), 1)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFE, 0x02, 0x01, 0xFE}, ft.writes()[0])
}

func TestSession_RoundTripRead(t *testing.T) {
	ft := newFakeTransport(mustStatus(2, 0, []byte{0x00, 0x08}))
	s := newTestSession(t, ft, WithEndianness(LittleEndian))

	res := s.RoundTrip(context.Background(), 2, OpRead, []byte{0x38, 0x02})

	require.True(t, res.OK(), "err: %v", res.Err)
	assert.Equal(t, uint16(0x0800), s.Endianness().Uint16(res.Status.Params()))
}

func TestSession_Timeout(t *testing.T) {
	ft := newFakeTransport()
	s := newTestSession(t, ft)

	res := s.Probe(context.Background(), 1)

	assert.Equal(t, RxTimeout, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrTimeout)
	assert.Equal(t, StateIdle, s.State())
}

type netTimeout struct{}

func (netTimeout) Error() string   { return "i/o timeout" }
func (netTimeout) Timeout() bool   { return true }
func (netTimeout) Temporary() bool { return true }

func TestSession_NetTimeout(t *testing.T) {
	ft := newFakeTransport()
	ft.readErr = netTimeout{}
	s := newTestSession(t, ft)

	assert.Equal(t, RxTimeout, s.Probe(context.Background(), 1).Outcome)
}

func TestSession_Corrupt(t *testing.T) {
	tests := []struct {
		name   string
		reply  []byte
		reason CorruptReason
	}{
		{"bad checksum", []byte{0xFF, 0xFF, 0x01, 0x02, 0x00, 0xFD}, ReasonChecksum},
		{"bad header", []byte{0xAA, 0xFF, 0x01, 0x02, 0x00, 0xFC}, ReasonBadHeader},
		{"bad length", []byte{0xFF, 0xFF, 0x01, 0x01, 0x00, 0xFC}, ReasonBadLength},
		{"foreign id", mustStatus(5, 0, nil), ReasonIDMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := newFakeTransport(tt.reply)
			s := newTestSession(t, ft)

			res := s.Probe(context.Background(), 1)

			require.Equal(t, RxCorrupt, res.Outcome)
			assert.Nil(t, res.Status)
			var ce *CorruptError
			require.ErrorAs(t, res.Err, &ce)
			assert.Equal(t, tt.reason, ce.Reason)
			assert.Equal(t, StateIdle, s.State())
		})
	}
}

func TestSession_ShortReplyIsCorrupt(t *testing.T) {
	ft := newFakeTransport([]byte{0xFF, 0xFF, 0x01, 0x04, 0x00, 0x00})
	s := newTestSession(t, ft)

	// The fake reports a timeout once its buffer runs dry; a reader that
	// ends the stream instead must classify as a short read.
	res := s.RoundTrip(context.Background(), 1, OpRead, []byte{0x38, 0x02})
	assert.Equal(t, RxTimeout, res.Outcome)

	s2 := NewSession(struct {
		io.Reader
		io.Writer
	}{eofAfter([]byte{0xFF, 0xFF, 0x01, 0x04}), io.Discard})
	res = s2.Probe(context.Background(), 1)
	require.Equal(t, RxCorrupt, res.Outcome)
	var ce *CorruptError
	require.ErrorAs(t, res.Err, &ce)
	assert.Equal(t, ReasonShortRead, ce.Reason)
}

type eofReader struct{ data []byte }

func eofAfter(data []byte) io.Reader { return &eofReader{data: data} }

func (r *eofReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestSession_WriteFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		outcome RxOutcome
	}{
		{"busy", ErrPortBusy, RxPortBusy},
		{"unavailable", ErrUnavailable, RxUnavailable},
		{"io error", errors.New("write: broken pipe"), RxTransportFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := newFakeTransport(mustStatus(1, 0, nil))
			ft.writeErr = tt.err
			s := newTestSession(t, ft)

			res := s.Probe(context.Background(), 1)

			assert.Equal(t, tt.outcome, res.Outcome)
			assert.ErrorIs(t, res.Err, tt.err)
			assert.Equal(t, 0, ft.readCount(), "no read after a failed write")
		})
	}
}

func TestSession_ShortWrite(t *testing.T) {
	ft := newFakeTransport(mustStatus(1, 0, nil))
	ft.shortBy = 1
	s := newTestSession(t, ft)

	res := s.Probe(context.Background(), 1)

	assert.Equal(t, RxTransportFailure, res.Outcome)
	assert.ErrorIs(t, res.Err, io.ErrShortWrite)
	assert.Equal(t, 0, ft.readCount())
}

func TestSession_ReadFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		outcome RxOutcome
	}{
		{"busy", ErrPortBusy, RxPortBusy},
		{"unavailable", ErrUnavailable, RxUnavailable},
		{"io error", errors.New("read: device disconnected"), RxTransportFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := newFakeTransport()
			ft.readErr = tt.err
			s := newTestSession(t, ft)

			res := s.Probe(context.Background(), 1)
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.ErrorIs(t, res.Err, tt.err)
		})
	}
}

func TestSession_OversizeNeverTouchesTransport(t *testing.T) {
	ft := newFakeTransport()
	s := newTestSession(t, ft)

	res := s.RoundTrip(context.Background(), 1, OpWrite, make([]byte, MaxParams+1))

	assert.Equal(t, RxTransportFailure, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrOversizeFrame)
	assert.Empty(t, ft.writes())
	assert.Equal(t, 0, ft.readCount())
}

func TestSession_CancelledContext(t *testing.T) {
	ft := newFakeTransport(mustStatus(1, 0, nil))
	s := newTestSession(t, ft)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := s.Probe(ctx, 1)

	assert.Equal(t, RxUnavailable, res.Outcome)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Empty(t, ft.writes())
}

func TestSession_NoCarriedState(t *testing.T) {
	// A corrupt reply must not affect the next exchange
	ft := newFakeTransport(
		[]byte{0xFF, 0xFF, 0x01, 0x02, 0x00, 0xFD},
		mustStatus(1, 0, nil),
	)
	s := newTestSession(t, ft)

	assert.Equal(t, RxCorrupt, s.Probe(context.Background(), 1).Outcome)
	assert.Equal(t, RxSuccess, s.Probe(context.Background(), 1).Outcome)
	assert.Len(t, ft.writes(), 2)
}

func TestSession_Transmit(t *testing.T) {
	ft := newFakeTransport()
	s := newTestSession(t, ft)

	f, err := BuildInstruction(BroadcastID, OpAction, nil)
	require.NoError(t, err)

	tx, err := s.Transmit(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, TxSuccess, tx)
	assert.Equal(t, [][]byte{f.Bytes()}, ft.writes())

	ft.writeErr = ErrPortBusy
	tx, err = s.Transmit(context.Background(), f)
	assert.Equal(t, TxPortBusy, tx)
	assert.ErrorIs(t, err, ErrPortBusy)
}

func TestSession_Observer(t *testing.T) {
	ft := newFakeTransport(mustStatus(1, 0, nil))
	var seen []RxOutcome
	s := newTestSession(t, ft, WithObserver(ObserverFunc(func(id uint8, op Opcode, res Result) {
		assert.Equal(t, uint8(1), id)
		assert.Equal(t, OpPing, op)
		seen = append(seen, res.Outcome)
	})))

	s.Probe(context.Background(), 1)
	s.Probe(context.Background(), 1)

	assert.Equal(t, []RxOutcome{RxSuccess, RxTimeout}, seen)
}

type closingTransport struct {
	*fakeTransport
	closed bool
}

func (c *closingTransport) Close() error {
	c.closed = true
	return nil
}

func TestSession_Close(t *testing.T) {
	ct := &closingTransport{fakeTransport: newFakeTransport()}
	s := NewSession(ct)
	require.NoError(t, s.Close())
	assert.True(t, ct.closed)

	// transports without Close are fine
	require.NoError(t, NewSession(newFakeTransport()).Close())
}

func TestSession_ElapsedMeasured(t *testing.T) {
	ft := newFakeTransport()
	s := NewSession(ft)
	start := time.Now()
	res := s.Probe(context.Background(), 1)
	assert.LessOrEqual(t, res.Elapsed, time.Since(start))
}
