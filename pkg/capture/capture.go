// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records the bytes crossing a transport into a CBOR
// sequence and reads them back.
//
// A capture file is a header followed by records, each one CBOR item:
//
//	header: ["servostat-capture", version, start_unix_nanos]
//	record: [offset_nanos, direction, bytes]
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/servostat/pkg/scs"
)

// Magic identifies a capture file
const Magic = "servostat-capture"

// Version is the capture format version written by Recorder
const Version = 1

// ErrNotCapture is returned when a stream does not start with a capture header
var ErrNotCapture = errors.New("capture: not a capture stream")

// Direction tells which way bytes travelled
type Direction uint8

const (
	DirTx Direction = 1 // host to bus
	DirRx Direction = 2 // bus to host
)

func (d Direction) String() string {
	switch d {
	case DirTx:
		return "TX"
	case DirRx:
		return "RX"
	}
	return fmt.Sprintf("DIR(%d)", uint8(d))
}

// Header starts every capture stream
type Header struct {
	_       struct{} `cbor:",toarray"`
	Magic   string
	Version uint
	Start   int64 // unix nanoseconds
}

// StartTime returns the capture start time
func (h Header) StartTime() time.Time {
	return time.Unix(0, h.Start)
}

// Record is one chunk of bytes seen on the transport
type Record struct {
	_      struct{} `cbor:",toarray"`
	Offset time.Duration
	Dir    Direction
	Data   []byte
}

// Recorder wraps a transport and appends every successful read and write
// to a capture stream. Recording failures never fail the transport call;
// the first one is kept and reported by Err and Close.
type Recorder struct {
	inner scs.Transport
	sink  io.Writer
	start time.Time
	now   func() time.Time

	mu  sync.Mutex
	enc *cbor.Encoder
	err error
}

// NewRecorder writes a header to sink and returns a transport that records
// traffic through inner.
func NewRecorder(inner scs.Transport, sink io.Writer) (*Recorder, error) {
	return newRecorder(inner, sink, time.Now)
}

func newRecorder(inner scs.Transport, sink io.Writer, now func() time.Time) (*Recorder, error) {
	r := &Recorder{
		inner: inner,
		sink:  sink,
		start: now(),
		now:   now,
		enc:   cbor.NewEncoder(sink),
	}
	if err := r.enc.Encode(Header{Magic: Magic, Version: Version, Start: r.start.UnixNano()}); err != nil {
		return nil, fmt.Errorf("capture: write header: %w", err)
	}
	return r, nil
}

func (r *Recorder) Read(p []byte) (int, error) {
	n, err := r.inner.Read(p)
	if n > 0 {
		r.record(DirRx, p[:n])
	}
	return n, err
}

func (r *Recorder) Write(p []byte) (int, error) {
	n, err := r.inner.Write(p)
	if n > 0 {
		r.record(DirTx, p[:n])
	}
	return n, err
}

func (r *Recorder) record(dir Direction, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	rec := Record{Offset: r.now().Sub(r.start), Dir: dir, Data: append([]byte(nil), data...)}
	if err := r.enc.Encode(rec); err != nil {
		r.err = fmt.Errorf("capture: write record: %w", err)
	}
}

// Err returns the first recording failure
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close closes the wrapped transport and the sink when they are closers
func (r *Recorder) Close() error {
	var errs []error
	if c, ok := r.inner.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := r.sink.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, r.Err())
	return errors.Join(errs...)
}

// Reader decodes a capture stream
type Reader struct {
	dec    *cbor.Decoder
	header Header
}

// NewReader reads and checks the capture header
func NewReader(src io.Reader) (*Reader, error) {
	dec := cbor.NewDecoder(src)
	var h Header
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotCapture, err)
	}
	if h.Magic != Magic {
		return nil, fmt.Errorf("%w: magic %q", ErrNotCapture, h.Magic)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("capture: unsupported version %d", h.Version)
	}
	return &Reader{dec: dec, header: h}, nil
}

// Header returns the stream header
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next record, or io.EOF at the end of the stream
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("capture: decode record: %w", err)
	}
	return rec, nil
}

// Stream concatenates the bytes of every record travelling in dir
func Stream(records []Record, dir Direction) []byte {
	var out []byte
	for _, rec := range records {
		if rec.Dir == dir {
			out = append(out, rec.Data...)
		}
	}
	return out
}

// ReadAll returns every remaining record
func (r *Reader) ReadAll() ([]Record, error) {
	var records []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}
