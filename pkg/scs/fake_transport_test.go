// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scs

import (
	"bytes"
	"sync"
)

// fakeTransport records writes and answers each one with the next queued
// reply. An empty receive buffer reads as a timeout.
type fakeTransport struct {
	mu       sync.Mutex
	written  [][]byte
	replies  [][]byte
	rx       bytes.Buffer
	reads    int
	writeErr error
	readErr  error
	shortBy  int  // bytes to drop from each write count
	echo     bool // answer every write with an empty status from the addressed id
}

func newFakeTransport(replies ...[]byte) *fakeTransport {
	return &fakeTransport{replies: replies}
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.written = append(f.written, append([]byte(nil), p...))
	if f.echo && len(p) > 2 && p[2] != BroadcastID {
		f.rx.Write(mustStatus(p[2], 0, nil))
	} else if len(f.replies) > 0 {
		f.rx.Write(f.replies[0])
		f.replies = f.replies[1:]
	}
	return len(p) - f.shortBy, nil
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.readErr != nil {
		return 0, f.readErr
	}
	if f.rx.Len() == 0 {
		return 0, ErrTimeout
	}
	return f.rx.Read(p)
}

func (f *fakeTransport) writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.written))
	copy(out, f.written)
	return out
}

func (f *fakeTransport) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// mustStatus encodes a status frame or panics
func mustStatus(id uint8, errFlags byte, params []byte) []byte {
	b, err := EncodeStatus(id, errFlags, params)
	if err != nil {
		panic(err)
	}
	return b
}
