// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/Thermoquad/servostat/internal/config"
	"github.com/Thermoquad/servostat/pkg/scs"
)

// simServo is one device on the simulated bus
type simServo struct {
	flags     byte
	registers [256]byte
	staged    []byte
	corrupt   bool // reply with a bad checksum
}

// servoBus answers instructions the way a chain of servos would
type servoBus struct {
	mu      sync.Mutex
	servos  map[uint8]*simServo
	rx      bytes.Buffer
	written [][]byte
}

func newServoBus(ids ...uint8) *servoBus {
	b := &servoBus{servos: make(map[uint8]*simServo)}
	for _, id := range ids {
		b.servos[id] = &simServo{}
	}
	return b
}

func (b *servoBus) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rx.Len() == 0 {
		return 0, scs.ErrTimeout
	}
	return b.rx.Read(p)
}

func (b *servoBus) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.written = append(b.written, append([]byte(nil), p...))

	frame, err := scs.ParseInstruction(bytes.NewReader(p))
	if err != nil {
		return len(p), nil
	}

	if frame.IsBroadcast() {
		if frame.Opcode() == scs.OpAction {
			for _, s := range b.servos {
				s.commit()
			}
		}
		return len(p), nil
	}

	s, ok := b.servos[frame.ID()]
	if !ok {
		return len(p), nil
	}

	var reply []byte
	params := frame.Params()
	switch frame.Opcode() {
	case scs.OpRead:
		addr, n := int(params[0]), int(params[1])
		end := min(addr+n, len(s.registers))
		reply = s.registers[addr:end]
	case scs.OpWrite:
		copy(s.registers[params[0]:], params[1:])
	case scs.OpRegWrite:
		s.staged = params
	case scs.OpAction:
		s.commit()
	}

	out, err := scs.EncodeStatus(frame.ID(), s.flags, reply)
	if err != nil {
		return len(p), nil
	}
	if s.corrupt {
		out[len(out)-1] ^= 0xFF
	}
	b.rx.Write(out)
	return len(p), nil
}

func (s *simServo) commit() {
	if len(s.staged) > 0 {
		copy(s.registers[s.staged[0]:], s.staged[1:])
		s.staged = nil
	}
}

// useBus points the command helpers at bus for the duration of a test
func useBus(t *testing.T, bus scs.Transport) {
	t.Helper()
	prevOpen, prevCfg := openTransportFunc, cfg
	openTransportFunc = func(context.Context, *config.Config) (scs.Transport, string, error) {
		return bus, "Simulated bus", nil
	}
	cfg = &config.Config{Protocol: config.ProtocolConfig{ByteOrder: "little"}}
	t.Cleanup(func() {
		openTransportFunc, cfg = prevOpen, prevCfg
	})
}
