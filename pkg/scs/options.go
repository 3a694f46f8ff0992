// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scs

import "go.uber.org/zap"

// Observer is notified after every round trip a Session completes
type Observer interface {
	ObserveRoundTrip(id uint8, op Opcode, res Result)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(id uint8, op Opcode, res Result)

// ObserveRoundTrip calls f
func (f ObserverFunc) ObserveRoundTrip(id uint8, op Opcode, res Result) {
	f(id, op, res)
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger. Frames are logged at debug level,
// corrupt replies at warn level.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEndianness sets the byte order reported by Session.Endianness
func WithEndianness(e Endianness) Option {
	return func(s *Session) {
		s.endian = e
	}
}

// WithObserver adds an observer. Observers run on the calling goroutine
// after the session has returned to idle.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}
