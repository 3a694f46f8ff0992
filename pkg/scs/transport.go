// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scs

import (
	"errors"
	"io"
)

// Transport is the byte channel a Session talks through. Reads are done
// with io.ReadFull, so implementations may return partial reads; a read
// deadline expiry must surface as ErrTimeout (or a net.Error whose
// Timeout method reports true). A Read that returns 0 bytes and a nil
// error is not allowed: io.ReadFull would spin on it.
type Transport interface {
	io.Reader
	io.Writer
}

// Transport conditions with a dedicated outcome
var (
	ErrTimeout     = errors.New("scs: read timeout")
	ErrPortBusy    = errors.New("scs: port busy")
	ErrUnavailable = errors.New("scs: transport unavailable")
)
