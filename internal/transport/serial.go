// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport adapts serial ports and WebSocket bridges to the
// scs.Transport contract.
package transport

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	"github.com/Thermoquad/servostat/pkg/scs"
)

type port interface {
	io.ReadWriteCloser
}

// Serial wraps a serial port. A read that sees no byte within the read
// timeout fails with scs.ErrTimeout.
type Serial struct {
	port port
	name string
}

// OpenSerial opens a serial port in 8N1 mode
func OpenSerial(name string, baud int, readTimeout time.Duration) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, mapPortError(err))
	}
	if err := p.SetReadTimeout(readTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", name, err)
	}
	// Drop bytes left over from before we opened the port.
	if err := p.ResetInputBuffer(); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to flush %s: %w", name, mapPortError(err))
	}

	return &Serial{port: p, name: name}, nil
}

// Name returns the device path
func (s *Serial) Name() string {
	return s.name
}

func (s *Serial) Read(p []byte) (int, error) {
	n, err := s.port.Read(p)
	if err != nil {
		return n, mapPortError(err)
	}
	if n == 0 && len(p) > 0 {
		return 0, scs.ErrTimeout
	}
	return n, nil
}

func (s *Serial) Write(p []byte) (int, error) {
	n, err := s.port.Write(p)
	if err != nil {
		return n, mapPortError(err)
	}
	return n, nil
}

func (s *Serial) Close() error {
	return s.port.Close()
}

// ListPorts returns the serial devices present on this machine
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	return ports, nil
}

// mapPortError attaches the scs sentinel matching a serial port error code
func mapPortError(err error) error {
	var pe *serial.PortError
	if !errors.As(err, &pe) {
		return err
	}
	if sentinel := sentinelFor(pe.Code()); sentinel != nil {
		return fmt.Errorf("%w: %v", sentinel, err)
	}
	return err
}

func sentinelFor(code serial.PortErrorCode) error {
	switch code {
	case serial.PortBusy:
		return scs.ErrPortBusy
	case serial.PortNotFound, serial.PortClosed, serial.PermissionDenied:
		return scs.ErrUnavailable
	}
	return nil
}
