// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Thermoquad/servostat/internal/config"
	"github.com/Thermoquad/servostat/internal/transport"
	"github.com/Thermoquad/servostat/pkg/capture"
	"github.com/Thermoquad/servostat/pkg/scs"
)

// openTransportFunc opens the configured bus connection. Tests replace it.
var openTransportFunc = openTransport

func openTransport(ctx context.Context, c *config.Config) (scs.Transport, string, error) {
	if c.WebSocket.URL != "" {
		password := ""
		if c.WebSocket.Username != "" {
			var err error
			password, err = transport.GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		ws, err := transport.DialWebSocket(ctx, transport.WebSocketOptions{
			URL:              c.WebSocket.URL,
			Username:         c.WebSocket.Username,
			Password:         password,
			SkipSSLVerify:    c.WebSocket.NoSSLVerify,
			ReadTimeout:      c.Serial.ReadTimeout,
			HandshakeTimeout: c.WebSocket.HandshakeTimeout,
		})
		if err != nil {
			return nil, "", err
		}
		return ws, fmt.Sprintf("WebSocket: %s", c.WebSocket.URL), nil
	}

	if c.Serial.Port != "" {
		s, err := transport.OpenSerial(c.Serial.Port, c.Serial.Baud, c.Serial.ReadTimeout)
		if err != nil {
			return nil, "", err
		}
		return s, fmt.Sprintf("Serial: %s @ %d baud", c.Serial.Port, c.Serial.Baud), nil
	}

	return nil, "", errors.New("either --port or --url must be specified")
}

// openBus opens the configured transport and wraps it in a capture
// recorder when --capture is set
func openBus(ctx context.Context) (scs.Transport, string, error) {
	t, connInfo, err := openTransportFunc(ctx, cfg)
	if err != nil {
		return nil, "", connectionError(err)
	}

	if cfg.Capture == "" {
		return t, connInfo, nil
	}

	f, err := os.Create(cfg.Capture)
	if err != nil {
		closeTransport(t)
		return nil, "", fmt.Errorf("create capture file: %w", err)
	}
	rec, err := capture.NewRecorder(t, f)
	if err != nil {
		f.Close()
		closeTransport(t)
		return nil, "", err
	}
	return rec, connInfo + fmt.Sprintf(" (capturing to %s)", cfg.Capture), nil
}

// OpenSession opens the bus and returns a session over it
func OpenSession(ctx context.Context, opts ...scs.Option) (*scs.Session, string, error) {
	endian, err := scs.ParseEndianness(cfg.Protocol.ByteOrder)
	if err != nil {
		return nil, "", err
	}

	t, connInfo, err := openBus(ctx)
	if err != nil {
		return nil, "", err
	}

	logger.Info("connected", zap.String("connection", connInfo), zap.Stringer("byte_order", endian))

	base := []scs.Option{scs.WithLogger(logger.Named("scs")), scs.WithEndianness(endian)}
	return scs.NewSession(t, append(base, opts...)...), connInfo, nil
}

func closeTransport(t scs.Transport) {
	if c, ok := t.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}
