// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Thermoquad/servostat/pkg/scs"
)

// WebSocketOptions configures a serial-over-WebSocket bridge connection
type WebSocketOptions struct {
	URL              string
	Username         string
	Password         string
	SkipSSLVerify    bool
	ReadTimeout      time.Duration
	HandshakeTimeout time.Duration // DefaultHandshakeTimeout when zero
}

// DefaultHandshakeTimeout bounds the opening handshake
const DefaultHandshakeTimeout = 10 * time.Second

// WebSocket carries bus bytes in binary messages. Messages are read by a
// background goroutine so a Read can give up after ReadTimeout without
// failing the underlying connection.
type WebSocket struct {
	conn    *websocket.Conn
	timeout time.Duration

	frames chan []byte
	done   chan struct{}
	buf    []byte

	readErr   error // set before frames is closed
	closeOnce sync.Once
}

// DialWebSocket connects to a bridge with optional HTTP Basic auth
func DialWebSocket(ctx context.Context, opts WebSocketOptions) (*WebSocket, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	handshake := opts.HandshakeTimeout
	if handshake <= 0 {
		handshake = DefaultHandshakeTimeout
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: handshake,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: opts.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if opts.Username != "" && opts.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, opts.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: WebSocket connection failed (HTTP %d): %v", scs.ErrUnavailable, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: WebSocket connection failed: %v", scs.ErrUnavailable, err)
	}

	return newWebSocket(conn, opts.ReadTimeout), nil
}

func newWebSocket(conn *websocket.Conn, timeout time.Duration) *WebSocket {
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	w := &WebSocket{
		conn:    conn,
		timeout: timeout,
		frames:  make(chan []byte, 16),
		done:    make(chan struct{}),
	}
	go w.readLoop()
	return w
}

func (w *WebSocket) readLoop() {
	defer close(w.frames)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.readErr = err
			return
		}
		if messageType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		select {
		case w.frames <- data:
		case <-w.done:
			return
		}
	}
}

func (w *WebSocket) Read(p []byte) (int, error) {
	if len(w.buf) > 0 {
		n := copy(p, w.buf)
		w.buf = w.buf[n:]
		return n, nil
	}

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	select {
	case data, ok := <-w.frames:
		if !ok {
			return 0, fmt.Errorf("%w: websocket closed: %v", scs.ErrUnavailable, w.readErr)
		}
		n := copy(p, data)
		w.buf = data[n:]
		return n, nil
	case <-timer.C:
		return 0, scs.ErrTimeout
	}
}

func (w *WebSocket) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return 0, fmt.Errorf("%w: %v", scs.ErrUnavailable, err)
		}
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocket) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = w.conn.Close()
	})
	return err
}
