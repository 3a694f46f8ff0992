// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/servostat/internal/config"
	"github.com/Thermoquad/servostat/internal/logging"
)

// Exit codes shared by every command
const (
	ExitOK         = 0
	ExitDevice     = 1 // timeout, corrupt reply or servo fault
	ExitConnection = 2 // could not open or use the transport
)

// ExitError carries the process exit code for a failed command
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func deviceError(format string, args ...any) error {
	return &ExitError{Code: ExitDevice, Err: fmt.Errorf(format, args...)}
}

func connectionError(err error) error {
	return &ExitError{Code: ExitConnection, Err: fmt.Errorf("connection error: %w", err)}
}

// ExitCode maps an error returned by Execute to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ExitDevice
}

var (
	// Serial connection flags
	portName    string
	baudRate    int
	readTimeout time.Duration

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	configPath  string
	logLevel    string
	byteOrder   string
	capturePath string

	// Loaded by PersistentPreRunE
	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "servostat",
	Short: "Feetech/Robotis Protocol 1.0 servo bus tool",
	Long: `Servostat - A CLI tool for talking to serial bus servos that speak the
Feetech SCS / Robotis Protocol 1.0 packet format.

Provides commands to probe and scan a bus, read and write control table
registers, issue raw instructions, poll devices continuously with statistics
and Prometheus metrics, and passively decode traffic.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 1000000]
  WebSocket: --url ws://host/path [--username user]

Settings can also come from a config file (--config, or ./servostat.yaml)
and SERVOSTAT_* environment variables. Flags take precedence.

For WebSocket authentication, the password is read from the SERVOSTAT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Exit codes:
  0 - Success
  1 - Device did not answer, answered corruptly or reported a fault
  2 - Connection error`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()

	// Serial connection flags
	flags.StringVarP(&portName, "port", "p", "", "Serial port device")
	flags.IntVarP(&baudRate, "baud", "b", 1000000, "Baud rate (serial only)")
	flags.DurationVar(&readTimeout, "timeout", 50*time.Millisecond, "Reply timeout")

	// WebSocket connection flags
	flags.StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	flags.StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	flags.BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	flags.StringVar(&configPath, "config", "", "Config file (YAML, TOML or JSON)")
	flags.StringVar(&logLevel, "log-level", "warn", "Diagnostics level: debug, info, warn, error")
	flags.StringVar(&byteOrder, "byte-order", "little", "Register byte order: little or big")
	flags.StringVar(&capturePath, "capture", "", "Record bus traffic to a CBOR capture file")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}
	l, err := logging.New(loaded.Logging)
	if err != nil {
		return err
	}
	cfg = loaded
	logger = l
	return nil
}

// Execute runs the root command; cancelling ctx stops long running commands
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
