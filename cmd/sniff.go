// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/servostat/pkg/scs"
)

var sniffRaw bool

var sniffCmd = &cobra.Command{
	Use:   "sniff",
	Short: "Passively decode frames seen on the bus",
	Long: `Listen to a bus driven by another controller and print every frame.

The stream is resynchronised on the 0xFF 0xFF header after noise or a corrupt
frame. A frame that follows an instruction addressed to the same id is
decoded as that servo's status reply.

Supports both serial and WebSocket connections.`,
	RunE: runSniff,
}

func init() {
	rootCmd.AddCommand(sniffCmd)
	sniffCmd.Flags().BoolVar(&sniffRaw, "raw", false, "Also print raw frame bytes")
}

// sniffer pairs instructions with the status replies that follow them
type sniffer struct {
	out     io.Writer
	raw     bool
	pending *scs.InstructionFrame
	stats   *scs.Statistics

	frames  int
	corrupt int
	skipped int
}

// run decodes frames from br until ctx ends or the stream fails
func (s *sniffer) run(ctx context.Context, br *bufio.Reader) error {
	for ctx.Err() == nil {
		skipped, err := scs.Resync(br)
		if skipped > 0 {
			s.skipped += skipped
			fmt.Fprintf(s.out, "[sync] skipped %d bytes\n", skipped)
		}
		if err != nil {
			if errors.Is(err, scs.ErrTimeout) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		frame, err := scs.ParseInstruction(br)
		if err != nil {
			if errors.Is(err, scs.ErrTimeout) {
				continue
			}
			var ce *scs.CorruptError
			if errors.As(err, &ce) {
				s.corrupt++
				fmt.Fprintf(s.out, "[corrupt] %v\n", ce)
				if ce.Reason == scs.ReasonShortRead && errors.Is(err, io.ErrUnexpectedEOF) {
					return nil
				}
				continue
			}
			return err
		}
		s.frames++
		s.handle(frame)
	}
	return nil
}

func (s *sniffer) handle(frame *scs.InstructionFrame) {
	ts := time.Now().Format("15:04:05.000")

	if s.pending != nil && frame.ID() == s.pending.ID() {
		op := s.pending.Opcode()
		s.pending = nil
		status, err := scs.ParseStatus(bytes.NewReader(frame.Bytes()))
		if err == nil {
			fmt.Fprintf(s.out, "%s ", ts)
			fmt.Fprint(s.out, scs.FormatStatus(status))
			s.printRaw(frame.Bytes())
			if s.stats != nil {
				s.stats.ObserveRoundTrip(status.ID(), op, scs.Result{Outcome: scs.RxSuccess, Status: status})
			}
			return
		}
	}

	fmt.Fprintf(s.out, "%s ", ts)
	fmt.Fprint(s.out, scs.FormatInstruction(frame))
	s.printRaw(frame.Bytes())

	s.pending = nil
	if c, ok := scs.ContractFor(frame.Opcode()); ok && c.Response == scs.ResponseStatus && !frame.IsBroadcast() {
		s.pending = frame
	}
}

func (s *sniffer) printRaw(b []byte) {
	if s.raw {
		fmt.Fprintf(s.out, "  Raw: %s\n", scs.HexDump(b))
	}
}

func runSniff(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	t, connInfo, err := openBus(ctx)
	if err != nil {
		return err
	}
	defer closeTransport(t)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Servostat - Bus Sniffer\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	s := &sniffer{out: out, raw: sniffRaw, stats: scs.NewStatistics()}
	err = s.run(ctx, bufio.NewReaderSize(t, 4*scs.MaxFrameSize))

	fmt.Fprintf(out, "\n--- Sniff summary ---\n")
	fmt.Fprintf(out, "Frames: %d, corrupt: %d, bytes skipped: %d, replies matched: %d\n",
		s.frames, s.corrupt, s.skipped, s.stats.Snapshot().Successes)

	if err != nil && !errors.Is(err, context.Canceled) {
		return connectionError(err)
	}
	return nil
}
