// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/servostat/pkg/capture"
	"github.com/Thermoquad/servostat/pkg/scs"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Work with capture files recorded by --capture",
}

var captureDumpCmd = &cobra.Command{
	Use:   "dump FILE",
	Short: "Print a capture file with decoded frames",
	Long: `Print every record of a capture file, then decode the transmitted bytes as
instruction frames and the received bytes as status frames.`,
	Args: cobra.ExactArgs(1),
	// Reading a file needs neither a bus nor the config file.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runCaptureDump,
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.AddCommand(captureDumpCmd)
}

func runCaptureDump(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	return dumpCapture(cmd.OutOrStdout(), f)
}

func dumpCapture(out io.Writer, src io.Reader) error {
	r, err := capture.NewReader(src)
	if err != nil {
		return err
	}
	records, err := r.ReadAll()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Capture started %s, %d records\n\n", r.Header().StartTime().Format("2006-01-02 15:04:05.000"), len(records))
	for _, rec := range records {
		fmt.Fprintf(out, "%12s %s %s\n", rec.Offset, rec.Dir, scs.HexDump(rec.Data))
	}

	fmt.Fprintf(out, "\n--- Instructions (TX) ---\n")
	decodeFrames(out, capture.Stream(records, capture.DirTx), func(r io.Reader) (string, error) {
		f, err := scs.ParseInstruction(r)
		if err != nil {
			return "", err
		}
		return scs.FormatInstruction(f), nil
	})

	fmt.Fprintf(out, "\n--- Status replies (RX) ---\n")
	decodeFrames(out, capture.Stream(records, capture.DirRx), func(r io.Reader) (string, error) {
		f, err := scs.ParseStatus(r)
		if err != nil {
			return "", err
		}
		return scs.FormatStatus(f), nil
	})
	return nil
}

// decodeFrames prints every frame in data, resyncing after garbage
func decodeFrames(out io.Writer, data []byte, parse func(io.Reader) (string, error)) {
	br := bufio.NewReader(bytes.NewReader(data))
	for {
		skipped, err := scs.Resync(br)
		if skipped > 0 {
			fmt.Fprintf(out, "[sync] skipped %d bytes\n", skipped)
		}
		if err != nil {
			return
		}

		text, err := parse(br)
		if err != nil {
			fmt.Fprintf(out, "[corrupt] %v\n", err)
			var ce *scs.CorruptError
			if errors.As(err, &ce) && ce.Reason == scs.ReasonShortRead {
				return
			}
			continue
		}
		fmt.Fprint(out, text)
	}
}
