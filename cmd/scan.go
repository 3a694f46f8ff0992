// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/servostat/pkg/scs"
)

var (
	scanFrom int
	scanTo   int
	scanTUI  bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find servos on the bus",
	Long: `Ping every device id in a range and list the servos that answer.

Corrupt replies are reported separately: they usually mean two servos share
an id, or the baud rate is wrong.

Examples:
  servostat scan --port /dev/ttyUSB0
  servostat scan --port /dev/ttyUSB0 --from 1 --to 20 --tui

Exit codes:
  0 - At least one servo found
  1 - No servo answered
  2 - Connection error`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().IntVar(&scanFrom, "from", 0, "First device id")
	scanCmd.Flags().IntVar(&scanTo, "to", scs.MaxDeviceID, "Last device id")
	scanCmd.Flags().BoolVar(&scanTUI, "tui", false, "Show progress in a terminal UI")
}

// scanHit is one id that produced something other than a timeout
type scanHit struct {
	id      uint8
	outcome scs.RxOutcome
	flags   scs.ServoError
	rtt     time.Duration
	err     error
}

type scanProgress struct {
	id   uint8
	done int
	hit  *scanHit
}

// scanBus probes from..to and calls progress after each id
func scanBus(ctx context.Context, session *scs.Session, from, to uint8, progress func(scanProgress)) ([]scanHit, error) {
	var hits []scanHit
	done := 0
	for id := int(from); id <= int(to); id++ {
		if err := ctx.Err(); err != nil {
			return hits, err
		}

		res := session.Probe(ctx, uint8(id))
		done++
		p := scanProgress{id: uint8(id), done: done}

		switch res.Outcome {
		case scs.RxSuccess:
			hit := scanHit{id: uint8(id), outcome: res.Outcome, flags: res.Status.ErrorFlags(), rtt: res.Elapsed}
			hits = append(hits, hit)
			p.hit = &hit
		case scs.RxCorrupt:
			hit := scanHit{id: uint8(id), outcome: res.Outcome, rtt: res.Elapsed, err: res.Err}
			hits = append(hits, hit)
			p.hit = &hit
		case scs.RxTimeout:
		default:
			return hits, resultError(res)
		}

		if progress != nil {
			progress(p)
		}
	}
	return hits, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	from, err := checkID(scanFrom, false)
	if err != nil {
		return err
	}
	to, err := checkID(scanTo, false)
	if err != nil {
		return err
	}
	if to < from {
		return fmt.Errorf("--to (%d) is below --from (%d)", to, from)
	}

	ctx := cmd.Context()
	session, connInfo, err := OpenSession(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	var hits []scanHit
	if scanTUI {
		hits, err = runScanTUI(ctx, session, connInfo, from, to)
	} else {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Servostat - Bus Scan\n")
		fmt.Fprintf(out, "Connection: %s\n", connInfo)
		fmt.Fprintf(out, "Range: %d-%d\n\n", from, to)
		hits, err = scanBus(ctx, session, from, to, func(p scanProgress) {
			if p.hit != nil {
				printScanHit(out, *p.hit)
			}
		})
	}
	if err != nil {
		return err
	}

	return scanSummary(cmd.OutOrStdout(), hits)
}

func printScanHit(out io.Writer, h scanHit) {
	if h.outcome == scs.RxCorrupt {
		fmt.Fprintf(out, "  %-8s CORRUPT: %v\n", scs.FormatID(h.id), h.err)
		return
	}
	fmt.Fprintf(out, "  %-8s found (rtt %s, error=%s)\n", scs.FormatID(h.id), h.rtt.Round(time.Microsecond), h.flags)
}

func scanSummary(out io.Writer, hits []scanHit) error {
	found := 0
	for _, h := range hits {
		if h.outcome == scs.RxSuccess {
			found++
		}
	}

	fmt.Fprintf(out, "\n--- Scan summary ---\n")
	fmt.Fprintf(out, "Servos found: %d\n", found)
	if corrupt := len(hits) - found; corrupt > 0 {
		fmt.Fprintf(out, "Corrupt replies: %d (id collision or wrong baud rate?)\n", corrupt)
	}

	if found == 0 {
		return deviceError("no servos answered")
	}
	return nil
}

func runScanTUI(ctx context.Context, session *scs.Session, connInfo string, from, to uint8) ([]scanHit, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newScanModel(connInfo, from, to))

	var hits []scanHit
	var scanErr error
	go func() {
		hits, scanErr = scanBus(ctx, session, from, to, func(sp scanProgress) {
			p.Send(scanProgressMsg(sp))
		})
		p.Send(scanDoneMsg{err: scanErr})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	if m, ok := final.(scanModel); ok && m.aborted {
		cancel()
		return nil, context.Canceled
	}
	return hits, scanErr
}
