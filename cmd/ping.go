// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/servostat/pkg/scs"
)

var (
	pingID       int
	pingCount    int
	pingInterval time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Send PING instructions to one servo",
	Long: `Send PING instructions to a servo and wait for its status reply.

Each reply is validated (header, length, checksum and device id). Servo
error flags in the reply are shown but do not count as a lost ping.

Exit codes:
  0 - All pings answered
  1 - One or more pings timed out or were corrupt
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingID, "id", 1, "Device id (0-253, 254 broadcasts without waiting)")
	pingCmd.Flags().IntVarP(&pingCount, "count", "c", 3, "Number of pings to send")
	pingCmd.Flags().DurationVar(&pingInterval, "interval", 100*time.Millisecond, "Delay between pings")
}

func runPing(cmd *cobra.Command, args []string) error {
	id, err := checkID(pingID, true)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	stats := scs.NewStatistics()
	session, connInfo, err := OpenSession(ctx, scs.WithObserver(stats))
	if err != nil {
		return err
	}
	defer session.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Servostat - Ping\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Target: %s, Count: %d\n\n", scs.FormatID(id), pingCount)

	var lastErr error
	for i := 1; i <= pingCount; i++ {
		res := session.Probe(ctx, id)
		fmt.Fprintf(out, "Ping %d/%d: %s\n", i, pingCount, scs.FormatResult(res))

		if res.Outcome != scs.RxSuccess {
			lastErr = resultError(res)
			if ExitCode(lastErr) == ExitConnection {
				return lastErr
			}
		}

		if i < pingCount && pingInterval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pingInterval):
			}
		}
	}

	snap := stats.Snapshot()
	fmt.Fprintf(out, "\n--- Ping statistics ---\n")
	fmt.Fprintf(out, "%d pings sent, %d replies received, %.0f%% loss\n",
		snap.TotalRoundTrips, snap.Successes, float64(snap.Failures)/float64(max(snap.TotalRoundTrips, 1))*100)
	if snap.Successes > 0 {
		fmt.Fprintf(out, "rtt min/avg/max = %s/%s/%s\n", snap.MinLatency, snap.AvgLatency, snap.MaxLatency)
	}

	return lastErr
}
