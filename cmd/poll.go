// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Thermoquad/servostat/internal/metrics"
	"github.com/Thermoquad/servostat/pkg/scs"
)

var (
	pollIDs           string
	pollRate          float64
	pollCount         int
	pollAddr          int
	pollLen           int
	pollStatsInterval time.Duration
	pollMetricsAddr   string
	pollTUI           bool
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll servos continuously and collect statistics",
	Long: `Repeatedly probe a set of servos and track the outcome of every round trip.

One goroutine per device submits requests to a single dispatcher, which runs
them on the bus one at a time in arrival order. The overall request rate is
capped by --rate. Without --len each request is a PING; with --len each is a
READ of --len bytes at --addr.

With --metrics-addr, outcome counters and a latency histogram are served in
Prometheus format.

Examples:
  servostat poll --port /dev/ttyUSB0 --ids 1-6 --rate 100
  servostat poll --port /dev/ttyUSB0 --ids 1,2 --addr 56 --len 2 --tui
  servostat poll --port /dev/ttyUSB0 --metrics-addr :9100

Exit codes:
  0 - Polling finished with no failures
  1 - Some round trips failed
  2 - Connection error`,
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
	pollCmd.Flags().StringVar(&pollIDs, "ids", "", "Device ids, e.g. 1,2,5-8 (default from config)")
	pollCmd.Flags().Float64Var(&pollRate, "rate", 0, "Round trips per second (default from config)")
	pollCmd.Flags().IntVar(&pollCount, "count", 0, "Stop after this many round trips (0 = until Ctrl+C)")
	pollCmd.Flags().IntVar(&pollAddr, "addr", 0, "Register address for READ polling")
	pollCmd.Flags().IntVar(&pollLen, "len", 0, "Bytes to READ per request (0 = PING)")
	pollCmd.Flags().DurationVar(&pollStatsInterval, "stats-interval", 5*time.Second, "How often to print statistics")
	pollCmd.Flags().StringVar(&pollMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	pollCmd.Flags().BoolVar(&pollTUI, "tui", false, "Show live statistics in a terminal UI")
}

// deviceStats tracks outcomes per device for the poll views
type deviceStats struct {
	mu      sync.Mutex
	devices map[uint8]*deviceCounters
}

type deviceCounters struct {
	id       uint8
	total    uint64
	ok       uint64
	timeouts uint64
	corrupt  uint64
	other    uint64
	flags    scs.ServoError
	lastRTT  time.Duration
	lastData []byte
}

func newDeviceStats() *deviceStats {
	return &deviceStats{devices: make(map[uint8]*deviceCounters)}
}

func (d *deviceStats) ObserveRoundTrip(id uint8, op scs.Opcode, res scs.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := d.devices[id]
	if c == nil {
		c = &deviceCounters{id: id}
		d.devices[id] = c
	}
	c.total++
	switch res.Outcome {
	case scs.RxSuccess:
		c.ok++
		if res.Status != nil {
			c.flags = res.Status.ErrorFlags()
			c.lastRTT = res.Elapsed
			c.lastData = res.Status.Params()
		}
	case scs.RxTimeout:
		c.timeouts++
	case scs.RxCorrupt:
		c.corrupt++
	default:
		c.other++
	}
}

// snapshot returns copies ordered by id
func (d *deviceStats) snapshot() []deviceCounters {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]deviceCounters, 0, len(d.devices))
	for _, c := range d.devices {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// pollRequest returns the request issued to each device
func pollRequest(addr, length int) (func(id uint8) scs.Request, error) {
	if length == 0 {
		return func(id uint8) scs.Request { return scs.Request{ID: id, Op: scs.OpPing} }, nil
	}
	a, err := checkByte("addr", addr)
	if err != nil {
		return nil, err
	}
	n, err := checkByte("len", length)
	if err != nil {
		return nil, err
	}
	return func(id uint8) scs.Request {
		return scs.Request{ID: id, Op: scs.OpRead, Params: []byte{a, n}}
	}, nil
}

// pollDevices runs one submitter per id until ctx ends or limit round
// trips have been issued (limit 0 means no limit). Connection level
// failures stop every submitter.
func pollDevices(ctx context.Context, d *scs.Dispatcher, ids []uint8, limiter *rate.Limiter,
	request func(uint8) scs.Request, limit int64) error {
	var issued atomic.Int64
	g, ctx := errgroup.WithContext(ctx)

	for _, id := range ids {
		g.Go(func() error {
			for {
				if limit > 0 && issued.Add(1) > limit {
					return nil
				}
				if err := limiter.Wait(ctx); err != nil {
					return nil
				}
				res := d.Do(ctx, request(id))
				switch res.Outcome {
				case scs.RxPortBusy, scs.RxTransportFailure:
					return resultError(res)
				case scs.RxUnavailable:
					if ctx.Err() != nil {
						return nil
					}
					return resultError(res)
				}
			}
		})
	}
	return g.Wait()
}

func runPoll(cmd *cobra.Command, args []string) error {
	ids, err := pollTargets(cmd)
	if err != nil {
		return err
	}
	r := cfg.Poll.Rate
	if cmd.Flags().Changed("rate") {
		r = pollRate
	}
	if r <= 0 {
		return fmt.Errorf("--rate must be positive")
	}
	request, err := pollRequest(pollAddr, pollLen)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	stats := scs.NewStatistics()
	perDevice := newDeviceStats()
	opts := []scs.Option{scs.WithObserver(stats), scs.WithObserver(perDevice)}

	metricsAddr := cfg.Metrics.Addr
	if pollMetricsAddr != "" {
		metricsAddr = pollMetricsAddr
	}
	if metricsAddr != "" {
		reg := metrics.NewRegistry()
		opts = append(opts, scs.WithObserver(metrics.NewBusMetrics(reg)))
		go func() {
			if err := metrics.Serve(ctx, metricsAddr, cfg.Metrics.Path, reg, logger); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	session, connInfo, err := OpenSession(ctx, opts...)
	if err != nil {
		return err
	}
	defer session.Close()

	dispatcher := scs.NewDispatcher(session)
	go dispatcher.Run(ctx)

	limiter := rate.NewLimiter(rate.Limit(r), 1)
	pollErr := make(chan error, 1)
	go func() {
		pollErr <- pollDevices(ctx, dispatcher, ids, limiter, request, int64(pollCount))
	}()

	if pollTUI {
		p := tea.NewProgram(newPollModel(connInfo, ids, r, stats, perDevice), tea.WithAltScreen())
		go func() {
			err := <-pollErr
			p.Send(pollDoneMsg{err: err})
			pollErr <- err
		}()
		if _, err := p.Run(); err != nil {
			return err
		}
		cancel()
		err = <-pollErr
	} else {
		err = printPollProgress(ctx, cmd, connInfo, ids, r, stats, pollErr)
	}

	fmt.Fprint(cmd.OutOrStdout(), stats.String())
	printDeviceTable(cmd, perDevice.snapshot())

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if stats.Failures() > 0 {
		return deviceError("%d of %d round trips failed", stats.Failures(), stats.Snapshot().TotalRoundTrips)
	}
	return nil
}

func pollTargets(cmd *cobra.Command) ([]uint8, error) {
	if cmd.Flags().Changed("ids") {
		return parseIDList(pollIDs)
	}
	ids := make([]uint8, 0, len(cfg.Poll.IDs))
	for _, id := range cfg.Poll.IDs {
		v, err := checkID(id, false)
		if err != nil {
			return nil, err
		}
		ids = append(ids, v)
	}
	if len(ids) == 0 {
		return nil, errors.New("no device ids to poll")
	}
	return ids, nil
}

func printPollProgress(ctx context.Context, cmd *cobra.Command, connInfo string, ids []uint8, r float64,
	stats *scs.Statistics, pollErr <-chan error) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Servostat - Poll\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Devices: %v at %.1f/s\n", ids, r)
	fmt.Fprintf(out, "Press Ctrl+C to stop\n\n")

	var tick <-chan time.Time
	if pollStatsInterval > 0 {
		ticker := time.NewTicker(pollStatsInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case err := <-pollErr:
			return err
		case <-ctx.Done():
			return <-pollErr
		case <-tick:
			fmt.Fprint(out, stats.String())
		}
	}
}

func printDeviceTable(cmd *cobra.Command, devices []deviceCounters) {
	if len(devices) == 0 {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-5s %8s %8s %8s %8s %8s  %s\n", "ID", "Total", "OK", "Timeout", "Corrupt", "Other", "Flags")
	for _, d := range devices {
		fmt.Fprintf(out, "%-5d %8d %8d %8d %8d %8d  %s\n", d.id, d.total, d.ok, d.timeouts, d.corrupt, d.other, d.flags)
	}
}
