// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exports round trip outcomes to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Thermoquad/servostat/pkg/scs"
)

// NewRegistry creates a registry with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler for reg
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// BusMetrics is an scs.Observer that counts round trips per device
type BusMetrics struct {
	RoundTrips  *prometheus.CounterVec   // labels: id, op, outcome
	ServoFaults *prometheus.CounterVec   // labels: id, flag
	Latency     *prometheus.HistogramVec // labels: op
}

// NewBusMetrics registers and returns the bus metrics
func NewBusMetrics(reg prometheus.Registerer) *BusMetrics {
	m := &BusMetrics{
		RoundTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "servostat_round_trips_total",
			Help: "Round trips by device, opcode and outcome.",
		}, []string{"id", "op", "outcome"}),
		ServoFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "servostat_servo_faults_total",
			Help: "Error flags reported in successful status replies.",
		}, []string{"id", "flag"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "servostat_round_trip_seconds",
			Help:    "Latency of successful addressed round trips.",
			Buckets: prometheus.ExponentialBuckets(0.0002, 2, 10),
		}, []string{"op"}),
	}
	reg.MustRegister(m.RoundTrips, m.ServoFaults, m.Latency)
	return m
}

var faultFlags = []struct {
	flag byte
	name string
}{
	{scs.ErrFlagVoltage, "voltage"},
	{scs.ErrFlagAngleLimit, "angle_limit"},
	{scs.ErrFlagOverheat, "overheat"},
	{scs.ErrFlagRange, "range"},
	{scs.ErrFlagChecksum, "checksum"},
	{scs.ErrFlagOverload, "overload"},
	{scs.ErrFlagInstruction, "instruction"},
}

// ObserveRoundTrip implements scs.Observer
func (m *BusMetrics) ObserveRoundTrip(id uint8, op scs.Opcode, res scs.Result) {
	idLabel := strconv.Itoa(int(id))
	m.RoundTrips.WithLabelValues(idLabel, op.String(), res.Outcome.String()).Inc()

	if res.Outcome != scs.RxSuccess || res.Status == nil {
		return
	}
	m.Latency.WithLabelValues(op.String()).Observe(res.Elapsed.Seconds())

	flags := res.Status.ErrorFlags()
	for _, f := range faultFlags {
		if flags.Has(f.flag) {
			m.ServoFaults.WithLabelValues(idLabel, f.name).Inc()
		}
	}
}

// Serve exposes reg on addr at path until ctx is cancelled
func Serve(ctx context.Context, addr, path string, reg *prometheus.Registry, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(path, Handler(reg))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", zap.String("addr", addr), zap.String("path", path))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
