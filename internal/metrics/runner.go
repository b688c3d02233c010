// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runnerStartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediaconv_runner_starts_total",
		Help: "Total number of engine spawn attempts by result",
	}, []string{"result"})

	runnerExitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediaconv_runner_exits_total",
		Help: "Total number of engine process exits by outcome and exit code",
	}, []string{"outcome", "exit_code"})

	runnerRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mediaconv_runner_processes",
		Help: "Number of engine processes currently running",
	})

	runnerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mediaconv_runner_duration_seconds",
		Help:    "Wall-clock duration of engine processes",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 14),
	}, []string{"outcome"})

	procTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediaconv_process_terminate_total",
		Help: "Process group termination attempts by signal and result",
	}, []string{"signal", "result"})
)

// IncRunnerStart counts a spawn attempt; result is "ok" or a failure code.
func IncRunnerStart(result string) {
	runnerStartsTotal.WithLabelValues(result).Inc()
	if result == "ok" {
		runnerRunning.Inc()
	}
}

// ObserveRunnerExit records a finished process.
func ObserveRunnerExit(outcome string, exitCode int, seconds float64) {
	runnerRunning.Dec()
	code := "none"
	if exitCode >= 0 {
		code = strconv.Itoa(exitCode)
	}
	runnerExitsTotal.WithLabelValues(outcome, code).Inc()
	runnerDuration.WithLabelValues(outcome).Observe(seconds)
}

// IncProcTerminate counts one signal sent to a process group.
func IncProcTerminate(signal, result string) {
	procTerminateTotal.WithLabelValues(signal, result).Inc()
}
