// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics defines the Prometheus collectors exported by mediaconv.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	schedulerQueued = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mediaconv_scheduler_queued_jobs",
		Help: "Number of jobs waiting in the queue",
	})

	schedulerActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mediaconv_scheduler_active_jobs",
		Help: "Number of jobs in probing, planning or running state",
	})

	schedulerConcurrency = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mediaconv_scheduler_concurrency_limit",
		Help: "Configured maximum number of concurrently active jobs",
	})

	schedulerTerminalTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediaconv_scheduler_terminal_total",
		Help: "Total number of jobs that reached a terminal state",
	}, []string{"state", "code"})

	schedulerRequeueTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediaconv_scheduler_requeue_total",
		Help: "Total number of jobs put back at the queue front after a spawn-time conflict",
	})

	schedulerQueueWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mediaconv_scheduler_queue_wait_seconds",
		Help:    "Time a job spent queued before it started probing",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	})
)

// SetSchedulerDepth publishes the queued and active job counts.
func SetSchedulerDepth(queued, active int) {
	schedulerQueued.Set(float64(queued))
	schedulerActive.Set(float64(active))
}

// SetConcurrencyLimit publishes the current concurrency limit.
func SetConcurrencyLimit(n int) {
	schedulerConcurrency.Set(float64(n))
}

// IncJobTerminal counts a job reaching state with the given failure code.
func IncJobTerminal(state, code string) {
	if code == "" {
		code = "none"
	}
	schedulerTerminalTotal.WithLabelValues(state, code).Inc()
}

// IncRequeue counts one requeue.
func IncRequeue() {
	schedulerRequeueTotal.Inc()
}

// ObserveQueueWait records how long a job waited before it was picked.
func ObserveQueueWait(d time.Duration) {
	if d < 0 {
		d = 0
	}
	schedulerQueueWait.Observe(d.Seconds())
}
