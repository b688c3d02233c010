package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mediaconv_events_dropped_total",
	Help: "Total number of job events dropped because a subscriber was full",
}, []string{"kind"})

// IncEventDrop records a dropped event of the given kind.
func IncEventDrop(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	eventDropsTotal.WithLabelValues(kind).Inc()
}

// EventDrops returns the drop counter for kind.
func EventDrops(kind string) prometheus.Counter {
	return eventDropsTotal.WithLabelValues(kind)
}
