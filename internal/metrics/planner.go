package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	plannerDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediaconv_planner_decisions_total",
		Help: "Total number of planning outcomes by result",
	}, []string{"result"})

	plannerWarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediaconv_planner_warnings_total",
		Help: "Total number of non-fatal planning warnings",
	})
)

// RecordPlannerDecision records one planning outcome.
func RecordPlannerDecision(result string, warnings int) {
	plannerDecisionsTotal.WithLabelValues(normalizePlannerResult(result)).Inc()
	if warnings > 0 {
		plannerWarningsTotal.Add(float64(warnings))
	}
}

func normalizePlannerResult(result string) string {
	switch r := strings.ToLower(strings.TrimSpace(result)); r {
	case "remux", "transcode", "exclusive", "unknown_preset", "incompatible_preset":
		return r
	default:
		return "unknown"
	}
}
