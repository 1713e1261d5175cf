package retry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "harness",
	Subsystem: "retry",
	Name:      "decisions_total",
	Help:      "Retry decisions for failed test cases (retry, exhausted).",
}, []string{"decision"})

func recordDecision(retry bool) {
	if retry {
		metricDecisions.WithLabelValues("retry").Inc()
		return
	}
	metricDecisions.WithLabelValues("exhausted").Inc()
}
