package capture

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "harness",
		Subsystem: "capture",
		Name:      "failures_captured_total",
		Help:      "Failure artifacts produced.",
	})
	metricStepFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "harness",
		Subsystem: "capture",
		Name:      "step_failures_total",
		Help:      "Capture steps that failed or panicked, by step.",
	}, []string{"step"})
)
