package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "harness",
		Subsystem: "lifecycle",
		Name:      "test_outcomes_total",
		Help:      "Per-attempt test outcomes (passed, retry-scheduled, failed).",
	}, []string{"outcome"})
	metricClassSetupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "harness",
		Subsystem: "lifecycle",
		Name:      "class_setup_failures_total",
		Help:      "Classes aborted because no session could be acquired.",
	})
	metricReleaseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "harness",
		Subsystem: "lifecycle",
		Name:      "release_failures_total",
		Help:      "Session releases that failed during teardown.",
	})
	metricPanics = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "harness",
		Subsystem: "lifecycle",
		Name:      "test_panics_total",
		Help:      "Test bodies that panicked.",
	})
)
