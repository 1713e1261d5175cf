package browser

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "harness",
		Subsystem: "browser",
		Name:      "sessions_created_total",
		Help:      "Browser sessions successfully created, by kind.",
	}, []string{"kind"})
	metricLaunchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "harness",
		Subsystem: "browser",
		Name:      "launch_failures_total",
		Help:      "Session creations that failed on endpoint validation or launch, by kind.",
	}, []string{"kind"})
	metricSessionsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "harness",
		Subsystem: "browser",
		Name:      "sessions_released_total",
		Help:      "Sessions released through the registry.",
	})
	metricActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "harness",
		Subsystem: "browser",
		Name:      "active_sessions",
		Help:      "Sessions currently held by the registry.",
	})
	metricBaselineWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "harness",
		Subsystem: "browser",
		Name:      "baseline_warnings_total",
		Help:      "Best-effort session settings that could not be applied.",
	})
)

func recordSessionCreated(kind Kind) {
	metricSessionsCreated.WithLabelValues(kind.String()).Inc()
}

func recordLaunchFailure(kind Kind) {
	metricLaunchFailures.WithLabelValues(kind.String()).Inc()
}

func recordBaselineWarning() {
	metricBaselineWarnings.Inc()
}
