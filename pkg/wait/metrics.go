package wait

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const modeCondition = "condition"

var (
	metricWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "harness",
		Subsystem: "wait",
		Name:      "waits_total",
		Help:      "Completed waits by outcome (ready, timeout, error).",
	}, []string{"mode", "outcome"})
	metricPolls = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "harness",
		Subsystem: "wait",
		Name:      "polls_total",
		Help:      "Condition evaluations across all waits.",
	})
	metricWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "harness",
		Subsystem: "wait",
		Name:      "duration_seconds",
		Help:      "Wall time spent in waits.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
	})
	metricActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "harness",
		Subsystem: "wait",
		Name:      "actions_total",
		Help:      "Element actions by action and outcome (ok, timeout, error).",
	}, []string{"action", "outcome"})
	metricPauses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "harness",
		Subsystem: "wait",
		Name:      "pauses_total",
		Help:      "Unconditional pauses completed.",
	})
)

func recordWait(mode string, st stats, err error) {
	outcome := "ready"
	switch {
	case errors.Is(err, ErrTimeout):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	metricWaits.WithLabelValues(mode, outcome).Inc()
	metricPolls.Add(float64(st.polls))
	metricWaitSeconds.Observe(st.elapsed.Seconds())
}

func recordAction(action string, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, ErrTimeout):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	metricActions.WithLabelValues(action, outcome).Inc()
}
