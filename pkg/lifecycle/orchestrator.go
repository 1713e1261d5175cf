// Package lifecycle sequences session setup, per-test navigation, retry
// decisions, failure capture and teardown for each worker.
//
// The four hooks (BeforeClass, BeforeTest, AfterTest, AfterClass) are plain
// calls an external runner makes in order. RunClass and Run are a reference
// runner built on those hooks.
package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/entrhq/harness/pkg/browser"
	"github.com/entrhq/harness/pkg/capture"
	"github.com/entrhq/harness/pkg/config"
	"github.com/entrhq/harness/pkg/logging"
	"github.com/entrhq/harness/pkg/retry"
	"github.com/entrhq/harness/pkg/wait"
)

// ParamBrowser is the sink parameter naming the browser a class ran on.
const ParamBrowser = "Browser"

// SessionPool hands out one session per worker.
type SessionPool interface {
	Acquire(ctx context.Context, worker string, settings browser.LaunchSettings) (*browser.Session, error)
	Release(worker string) error
}

// Decision is what AfterTest concluded about one attempt.
type Decision struct {
	// Outcome is StatePassed, StateRetryScheduled or StateFailed
	Outcome State

	// Artifact is set when the outcome is StateFailed
	Artifact *capture.Artifact
}

// Retry reports whether the test should run again.
func (d Decision) Retry() bool {
	return d.Outcome == StateRetryScheduled
}

// Orchestrator drives workers through the class lifecycle. One Orchestrator
// serves every worker in a run.
type Orchestrator struct {
	pool     SessionPool
	config   config.Provider
	tracker  *retry.Tracker
	capturer *capture.Capturer
	logger   *logging.Logger
}

// NewOrchestrator builds an orchestrator. The retry budget comes from
// retry.count. A nil capturer records artifacts nowhere; a nil logger
// discards output.
func NewOrchestrator(pool SessionPool, p config.Provider, capturer *capture.Capturer, logger *logging.Logger) (*Orchestrator, error) {
	policy, err := retry.PolicyFromConfig(p)
	if err != nil {
		return nil, fmt.Errorf("failed to load retry policy: %w", err)
	}
	if logger == nil {
		logger = logging.Discard("lifecycle")
	}
	if capturer == nil {
		capturer = capture.NewCapturer(nil, logger, capture.Options{})
	}

	return &Orchestrator{
		pool:     pool,
		config:   p,
		tracker:  retry.NewTracker(policy),
		capturer: capturer,
		logger:   logger,
	}, nil
}

// NewWorker returns a worker resolving against the orchestrator's config.
func (o *Orchestrator) NewWorker(id string) *Worker {
	return NewWorker(id, o.config, o.logger)
}

// Policy returns the retry policy in force.
func (o *Orchestrator) Policy() retry.Policy {
	return o.tracker.Policy()
}

// BeforeClass acquires the worker's session. browserName overrides the
// browser key for this worker and class only. An error here is fatal to the
// class. A worker whose previous class has closed may start another.
func (o *Orchestrator) BeforeClass(ctx context.Context, w *Worker, browserName string) (err error) {
	ctx, span := startSpan(ctx, "lifecycle.before_class", AttrWorker.String(w.ID), AttrBrowser.String(browserName))
	defer func() { endSpan(span, err) }()

	if from := w.State(); !from.CanTransition(StateSessionActive) {
		return fmt.Errorf("%w: worker %s cannot start a class from %s", ErrInvalidTransition, w.ID, from)
	}

	p := w.base
	if name := strings.TrimSpace(browserName); name != "" {
		p = config.Overlay(p, map[string]string{config.KeyBrowser: name})
	}

	settings, err := browser.SettingsFromConfig(p, "")
	if err != nil {
		metricClassSetupFailures.Inc()
		return fmt.Errorf("worker %s: invalid browser settings: %w", w.ID, err)
	}

	session, err := o.pool.Acquire(ctx, w.ID, settings)
	if err != nil {
		metricClassSetupFailures.Inc()
		w.logger.Errorf("class setup failed: %v", err)
		return fmt.Errorf("worker %s: %w", w.ID, err)
	}

	if err := w.transition(StateSessionActive); err != nil {
		if rerr := o.pool.Release(w.ID); rerr != nil {
			w.logger.Warnf("session release failed: %v", rerr)
		}
		return err
	}
	sink := o.capturer.Sink()
	w.bind(p, session, wait.NewEngine(session, p, w.logger.Named("wait")), sink)

	if sink != nil {
		if perr := sink.Parameter(ParamBrowser, session.Kind.String()); perr != nil {
			w.logger.Warnf("failed to record browser parameter: %v", perr)
		}
	}

	span.SetAttributes(attribute.String("harness.session", session.ID))
	w.logger.Infof("session %s active (%s)", session.ID, session.Kind)
	return nil
}

// BeforeTest navigates the worker's session to baseUrl. An error is fatal
// to this test only and should be passed to AfterTest as its outcome.
func (o *Orchestrator) BeforeTest(ctx context.Context, w *Worker, test string) (err error) {
	ctx, span := startSpan(ctx, "lifecycle.before_test", AttrWorker.String(w.ID), AttrTest.String(test))
	defer func() { endSpan(span, err) }()

	session, err := w.Session()
	if err != nil {
		return err
	}
	w.setTest(test)

	target, err := baseURL(w.Config())
	if err != nil {
		return err
	}

	if err := session.Navigate(ctx, target); err != nil {
		w.logger.Warnf("%s: %v", test, err)
		return err
	}
	return w.transition(StateNavigated)
}

// AfterTest records the outcome of one attempt. A nil err passes the test;
// otherwise the retry policy decides between another attempt and a final
// failure, which triggers failure capture.
func (o *Orchestrator) AfterTest(ctx context.Context, w *Worker, test string, err error) Decision {
	ctx, span := startSpan(ctx, "lifecycle.after_test", AttrWorker.String(w.ID), AttrTest.String(test))
	defer span.End()

	if w.State() == StateNavigated {
		o.move(w, StateExecuted)
	}

	key := w.ID + "/" + test
	var d Decision
	switch {
	case err == nil:
		o.tracker.Pass(key)
		d.Outcome = StatePassed
		w.logger.Infof("%s passed", test)
	case o.tracker.Fail(key):
		d.Outcome = StateRetryScheduled
		w.logger.Warnf("%s failed, retrying: %v", test, err)
	default:
		d.Outcome = StateFailed
		w.logger.Errorf("%s failed: %v", test, err)

		session, _ := w.Session()
		artifact := o.capturer.WithLogger(w.logger).OnFailure(ctx, test, session, err)
		d.Artifact = &artifact
	}

	if err != nil {
		span.RecordError(err)
	}
	span.SetAttributes(AttrOutcome.String(d.Outcome.String()))
	metricOutcomes.WithLabelValues(d.Outcome.String()).Inc()

	o.move(w, d.Outcome)
	o.move(w, StateSessionActive)
	w.setTest("")
	return d
}

// AfterClass releases the worker's session. Release errors are logged and
// kept on the worker, never returned.
func (o *Orchestrator) AfterClass(ctx context.Context, w *Worker) {
	_, span := startSpan(ctx, "lifecycle.after_class", AttrWorker.String(w.ID))
	defer span.End()

	err := o.pool.Release(w.ID)
	if err != nil {
		metricReleaseFailures.Inc()
		span.RecordError(err)
		w.logger.Warnf("session release failed: %v", err)
	}

	w.unbind(err)
	o.move(w, StateClosed)
}

// move applies a transition, logging rather than failing when a runner
// calls hooks out of order.
func (o *Orchestrator) move(w *Worker, to State) {
	if err := w.transition(to); err != nil {
		w.logger.Warnf("%v", err)
	}
}

func baseURL(p config.Provider) (string, error) {
	if p == nil {
		return "", &config.KeyError{Key: config.KeyBaseURL, Err: config.ErrMissingKey}
	}
	return p.Get(config.KeyBaseURL)
}
