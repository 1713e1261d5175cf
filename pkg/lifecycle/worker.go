package lifecycle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/entrhq/harness/pkg/browser"
	"github.com/entrhq/harness/pkg/capture"
	"github.com/entrhq/harness/pkg/config"
	"github.com/entrhq/harness/pkg/logging"
	"github.com/entrhq/harness/pkg/wait"
)

// ErrNoActiveTest is returned by Worker.Attach outside a running test.
var ErrNoActiveTest = errors.New("no test running")

// Worker is the context one goroutine carries through a class: its identity,
// lifecycle state and, while a class runs, its session and wait engine.
// A Worker is driven by a single goroutine; accessors are safe to call from
// others.
type Worker struct {
	ID string

	logger *logging.Logger

	// base is the configuration each class starts from; config is base plus
	// the running class's overrides
	base config.Provider

	mu          sync.Mutex
	state       State
	history     []State
	config      config.Provider
	session     *browser.Session
	engine      *wait.Engine
	sink        capture.Sink
	test        string
	teardownErr error
}

// NewWorker returns an uninitialized worker. A nil logger discards output.
func NewWorker(id string, p config.Provider, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Discard("lifecycle")
	}
	return &Worker{
		ID:      id,
		logger:  logger.With("worker", id),
		state:   StateUninitialized,
		history: []State{StateUninitialized},
		base:    p,
		config:  p,
	}
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// History returns every state the worker has entered, in order.
func (w *Worker) History() []State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]State(nil), w.history...)
}

// Session returns the worker's session, or browser.ErrNotInitialized
// outside BeforeClass/AfterClass.
func (w *Worker) Session() (*browser.Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.session == nil {
		return nil, fmt.Errorf("worker %s: %w", w.ID, browser.ErrNotInitialized)
	}
	return w.session, nil
}

// Wait returns the wait engine bound to the worker's session, nil before
// BeforeClass succeeds.
func (w *Worker) Wait() *wait.Engine {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.engine
}

// Config returns the configuration the worker resolves against.
func (w *Worker) Config() config.Provider {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.config
}

// Logger returns the worker-scoped logger.
func (w *Worker) Logger() *logging.Logger {
	return w.logger
}

// TeardownError returns the error swallowed by AfterClass, if any.
func (w *Worker) TeardownError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.teardownErr
}

// Test returns the ID of the running test, empty between tests.
func (w *Worker) Test() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.test
}

// Attach hands labeled evidence for the running test to the failure sink.
// Without a sink the data is dropped.
func (w *Worker) Attach(name, contentType string, data []byte) error {
	w.mu.Lock()
	sink, test := w.sink, w.test
	w.mu.Unlock()

	if test == "" {
		return fmt.Errorf("worker %s: attach %q: %w", w.ID, name, ErrNoActiveTest)
	}
	if sink == nil {
		return nil
	}
	att := capture.Attachment{Name: name, ContentType: contentType, Data: append([]byte(nil), data...)}
	if err := sink.Attach(test, att); err != nil {
		return fmt.Errorf("worker %s: attach %q: %w", w.ID, name, err)
	}
	w.logger.Debugf("%s: attached %s (%d bytes)", test, name, len(data))
	return nil
}

// Parameter records run metadata on the failure sink.
func (w *Worker) Parameter(key, value string) error {
	w.mu.Lock()
	sink := w.sink
	w.mu.Unlock()

	if sink == nil {
		return nil
	}
	if err := sink.Parameter(key, value); err != nil {
		return fmt.Errorf("worker %s: parameter %q: %w", w.ID, key, err)
	}
	return nil
}

func (w *Worker) transition(to State) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.state.CanTransition(to) {
		return fmt.Errorf("%w: worker %s cannot move from %s to %s", ErrInvalidTransition, w.ID, w.state, to)
	}
	w.state = to
	w.history = append(w.history, to)
	return nil
}

func (w *Worker) bind(p config.Provider, session *browser.Session, engine *wait.Engine, sink capture.Sink) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.config = p
	w.session = session
	w.engine = engine
	w.sink = sink
	w.teardownErr = nil
}

func (w *Worker) setTest(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.test = id
}

func (w *Worker) unbind(teardownErr error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.config = w.base
	w.session = nil
	w.engine = nil
	w.sink = nil
	w.test = ""
	w.teardownErr = teardownErr
}
