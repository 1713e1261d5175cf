package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/entrhq/harness/pkg/capture"
)

// TestFunc is a test body. It reaches the browser through w.Session and
// w.Wait, and records evidence through w.Attach.
type TestFunc func(ctx context.Context, w *Worker) error

// Test is one named test case.
type Test struct {
	Name string
	Run  TestFunc
}

// Class groups tests that share one session.
type Class struct {
	Name string

	// Browser overrides the configured browser for this class
	Browser string

	Tests []Test
}

// TestID returns the identifier used for filtering and retry bookkeeping.
func (c Class) TestID(t Test) string {
	return c.Name + "." + t.Name
}

// Status is the final result of a test case.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// ErrClassAborted marks tests skipped because their class could not start.
var ErrClassAborted = errors.New("class aborted")

// PanicError is a recovered panic from a test body.
type PanicError struct {
	Value interface{}
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("test panicked: %v", e.Value)
}

// StackTrace returns the stack of the panicking goroutine.
func (e *PanicError) StackTrace() string {
	return e.Stack
}

// Attempt is one execution of a test.
type Attempt struct {
	Number   int           `json:"number"`
	Outcome  State         `json:"outcome"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// TestResult is the outcome of a test across all its attempts. Only the
// final attempt decides Status.
type TestResult struct {
	ID       string            `json:"id"`
	Status   Status            `json:"status"`
	Error    string            `json:"error,omitempty"`
	Trace    string            `json:"trace,omitempty"`
	Attempts []Attempt         `json:"attempts,omitempty"`
	Artifact *capture.Artifact `json:"artifact,omitempty"`
}

// ClassResult is the outcome of one class on one worker.
type ClassResult struct {
	Class     string        `json:"class"`
	Worker    string        `json:"worker"`
	Browser   string        `json:"browser,omitempty"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	Teardown  string        `json:"teardown_error,omitempty"`
	Tests     []TestResult  `json:"tests"`
}

// RunClass runs every test of class on w: BeforeClass once, then for each
// test BeforeTest, the body and AfterTest until the retry policy stops, and
// finally AfterClass. The session is released on every exit path.
func (o *Orchestrator) RunClass(ctx context.Context, w *Worker, class Class) (res ClassResult) {
	ctx, span := startSpan(ctx, "lifecycle.class",
		AttrWorker.String(w.ID), AttrClass.String(class.Name), AttrBrowser.String(class.Browser))
	defer span.End()

	res = ClassResult{
		Class:     class.Name,
		Worker:    w.ID,
		Browser:   class.Browser,
		StartTime: time.Now(),
	}
	defer func() {
		res.EndTime = time.Now()
		res.Duration = res.EndTime.Sub(res.StartTime)
	}()

	if err := o.BeforeClass(ctx, w, class.Browser); err != nil {
		res.Error = err.Error()
		for _, t := range class.Tests {
			res.Tests = append(res.Tests, TestResult{
				ID:     class.TestID(t),
				Status: StatusSkipped,
				Error:  fmt.Sprintf("%v: %v", ErrClassAborted, err),
			})
		}
		// A worker still inside another class keeps its session.
		if !errors.Is(err, ErrInvalidTransition) {
			o.AfterClass(ctx, w)
		}
		span.RecordError(err)
		return res
	}

	if session, err := w.Session(); err == nil {
		res.Browser = session.Kind.String()
	}

	defer func() {
		o.AfterClass(ctx, w)
		if terr := w.TeardownError(); terr != nil {
			res.Teardown = terr.Error()
		}
	}()

	for _, t := range class.Tests {
		if err := ctx.Err(); err != nil {
			res.Tests = append(res.Tests, TestResult{ID: class.TestID(t), Status: StatusSkipped, Error: err.Error()})
			continue
		}
		res.Tests = append(res.Tests, o.runTest(ctx, w, class.TestID(t), t))
	}
	return res
}

func (o *Orchestrator) runTest(ctx context.Context, w *Worker, id string, t Test) TestResult {
	result := TestResult{ID: id}

	for n := 1; ; n++ {
		attemptCtx, span := startSpan(ctx, "lifecycle.test", AttrWorker.String(w.ID), AttrTest.String(id), AttrAttempt.Int(n))
		start := time.Now()

		err := o.BeforeTest(attemptCtx, w, id)
		if err == nil {
			err = execute(attemptCtx, w, t)
		}
		d := o.AfterTest(attemptCtx, w, id, err)
		endSpan(span, err)

		attempt := Attempt{Number: n, Outcome: d.Outcome, Duration: time.Since(start)}
		if err != nil {
			attempt.Error = err.Error()
		}
		result.Attempts = append(result.Attempts, attempt)

		if d.Retry() && ctx.Err() == nil {
			continue
		}

		result.Status = StatusPassed
		if err != nil {
			result.Status = StatusFailed
			result.Error = err.Error()
			var pe *PanicError
			if errors.As(err, &pe) {
				result.Trace = pe.Stack
			}
		}
		result.Artifact = d.Artifact
		return result
	}
}

// execute runs the test body, converting a panic into a *PanicError.
func execute(ctx context.Context, w *Worker, t Test) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metricPanics.Inc()
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()

	if t.Run == nil {
		return nil
	}
	return t.Run(ctx, w)
}
