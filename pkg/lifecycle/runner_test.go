package lifecycle_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/harness/pkg/browser"
	"github.com/entrhq/harness/pkg/browser/browsertest"
	"github.com/entrhq/harness/pkg/capture"
	"github.com/entrhq/harness/pkg/lifecycle"
	"github.com/entrhq/harness/pkg/wait"
)

func passing(ctx context.Context, w *lifecycle.Worker) error { return nil }

func TestRunClass(t *testing.T) {
	f := newFixture(t, nil)

	var flakyRuns int32
	class := lifecycle.Class{
		Name: "Checkout",
		Tests: []lifecycle.Test{
			{Name: "pass", Run: passing},
			{Name: "flaky", Run: func(ctx context.Context, w *lifecycle.Worker) error {
				if atomic.AddInt32(&flakyRuns, 1) < 2 {
					return errors.New("stale element")
				}
				return nil
			}},
			{Name: "broken", Run: func(ctx context.Context, w *lifecycle.Worker) error {
				return errors.New("total is wrong")
			}},
			{Name: "panics", Run: func(ctx context.Context, w *lifecycle.Worker) error {
				var m map[string]int
				m["x"] = 1
				return nil
			}},
		},
	}

	w := f.orch.NewWorker("w1")
	res := f.orch.RunClass(context.Background(), w, class)

	assert.Equal(t, "Checkout", res.Class)
	assert.Equal(t, "w1", res.Worker)
	assert.Equal(t, "local-chrome", res.Browser)
	assert.Empty(t, res.Error)
	require.Len(t, res.Tests, 4)

	pass, flaky, broken, panics := res.Tests[0], res.Tests[1], res.Tests[2], res.Tests[3]

	assert.Equal(t, "Checkout.pass", pass.ID)
	assert.Equal(t, lifecycle.StatusPassed, pass.Status)
	assert.Len(t, pass.Attempts, 1)

	assert.Equal(t, lifecycle.StatusPassed, flaky.Status, "only the final attempt counts")
	require.Len(t, flaky.Attempts, 2)
	assert.Equal(t, lifecycle.StateRetryScheduled, flaky.Attempts[0].Outcome)
	assert.Equal(t, "stale element", flaky.Attempts[0].Error)
	assert.Equal(t, lifecycle.StatePassed, flaky.Attempts[1].Outcome)

	assert.Equal(t, lifecycle.StatusFailed, broken.Status)
	assert.Len(t, broken.Attempts, 3)
	assert.Equal(t, "total is wrong", broken.Error)
	require.NotNil(t, broken.Artifact)

	assert.Equal(t, lifecycle.StatusFailed, panics.Status)
	assert.Contains(t, panics.Error, "test panicked")
	assert.Contains(t, panics.Trace, "runtime/debug.Stack")
	require.NotNil(t, panics.Artifact)
	assert.Equal(t, panics.Trace, panics.Artifact.Trace)

	assert.Len(t, f.sink.Artifacts(), 2)
	assert.Equal(t, lifecycle.StateClosed, w.State())
	assert.Equal(t, 0, f.registry.Len())
	assert.Equal(t, 1, f.launcher.Launches(), "one session serves the whole class")

	// every attempt navigated to the base URL first
	assert.Len(t, f.launcher.Pages()[0].Navigations(), 1+2+3+3)
}

func TestRunClass_TwoClassesOnOneWorker(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	w := f.orch.NewWorker("w1")

	first := f.orch.RunClass(ctx, w, lifecycle.Class{Name: "A", Browser: "firefox", Tests: []lifecycle.Test{{Name: "one", Run: passing}}})
	second := f.orch.RunClass(ctx, w, lifecycle.Class{Name: "B", Tests: []lifecycle.Test{{Name: "two", Run: passing}}})

	for _, res := range []lifecycle.ClassResult{first, second} {
		assert.Empty(t, res.Error, res.Class)
		require.Len(t, res.Tests, 1, res.Class)
		assert.Equal(t, lifecycle.StatusPassed, res.Tests[0].Status, res.Class)
	}
	assert.Equal(t, "local-firefox", first.Browser)
	assert.Equal(t, "local-chrome", second.Browser, "class override must not leak into the next class")

	assert.Equal(t, 2, f.launcher.Launches())
	assert.Equal(t, lifecycle.StateClosed, w.State())
	assert.Equal(t, 0, f.registry.Len())
	for _, page := range f.launcher.Pages() {
		assert.True(t, page.Closed())
	}
}

func TestRunClass_TestBodyAttachesEvidence(t *testing.T) {
	f := newFixture(t, nil)

	class := lifecycle.Class{
		Name: "Search",
		Tests: []lifecycle.Test{
			{Name: "query", Run: func(ctx context.Context, w *lifecycle.Worker) error {
				if err := w.Parameter("Locale", "en-GB"); err != nil {
					return err
				}
				return w.Attach("request.json", capture.ContentTypeJSON, []byte(`{"q":"shoes"}`))
			}},
		},
	}

	res := f.orch.RunClass(context.Background(), f.orch.NewWorker("w1"), class)
	require.Len(t, res.Tests, 1)
	assert.Equal(t, lifecycle.StatusPassed, res.Tests[0].Status)

	atts := f.sink.AttachmentsFor("Search.query")
	require.Len(t, atts, 1)
	assert.Equal(t, "request.json", atts[0].Name)
	assert.Equal(t, capture.ContentTypeJSON, atts[0].ContentType)
	assert.Equal(t, "en-GB", f.sink.Parameters()["Locale"])
}

func TestRunClass_SetupFailureSkipsTests(t *testing.T) {
	f := newFixture(t, nil)
	f.launcher.Err = errors.New("no browser")

	var ran int32
	body := func(ctx context.Context, w *lifecycle.Worker) error {
		atomic.AddInt32(&ran, 1)
		return nil
	}
	class := lifecycle.Class{Name: "Login", Tests: []lifecycle.Test{{Name: "a", Run: body}, {Name: "b", Run: body}}}

	w := f.orch.NewWorker("w1")
	res := f.orch.RunClass(context.Background(), w, class)

	assert.Contains(t, res.Error, "no browser")
	require.Len(t, res.Tests, 2)
	for _, tr := range res.Tests {
		assert.Equal(t, lifecycle.StatusSkipped, tr.Status)
		assert.Contains(t, tr.Error, lifecycle.ErrClassAborted.Error())
	}
	assert.Zero(t, atomic.LoadInt32(&ran))
	assert.Equal(t, lifecycle.StateClosed, w.State())
}

func TestRunClass_UsesWorkerWaitEngine(t *testing.T) {
	f := newFixture(t, map[string]string{"explicit.wait": "1", "polling.interval": "10"})
	f.launcher.Setup = func(_ browsertest.Request, p *browsertest.Page) {
		p.Appear("#greeting", browser.ElementState{Visible: true, Width: 10, Height: 10, Text: "Hello"}, 30*time.Millisecond)
	}

	class := lifecycle.Class{Name: "Home", Tests: []lifecycle.Test{{
		Name: "greets",
		Run: func(ctx context.Context, w *lifecycle.Worker) error {
			_, err := w.Wait().ForText(ctx, "#greeting", "Hello")
			return err
		},
	}, {
		Name: "missing",
		Run: func(ctx context.Context, w *lifecycle.Worker) error {
			_, err := w.Wait().ForPresence(ctx, "#nope", wait.WithTimeout(20*time.Millisecond))
			return err
		},
	}}}

	res := f.orch.RunClass(context.Background(), f.orch.NewWorker("w1"), class)
	require.Len(t, res.Tests, 2)
	assert.Equal(t, lifecycle.StatusPassed, res.Tests[0].Status)
	assert.Equal(t, lifecycle.StatusFailed, res.Tests[1].Status)
	assert.Contains(t, res.Tests[1].Error, "wait timed out")
}

func TestRun(t *testing.T) {
	f := newFixture(t, map[string]string{"retry.count": "0"})

	var active, peak int32
	body := func(ctx context.Context, w *lifecycle.Worker) error {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return nil
	}

	classes := []lifecycle.Class{
		{Name: "A", Tests: []lifecycle.Test{{Name: "one", Run: body}, {Name: "slow", Run: body}}},
		{Name: "B", Browser: "firefox", Tests: []lifecycle.Test{{Name: "one", Run: body}}},
		{Name: "C", Tests: []lifecycle.Test{{Name: "one", Run: body}, {Name: "fails", Run: func(context.Context, *lifecycle.Worker) error {
			return errors.New("nope")
		}}}},
		{Name: "D", Tests: []lifecycle.Test{{Name: "slow", Run: body}}},
	}

	filter, err := lifecycle.NewFilter(nil, []string{"*.slow"})
	require.NoError(t, err)

	report := f.orch.Run(context.Background(), classes, lifecycle.RunOptions{Parallelism: 2, Filter: filter})

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "qa", report.Env)
	require.Len(t, report.Classes, 3, "D has no selected tests")
	assert.Equal(t, "A", report.Classes[0].Class)
	assert.Equal(t, "local-firefox", report.Classes[1].Browser)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))

	assert.Equal(t, lifecycle.Summary{
		Classes:  3,
		Total:    4,
		Passed:   3,
		Failed:   1,
		Attempts: 4,
	}, report.Summary)
	assert.False(t, report.Summary.OK())

	workers := map[string]bool{}
	for _, c := range report.Classes {
		workers[c.Worker] = true
	}
	assert.Len(t, workers, 3, "each class runs on its own worker")
	assert.Equal(t, 0, f.registry.Len())
}

func TestWriteReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	report := &lifecycle.Report{
		RunID: "run-1",
		Classes: []lifecycle.ClassResult{{
			Class: "A",
			Tests: []lifecycle.TestResult{
				{ID: "A.one", Status: lifecycle.StatusPassed, Attempts: []lifecycle.Attempt{{Number: 1, Outcome: lifecycle.StatePassed}}},
				{ID: "A.two", Status: lifecycle.StatusSkipped},
			},
		}},
	}
	report.Summary = lifecycle.Summarize(report.Classes)

	path, err := lifecycle.WriteReport(dir, report)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Contains(t, string(raw), `"outcome": "passed"`)

	raw, err = os.ReadFile(filepath.Join(dir, "summary.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"classes":1,"classes_aborted":0,"total":2,"passed":1,"failed":0,"skipped":1,"retried":0,"attempts":1}`, string(raw))
}
