package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/harness/pkg/browser"
	"github.com/entrhq/harness/pkg/logging"
)

// Tracer is implemented by errors that carry the stack they were raised on.
type Tracer interface {
	StackTrace() string
}

// Options bounds what a Capturer collects.
type Options struct {
	// SourceLimit caps the cleaned page source in bytes
	SourceLimit int

	// TextLimit caps the visible page text in bytes
	TextLimit int

	// LogLines caps the log excerpt; 0 keeps every buffered line
	LogLines int

	// StepTimeout bounds each browser call made while capturing
	StepTimeout time.Duration
}

// DefaultOptions returns the limits used when a field is left zero.
func DefaultOptions() Options {
	return Options{
		SourceLimit: DefaultSourceLimit,
		TextLimit:   DefaultTextLimit,
		LogLines:    200,
		StepTimeout: 10 * time.Second,
	}
}

// Capturer gathers failure evidence from a session and hands it to a Sink.
type Capturer struct {
	sink   Sink
	logger *logging.Logger
	opts   Options
}

// NewCapturer returns a capturer writing to sink. A nil logger discards output.
func NewCapturer(sink Sink, logger *logging.Logger, opts Options) *Capturer {
	if logger == nil {
		logger = logging.Discard("capture")
	}

	def := DefaultOptions()
	if opts.SourceLimit <= 0 {
		opts.SourceLimit = def.SourceLimit
	}
	if opts.TextLimit <= 0 {
		opts.TextLimit = def.TextLimit
	}
	if opts.LogLines < 0 {
		opts.LogLines = def.LogLines
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = def.StepTimeout
	}

	return &Capturer{sink: sink, logger: logger, opts: opts}
}

// WithLogger returns a copy whose log excerpts come from logger, typically a
// worker-scoped child.
func (c *Capturer) WithLogger(logger *logging.Logger) *Capturer {
	clone := *c
	clone.logger = logger
	return &clone
}

// Sink returns the sink artifacts are recorded to.
func (c *Capturer) Sink() Sink {
	return c.sink
}

// OnFailure collects whatever evidence is available for a failed test and
// records it. It never returns an error and never panics: a step that fails
// leaves its field empty and is noted in Artifact.Problems.
func (c *Capturer) OnFailure(ctx context.Context, test string, session *browser.Session, cause error) Artifact {
	a := Artifact{
		TestName:   test,
		CapturedAt: time.Now(),
		Screenshot: []byte{},
	}
	if cause != nil {
		a.Cause = cause.Error()
		var tr Tracer
		if errors.As(cause, &tr) {
			a.Trace = tr.StackTrace()
		}
	}

	// capture still runs when the test's own context has expired
	ctx = context.WithoutCancel(ctx)

	c.step(&a, "log", func() error {
		a.LogExcerpt = c.logger.Excerpt(c.opts.LogLines)
		return nil
	})

	page, err := sessionPage(session)
	if err != nil {
		a.Problems = append(a.Problems, "page: "+err.Error())
		metricStepFailures.WithLabelValues("page").Inc()
	} else {
		c.collect(ctx, &a, page)
	}

	if c.sink != nil {
		c.step(&a, "record", func() error { return c.sink.Record(a) })
	}

	metricCaptured.Inc()
	c.logger.Infof("captured failure of %s (%d byte screenshot, %d problems)", test, len(a.Screenshot), len(a.Problems))
	return a
}

func (c *Capturer) collect(ctx context.Context, a *Artifact, page browser.Page) {
	c.step(a, "screenshot", func() error {
		stepCtx, cancel := context.WithTimeout(ctx, c.opts.StepTimeout)
		defer cancel()

		data, err := page.Screenshot(stepCtx)
		if err != nil {
			return err
		}
		a.Screenshot = data
		return nil
	})

	c.step(a, "url", func() error {
		a.PageURL = page.URL()
		return nil
	})

	c.step(a, "title", func() error {
		stepCtx, cancel := context.WithTimeout(ctx, c.opts.StepTimeout)
		defer cancel()

		title, err := page.Title(stepCtx)
		a.PageTitle = title
		return err
	})

	c.step(a, "source", func() error {
		stepCtx, cancel := context.WithTimeout(ctx, c.opts.StepTimeout)
		defer cancel()

		raw, err := page.Content(stepCtx)
		if err != nil {
			return err
		}
		if a.PageSource, _, err = cleanSource(raw, c.opts.SourceLimit); err != nil {
			return err
		}
		a.PageText, err = visibleText(raw, c.opts.TextLimit)
		return err
	})

	c.step(a, "console", func() error {
		a.ConsoleLog = page.ConsoleLog()
		return nil
	})
}

// step runs fn, turning an error or panic into a recorded problem.
func (c *Capturer) step(a *Artifact, name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			a.Problems = append(a.Problems, fmt.Sprintf("%s: panic: %v", name, r))
			metricStepFailures.WithLabelValues(name).Inc()
			c.logger.Warnf("capture step %s panicked: %v", name, r)
		}
	}()

	if err := fn(); err != nil {
		a.Problems = append(a.Problems, fmt.Sprintf("%s: %v", name, err))
		metricStepFailures.WithLabelValues(name).Inc()
		c.logger.Warnf("capture step %s failed: %v", name, err)
	}
}

func sessionPage(session *browser.Session) (browser.Page, error) {
	if session == nil {
		return nil, browser.ErrNotInitialized
	}
	return session.Page()
}
