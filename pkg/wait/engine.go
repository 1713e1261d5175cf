package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/harness/pkg/browser"
	"github.com/entrhq/harness/pkg/config"
	"github.com/entrhq/harness/pkg/logging"
)

// Engine runs bounded waits against one session. Each worker owns its own
// Engine; an Engine must not be shared between workers.
type Engine struct {
	session *browser.Session
	config  config.Provider
	logger  *logging.Logger
}

// NewEngine binds an engine to session. A nil provider uses built-in
// defaults; a nil logger discards output.
func NewEngine(session *browser.Session, p config.Provider, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Discard("wait")
	}
	return &Engine{
		session: session,
		config:  p,
		logger:  logger,
	}
}

// Session returns the session the engine is bound to.
func (e *Engine) Session() *browser.Session {
	return e.session
}

// Spec resolves the wait parameters for one call.
func (e *Engine) Spec(opts ...Option) (Spec, error) {
	return Resolve(e.config, opts...)
}

// For polls cond until it is ready and returns its value.
//
// Errors from cond that match the resolved ignore set count as "not yet";
// any other error ends the wait immediately. When the timeout elapses the
// error is a *TimeoutError carrying the last observed reason.
func For[T any](ctx context.Context, e *Engine, cond Condition[T], opts ...Option) (T, error) {
	var zero T

	spec, err := e.Spec(opts...)
	if err != nil {
		return zero, err
	}
	if e.session == nil {
		return zero, browser.ErrNotInitialized
	}
	page, err := e.session.Page()
	if err != nil {
		return zero, err
	}

	value, st, err := poll(ctx, page, spec, cond)
	recordWait(modeCondition, st, err)

	var timeout *TimeoutError
	switch {
	case err == nil:
		e.logger.Debugf("condition met after %d polls in %s", st.polls, st.elapsed)
	case errors.As(err, &timeout):
		e.logger.Warnf("%v", err)
	default:
		e.logger.Debugf("wait ended after %d polls: %v", st.polls, err)
	}
	return value, err
}

// Until waits for a boolean predicate.
func (e *Engine) Until(ctx context.Context, pred func(ctx context.Context, page browser.Page) (bool, error), opts ...Option) error {
	_, err := For(ctx, e, Func(pred), opts...)
	return err
}

// ForPresence waits until selector matches an element in the DOM.
func (e *Engine) ForPresence(ctx context.Context, selector string, opts ...Option) (browser.ElementState, error) {
	return For(ctx, e, Present(selector), opts...)
}

// ForVisibility waits until selector matches a rendered element with non-zero size.
func (e *Engine) ForVisibility(ctx context.Context, selector string, opts ...Option) (browser.ElementState, error) {
	return For(ctx, e, Visible(selector), opts...)
}

// ForClickable waits until selector matches a visible, enabled, unobscured element.
func (e *Engine) ForClickable(ctx context.Context, selector string, opts ...Option) (browser.ElementState, error) {
	return For(ctx, e, Clickable(selector), opts...)
}

// ForText waits until the element matching selector contains text.
func (e *Engine) ForText(ctx context.Context, selector, text string, opts ...Option) (string, error) {
	return For(ctx, e, TextPresent(selector, text), opts...)
}

// ForURL waits until the page URL contains fragment.
func (e *Engine) ForURL(ctx context.Context, fragment string, opts ...Option) (string, error) {
	return For(ctx, e, URLContains(fragment), opts...)
}

// ForTitle waits until the document title equals title.
func (e *Engine) ForTitle(ctx context.Context, title string, opts ...Option) (string, error) {
	return For(ctx, e, TitleIs(title), opts...)
}

// ForPageReady waits until the document is complete and no async framework
// requests are pending, both observed in the same poll.
func (e *Engine) ForPageReady(ctx context.Context, opts ...Option) error {
	_, err := For(ctx, e, PageReady(), opts...)
	return err
}

// Pause blocks for d. It has no predicate and never consults the ignore set.
// A cancelled ctx cuts the pause short.
func (e *Engine) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	e.logger.Debugf("pausing for %s", d)
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		metricPauses.Inc()
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pause interrupted: %w", ctx.Err())
	}
}
