package wait

import (
	"context"
	"fmt"

	"github.com/entrhq/harness/pkg/browser"
)

// Element actions wait for the element to reach the state the action needs,
// then act on it once. A failed wait is returned unchanged inside the action
// error, so errors.Is(err, ErrTimeout) still holds.

// Click waits until selector is clickable, then clicks it.
func (e *Engine) Click(ctx context.Context, selector string, opts ...Option) error {
	return e.ClickWith(ctx, selector, browser.ClickOptions{}, opts...)
}

// ClickWith clicks with explicit click options. A script click only needs the
// element to be present, since it does not go through the pointer.
func (e *Engine) ClickWith(ctx context.Context, selector string, click browser.ClickOptions, opts ...Option) error {
	ready := Clickable(selector)
	if click.Script {
		ready = Present(selector)
	}
	return e.act(ctx, "click", selector, ready, opts, func(page browser.Page) error {
		return page.Click(ctx, selector, click)
	})
}

// Fill waits until selector is visible, then replaces its value.
func (e *Engine) Fill(ctx context.Context, selector, value string, opts ...Option) error {
	return e.act(ctx, "fill", selector, Visible(selector), opts, func(page browser.Page) error {
		return page.Fill(ctx, selector, value)
	})
}

// Hover waits until selector is visible, then moves the pointer over it.
func (e *Engine) Hover(ctx context.Context, selector string, opts ...Option) error {
	return e.act(ctx, "hover", selector, Visible(selector), opts, func(page browser.Page) error {
		return page.Hover(ctx, selector)
	})
}

// ScrollIntoView waits until selector is present, then scrolls it into view.
func (e *Engine) ScrollIntoView(ctx context.Context, selector string, opts ...Option) error {
	return e.act(ctx, "scroll", selector, Present(selector), opts, func(page browser.Page) error {
		return page.ScrollIntoView(ctx, selector)
	})
}

// Select waits until the <select> matching selector is visible, then picks
// options from it and returns the selected values.
func (e *Engine) Select(ctx context.Context, selector string, sel browser.Selection, opts ...Option) ([]string, error) {
	var selected []string
	err := e.act(ctx, "select", selector, Visible(selector), opts, func(page browser.Page) error {
		var err error
		selected, err = page.SelectOption(ctx, selector, sel)
		return err
	})
	return selected, err
}

// Text waits until selector is visible, then reads its rendered text.
func (e *Engine) Text(ctx context.Context, selector string, opts ...Option) (string, error) {
	var text string
	err := e.act(ctx, "text", selector, Visible(selector), opts, func(page browser.Page) error {
		var err error
		text, err = page.Text(ctx, selector)
		return err
	})
	return text, err
}

func (e *Engine) act(ctx context.Context, action, selector string, ready Condition[browser.ElementState], opts []Option, do func(browser.Page) error) error {
	if _, err := For(ctx, e, ready, opts...); err != nil {
		recordAction(action, err)
		return fmt.Errorf("%s %q: %w", action, selector, err)
	}

	page, err := e.session.Page()
	if err == nil {
		err = do(page)
	}
	recordAction(action, err)
	if err != nil {
		e.logger.Warnf("%s %q failed: %v", action, selector, err)
		return fmt.Errorf("%s %q: %w", action, selector, err)
	}

	e.logger.Debugf("%s %q", action, selector)
	return nil
}
