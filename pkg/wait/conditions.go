package wait

import (
	"context"
	"strings"

	"github.com/entrhq/harness/pkg/browser"
)

type elementLevel int

const (
	levelPresent elementLevel = iota
	levelVisible
	levelClickable
)

// Present holds once selector matches an element in the DOM.
func Present(selector string) Condition[browser.ElementState] {
	return elementCondition(selector, levelPresent)
}

// Visible holds once selector matches a rendered element with non-zero size.
func Visible(selector string) Condition[browser.ElementState] {
	return elementCondition(selector, levelVisible)
}

// Clickable holds once selector matches a visible, enabled, unobscured element.
func Clickable(selector string) Condition[browser.ElementState] {
	return elementCondition(selector, levelClickable)
}

// elementCondition evaluates the weaker checks before the stronger ones, all
// against a single Probe snapshot.
func elementCondition(selector string, need elementLevel) Condition[browser.ElementState] {
	return func(ctx context.Context, page browser.Page) (Poll[browser.ElementState], error) {
		state, err := page.Probe(ctx, selector)
		if err != nil {
			return Poll[browser.ElementState]{}, err
		}

		if !state.Present {
			return NotYet[browser.ElementState]("no element matches %q", selector), nil
		}
		if need >= levelVisible && (!state.Visible || state.Width <= 0 || state.Height <= 0) {
			return NotYet[browser.ElementState]("element %q is present but not visible", selector), nil
		}
		if need >= levelClickable {
			if !state.Enabled {
				return NotYet[browser.ElementState]("element %q is visible but disabled", selector), nil
			}
			if state.Obscured {
				return NotYet[browser.ElementState]("element %q is visible but obscured", selector), nil
			}
		}
		return Ready(state), nil
	}
}

// TextPresent holds once the element matching selector contains text.
func TextPresent(selector, text string) Condition[string] {
	return func(ctx context.Context, page browser.Page) (Poll[string], error) {
		state, err := page.Probe(ctx, selector)
		if err != nil {
			return Poll[string]{}, err
		}
		if !state.Present {
			return NotYet[string]("no element matches %q", selector), nil
		}
		if !strings.Contains(state.Text, text) {
			return NotYet[string]("element %q text %q does not contain %q", selector, state.Text, text), nil
		}
		return Ready(state.Text), nil
	}
}

// URLContains holds once the page URL contains fragment.
func URLContains(fragment string) Condition[string] {
	return func(_ context.Context, page browser.Page) (Poll[string], error) {
		url := page.URL()
		if !strings.Contains(url, fragment) {
			return NotYet[string]("url %q does not contain %q", url, fragment), nil
		}
		return Ready(url), nil
	}
}

// TitleIs holds once the document title equals title.
func TitleIs(title string) Condition[string] {
	return func(ctx context.Context, page browser.Page) (Poll[string], error) {
		got, err := page.Title(ctx)
		if err != nil {
			return Poll[string]{}, err
		}
		if got != title {
			return NotYet[string]("title is %q, want %q", got, title), nil
		}
		return Ready(got), nil
	}
}

// PageReady holds once the document is complete and the framework reports no
// pending requests. Pending work is only consulted after the document is
// complete, and both come from the same snapshot.
func PageReady() Condition[browser.Readiness] {
	return func(ctx context.Context, page browser.Page) (Poll[browser.Readiness], error) {
		r, err := page.Readiness(ctx)
		if err != nil {
			return Poll[browser.Readiness]{}, err
		}
		if !r.Complete() {
			return NotYet[browser.Readiness]("document.readyState is %q", r.DocumentState), nil
		}
		if !r.Checked || r.Pending != 0 {
			return NotYet[browser.Readiness]("%d async requests pending", r.Pending), nil
		}
		return Ready(r), nil
	}
}

// Func adapts a boolean predicate.
func Func(pred func(ctx context.Context, page browser.Page) (bool, error)) Condition[bool] {
	return func(ctx context.Context, page browser.Page) (Poll[bool], error) {
		ok, err := pred(ctx, page)
		if err != nil {
			return Poll[bool]{}, err
		}
		if !ok {
			return NotYet[bool]("condition returned false"), nil
		}
		return Ready(true), nil
	}
}
