package browser

import (
	"context"
	"time"
)

// Page is the driver-facing surface a session exposes to the rest of the harness.
// Each method is a single round trip to the browser, so a value returned by
// Probe or Readiness is one consistent snapshot of the page.
type Page interface {
	// Goto navigates and waits for the load event.
	Goto(ctx context.Context, url string) error

	// URL returns the current page URL.
	URL() string

	// Title returns the document title.
	Title(ctx context.Context) (string, error)

	// Evaluate runs script in the page. If arg is non-nil the script must be a
	// function expression taking one argument.
	Evaluate(ctx context.Context, script string, arg interface{}) (interface{}, error)

	// Probe reports the state of the first element matching a CSS selector.
	// A missing element is not an error: the returned state has Present false.
	Probe(ctx context.Context, selector string) (ElementState, error)

	// Readiness reports document load state and pending async work.
	Readiness(ctx context.Context) (Readiness, error)

	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string, opts ClickOptions) error

	// Fill replaces the value of the input matching selector.
	Fill(ctx context.Context, selector, value string) error

	// Hover moves the pointer over the element matching selector.
	Hover(ctx context.Context, selector string) error

	// ScrollIntoView scrolls the element matching selector into the viewport.
	ScrollIntoView(ctx context.Context, selector string) error

	// SelectOption selects options of the <select> matching selector and
	// returns the values that ended up selected.
	SelectOption(ctx context.Context, selector string, sel Selection) ([]string, error)

	// Text returns the rendered text of the element matching selector.
	Text(ctx context.Context, selector string) (string, error)

	// Screenshot captures the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	// Content returns the serialized DOM.
	Content(ctx context.Context) (string, error)

	// ConsoleLog returns console messages seen since the page opened.
	ConsoleLog() []ConsoleEntry

	// SetDefaultTimeout bounds every driver action that has no explicit timeout.
	SetDefaultTimeout(d time.Duration) error

	// SetViewport resizes the page viewport.
	SetViewport(width, height int) error

	// Close releases the page and everything the launcher created for it.
	Close() error
}

// ElementState is a snapshot of one element.
type ElementState struct {
	Present  bool    `json:"present"`
	Visible  bool    `json:"visible"`
	Enabled  bool    `json:"enabled"`
	Obscured bool    `json:"obscured"`
	Text     string  `json:"text"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
}

// Clickable reports whether the element is visible, enabled and not covered.
func (s ElementState) Clickable() bool {
	return s.Present && s.Visible && s.Enabled && !s.Obscured
}

// ClickOptions configures element clicking behavior.
type ClickOptions struct {
	// Button is left, right or middle; empty means left
	Button string

	// Count is the number of clicks; 2 is a double click
	Count int

	// Script dispatches the click from page script instead of the pointer,
	// so it lands even on covered elements.
	Script bool
}

// Selection picks <select> options by value or by visible label.
type Selection struct {
	Values []string
	Labels []string
}

// Empty reports whether the selection names no option.
func (s Selection) Empty() bool {
	return len(s.Values) == 0 && len(s.Labels) == 0
}

// Readiness is a snapshot of document and framework activity.
// Pending is only meaningful when Checked is true, which the driver sets
// only after observing a complete document.
type Readiness struct {
	DocumentState string `json:"state"`
	Pending       int    `json:"pending"`
	Checked       bool   `json:"checked"`
}

// Complete reports whether the document has finished loading.
func (r Readiness) Complete() bool {
	return r.DocumentState == "complete"
}

// Idle reports whether the document is complete with no pending async work.
func (r Readiness) Idle() bool {
	return r.Complete() && r.Checked && r.Pending == 0
}

// ConsoleEntry is one browser console message.
type ConsoleEntry struct {
	Time  time.Time `json:"time"`
	Level string    `json:"level"`
	Text  string    `json:"text"`
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}
