// Package browsertest provides in-memory implementations of browser.Page and
// browser.Launcher for tests that should not start a real browser.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/harness/pkg/browser"
)

// Action records one element action that reached the page.
type Action struct {
	Kind     string
	Selector string
	Value    string
	Click    browser.ClickOptions
}

type element struct {
	state    browser.ElementState
	appearAt time.Time
}

// Page is an in-memory browser.Page. Failure-injection fields must be set
// before the page is shared between goroutines.
type Page struct {
	// GotoErr is returned by every Goto
	GotoErr error

	// TitleErr is returned by every Title
	TitleErr error

	// ActionErr is returned by every element action
	ActionErr error

	// ScreenshotErr is returned by every Screenshot
	ScreenshotErr error

	// ScreenshotPanic makes Screenshot panic with this value when non-nil
	ScreenshotPanic interface{}

	// ContentErr is returned by every Content
	ContentErr error

	// TimeoutErr is returned by SetDefaultTimeout
	TimeoutErr error

	// ViewportErr is returned by SetViewport
	ViewportErr error

	// CloseErr is returned by the first Close
	CloseErr error

	// Titles maps a URL to the title Goto sets; default is the URL itself
	Titles map[string]string

	mu             sync.Mutex
	url            string
	title          string
	content        string
	screenshot     []byte
	console        []browser.ConsoleEntry
	elements       map[string]element
	probeErrs      map[string][]error
	readiness      []browser.Readiness
	evalFunc       func(script string, arg interface{}) (interface{}, error)
	navigations    []string
	actions        []Action
	values         map[string]string
	probes         int
	readinessCalls int
	closed         bool
	closeCalls     int
	defaultTimeout time.Duration
	viewport       browser.Viewport
}

// NewPage returns a blank page at about:blank.
func NewPage() *Page {
	return &Page{
		url:        "about:blank",
		content:    "<html><head></head><body></body></html>",
		screenshot: []byte("\x89PNG fake"),
		elements:   make(map[string]element),
		probeErrs:  make(map[string][]error),
		values:     make(map[string]string),
		readiness:  []browser.Readiness{{DocumentState: "complete", Checked: true}},
	}
}

// SetElement makes selector match an element in the given state immediately.
func (p *Page) SetElement(selector string, state browser.ElementState) {
	p.Appear(selector, state, 0)
}

// Appear makes selector match after delay has elapsed.
func (p *Page) Appear(selector string, state browser.ElementState, delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state.Present = true
	p.elements[selector] = element{state: state, appearAt: time.Now().Add(delay)}
}

// Remove detaches the element matching selector.
func (p *Page) Remove(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, selector)
}

// FailProbes queues errors returned by the next probes of selector, in order.
func (p *Page) FailProbes(selector string, errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probeErrs[selector] = append(p.probeErrs[selector], errs...)
}

// SetReadiness sets the sequence Readiness returns; the last value repeats.
func (p *Page) SetReadiness(seq ...browser.Readiness) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readiness = seq
	p.readinessCalls = 0
}

// SetEvaluate installs the handler used by Evaluate.
func (p *Page) SetEvaluate(fn func(script string, arg interface{}) (interface{}, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evalFunc = fn
}

// SetContent sets the serialized DOM returned by Content.
func (p *Page) SetContent(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.content = html
}

// SetScreenshot sets the bytes returned by Screenshot.
func (p *Page) SetScreenshot(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screenshot = data
}

// Log appends a console message.
func (p *Page) Log(level, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.console = append(p.console, browser.ConsoleEntry{Time: time.Now(), Level: level, Text: text})
}

func (p *Page) checkOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.closed {
		return browser.ErrSessionClosed
	}
	return nil
}

func (p *Page) Goto(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkOpen(ctx); err != nil {
		return err
	}
	if p.GotoErr != nil {
		return p.GotoErr
	}

	p.url = url
	p.title = url
	if title, ok := p.Titles[url]; ok {
		p.title = title
	}
	p.navigations = append(p.navigations, url)
	return nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkOpen(ctx); err != nil {
		return "", err
	}
	if p.TitleErr != nil {
		return "", p.TitleErr
	}
	return p.title, nil
}

func (p *Page) Evaluate(ctx context.Context, script string, arg interface{}) (interface{}, error) {
	p.mu.Lock()
	if err := p.checkOpen(ctx); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	fn := p.evalFunc
	p.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(script, arg)
}

func (p *Page) Probe(ctx context.Context, selector string) (browser.ElementState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkOpen(ctx); err != nil {
		return browser.ElementState{}, err
	}
	p.probes++

	if queued := p.probeErrs[selector]; len(queued) > 0 {
		p.probeErrs[selector] = queued[1:]
		return browser.ElementState{}, queued[0]
	}

	el, ok := p.elements[selector]
	if !ok || time.Now().Before(el.appearAt) {
		return browser.ElementState{}, nil
	}
	return el.state, nil
}

func (p *Page) Readiness(ctx context.Context) (browser.Readiness, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkOpen(ctx); err != nil {
		return browser.Readiness{}, err
	}
	if len(p.readiness) == 0 {
		return browser.Readiness{}, errors.New("readiness not configured")
	}

	i := p.readinessCalls
	if i >= len(p.readiness) {
		i = len(p.readiness) - 1
	}
	p.readinessCalls++
	return p.readiness[i], nil
}

// act checks that selector currently matches and records the action.
// Caller holds p.mu.
func (p *Page) act(ctx context.Context, a Action) (browser.ElementState, error) {
	if err := p.checkOpen(ctx); err != nil {
		return browser.ElementState{}, err
	}
	if p.ActionErr != nil {
		return browser.ElementState{}, p.ActionErr
	}
	el, ok := p.elements[a.Selector]
	if !ok || time.Now().Before(el.appearAt) {
		return browser.ElementState{}, fmt.Errorf("%w: %s", browser.ErrNoSuchElement, a.Selector)
	}
	p.actions = append(p.actions, a)
	return el.state, nil
}

func (p *Page) Click(ctx context.Context, selector string, opts browser.ClickOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.act(ctx, Action{Kind: "click", Selector: selector, Click: opts})
	return err
}

func (p *Page) Fill(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.act(ctx, Action{Kind: "fill", Selector: selector, Value: value}); err != nil {
		return err
	}
	p.values[selector] = value
	return nil
}

func (p *Page) Hover(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.act(ctx, Action{Kind: "hover", Selector: selector})
	return err
}

func (p *Page) ScrollIntoView(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.act(ctx, Action{Kind: "scroll", Selector: selector})
	return err
}

// SelectOption selects by value when values are given, otherwise by label;
// the fake reports the chosen strings back as the selected values.
func (p *Page) SelectOption(ctx context.Context, selector string, sel browser.Selection) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	chosen := sel.Values
	if len(chosen) == 0 {
		chosen = sel.Labels
	}
	if len(chosen) == 0 {
		return nil, fmt.Errorf("select %q: no option given", selector)
	}
	if _, err := p.act(ctx, Action{Kind: "select", Selector: selector, Value: strings.Join(chosen, ",")}); err != nil {
		return nil, err
	}
	p.values[selector] = chosen[0]
	return append([]string(nil), chosen...), nil
}

func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, err := p.act(ctx, Action{Kind: "text", Selector: selector})
	if err != nil {
		return "", err
	}
	return state.Text, nil
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ScreenshotPanic != nil {
		panic(p.ScreenshotPanic)
	}
	if err := p.checkOpen(ctx); err != nil {
		return nil, err
	}
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	out := make([]byte, len(p.screenshot))
	copy(out, p.screenshot)
	return out, nil
}

func (p *Page) Content(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkOpen(ctx); err != nil {
		return "", err
	}
	if p.ContentErr != nil {
		return "", p.ContentErr
	}
	return p.content, nil
}

func (p *Page) ConsoleLog() []browser.ConsoleEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]browser.ConsoleEntry, len(p.console))
	copy(out, p.console)
	return out
}

func (p *Page) SetDefaultTimeout(d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.TimeoutErr != nil {
		return p.TimeoutErr
	}
	p.defaultTimeout = d
	return nil
}

func (p *Page) SetViewport(width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ViewportErr != nil {
		return p.ViewportErr
	}
	p.viewport = browser.Viewport{Width: width, Height: height}
	return nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closeCalls++
	if p.closed {
		return nil
	}
	p.closed = true
	return p.CloseErr
}

// Probes returns the number of Probe calls that reached the page.
func (p *Page) Probes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.probes
}

// ReadinessCalls returns the number of Readiness calls.
func (p *Page) ReadinessCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readinessCalls
}

// Actions returns every element action that reached a matching element.
func (p *Page) Actions() []Action {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Action, len(p.actions))
	copy(out, p.actions)
	return out
}

// Value returns the last value filled into or selected on selector.
func (p *Page) Value(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[selector]
}

// Navigations returns every URL passed to a successful Goto.
func (p *Page) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, len(p.navigations))
	copy(out, p.navigations)
	return out
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// CloseCalls returns how many times Close was called.
func (p *Page) CloseCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCalls
}

// DefaultTimeout returns the last value passed to SetDefaultTimeout.
func (p *Page) DefaultTimeout() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.defaultTimeout
}

// Viewport returns the last size passed to SetViewport.
func (p *Page) Viewport() browser.Viewport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewport
}

var _ browser.Page = (*Page)(nil)
