package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightOptions configures the Playwright driver.
type PlaywrightOptions struct {
	// Headless controls whether local browsers run without a visible window
	Headless bool

	// SkipInstall assumes the driver and browsers are already installed
	SkipInstall bool

	// ConsoleLimit caps the console messages kept per page (0 means default)
	ConsoleLimit int
}

// DefaultConsoleLimit is the number of console messages kept per page.
const DefaultConsoleLimit = 500

// PlaywrightLauncher launches local browsers and connects to remote ones
// through a single Playwright driver process, started on first use.
type PlaywrightLauncher struct {
	opts PlaywrightOptions

	mu      sync.Mutex
	pw      *playwright.Playwright
	started bool
}

// NewPlaywrightLauncher creates a launcher. The driver starts lazily.
func NewPlaywrightLauncher(opts PlaywrightOptions) *PlaywrightLauncher {
	if opts.ConsoleLimit <= 0 {
		opts.ConsoleLimit = DefaultConsoleLimit
	}
	return &PlaywrightLauncher{opts: opts}
}

// start installs and runs the Playwright driver once.
func (l *PlaywrightLauncher) start() (*playwright.Playwright, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return l.pw, nil
	}

	// Discard driver output so it does not interleave with test output
	opts := &playwright.RunOptions{
		Browsers: []string{"chromium", "firefox"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}

	if !l.opts.SkipInstall {
		if err := playwright.Install(opts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	l.pw = pw
	l.started = true
	return pw, nil
}

// Launch starts a local browser or connects to endpoint, then opens a fresh
// context and page on it.
func (l *PlaywrightLauncher) Launch(ctx context.Context, kind Kind, endpoint string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := l.start()
	if err != nil {
		return nil, err
	}

	browserType := pw.Chromium
	if kind.Engine() == EngineFirefox {
		browserType = pw.Firefox
	}

	timeout := timeoutFromContext(ctx)

	var browser playwright.Browser
	switch {
	case kind.Remote() && kind.Engine() == EngineChrome:
		browser, err = browserType.ConnectOverCDP(endpoint, playwright.BrowserTypeConnectOverCDPOptions{Timeout: timeout})
	case kind.Remote():
		browser, err = browserType.Connect(endpoint, playwright.BrowserTypeConnectOptions{Timeout: timeout})
	default:
		browser, err = browserType.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(l.opts.Headless),
			Timeout:  timeout,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", kind, err)
	}

	bctx, err := browser.NewContext()
	if err != nil {
		_ = browser.Close() // Ignore errors, continue cleanup
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()    // Ignore errors, continue cleanup
		_ = browser.Close() // Ignore errors, continue cleanup
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	return newPlaywrightPage(browser, bctx, page, l.opts.ConsoleLimit), nil
}

// Shutdown stops the driver. Sessions must be closed first.
func (l *PlaywrightLauncher) Shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started || l.pw == nil {
		return nil
	}
	if err := l.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	l.started = false
	l.pw = nil
	return nil
}

// playwrightPage adapts a Playwright page and owns its context and browser.
type playwrightPage struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page

	mu           sync.Mutex
	console      []ConsoleEntry
	consoleLimit int

	closeOnce sync.Once
	closeErr  error
}

func newPlaywrightPage(browser playwright.Browser, bctx playwright.BrowserContext, page playwright.Page, consoleLimit int) *playwrightPage {
	p := &playwrightPage{
		browser:      browser,
		context:      bctx,
		page:         page,
		consoleLimit: consoleLimit,
	}
	page.OnConsole(p.recordConsole)
	return p
}

func (p *playwrightPage) recordConsole(msg playwright.ConsoleMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.console = append(p.console, ConsoleEntry{Time: time.Now(), Level: msg.Type(), Text: msg.Text()})
	if over := len(p.console) - p.consoleLimit; over > 0 {
		p.console = p.console[over:]
	}
}

func (p *playwrightPage) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	waitUntil := playwright.WaitUntilState("load")
	opts := playwright.PageGotoOptions{WaitUntil: &waitUntil, Timeout: timeoutFromContext(ctx)}

	if _, err := p.page.Goto(url, opts); err != nil {
		return classify(err)
	}
	return nil
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	title, err := p.page.Title()
	return title, classify(err)
}

func (p *playwrightPage) Evaluate(ctx context.Context, script string, arg interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		result interface{}
		err    error
	)
	if arg == nil {
		result, err = p.page.Evaluate(script)
	} else {
		result, err = p.page.Evaluate(script, arg)
	}
	if err != nil {
		return nil, classify(err)
	}
	return result, nil
}

func (p *playwrightPage) Probe(ctx context.Context, selector string) (ElementState, error) {
	var state ElementState
	raw, err := p.Evaluate(ctx, probeScript, selector)
	if err != nil {
		return state, err
	}
	if err := decodeResult(raw, &state); err != nil {
		return state, fmt.Errorf("probe %q: %w", selector, err)
	}
	return state, nil
}

func (p *playwrightPage) Readiness(ctx context.Context) (Readiness, error) {
	var r Readiness
	raw, err := p.Evaluate(ctx, readinessScript, nil)
	if err != nil {
		return r, err
	}
	if err := decodeResult(raw, &r); err != nil {
		return r, fmt.Errorf("readiness: %w", err)
	}
	return r, nil
}

// locate returns a locator for the first element matching selector. Locator
// actions re-resolve the element on every call, so a node replaced between
// the readiness wait and the action is still found.
func (p *playwrightPage) locate(ctx context.Context, selector string) (playwright.Locator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.page.IsClosed() {
		return nil, ErrSessionClosed
	}
	return p.page.Locator(selector).First(), nil
}

func (p *playwrightPage) Click(ctx context.Context, selector string, opts ClickOptions) error {
	loc, err := p.locate(ctx, selector)
	if err != nil {
		return err
	}

	if opts.Script {
		_, err := loc.Evaluate("(el) => el.click()", nil, playwright.LocatorEvaluateOptions{Timeout: timeoutFromContext(ctx)})
		return classify(err)
	}

	clickOpts := playwright.LocatorClickOptions{Timeout: timeoutFromContext(ctx)}
	if opts.Button != "" {
		button := playwright.MouseButton(opts.Button)
		clickOpts.Button = &button
	}
	if opts.Count > 0 {
		clickOpts.ClickCount = playwright.Int(opts.Count)
	}
	return classify(loc.Click(clickOpts))
}

func (p *playwrightPage) Fill(ctx context.Context, selector, value string) error {
	loc, err := p.locate(ctx, selector)
	if err != nil {
		return err
	}
	return classify(loc.Fill(value, playwright.LocatorFillOptions{Timeout: timeoutFromContext(ctx)}))
}

func (p *playwrightPage) Hover(ctx context.Context, selector string) error {
	loc, err := p.locate(ctx, selector)
	if err != nil {
		return err
	}
	return classify(loc.Hover(playwright.LocatorHoverOptions{Timeout: timeoutFromContext(ctx)}))
}

func (p *playwrightPage) ScrollIntoView(ctx context.Context, selector string) error {
	loc, err := p.locate(ctx, selector)
	if err != nil {
		return err
	}
	return classify(loc.ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{Timeout: timeoutFromContext(ctx)}))
}

func (p *playwrightPage) SelectOption(ctx context.Context, selector string, sel Selection) ([]string, error) {
	if sel.Empty() {
		return nil, fmt.Errorf("select %q: no option given", selector)
	}
	loc, err := p.locate(ctx, selector)
	if err != nil {
		return nil, err
	}

	var values playwright.SelectOptionValues
	if len(sel.Values) > 0 {
		values.Values = playwright.StringSlice(sel.Values...)
	}
	if len(sel.Labels) > 0 {
		values.Labels = playwright.StringSlice(sel.Labels...)
	}

	selected, err := loc.SelectOption(values, playwright.LocatorSelectOptionOptions{Timeout: timeoutFromContext(ctx)})
	if err != nil {
		return nil, classify(err)
	}
	return selected, nil
}

func (p *playwrightPage) Text(ctx context.Context, selector string) (string, error) {
	loc, err := p.locate(ctx, selector)
	if err != nil {
		return "", err
	}
	text, err := loc.InnerText(playwright.LocatorInnerTextOptions{Timeout: timeoutFromContext(ctx)})
	if err != nil {
		return "", classify(err)
	}
	return strings.TrimSpace(text), nil
}

func (p *playwrightPage) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Timeout:  timeoutFromContext(ctx),
	})
	if err != nil {
		return nil, classify(err)
	}
	return data, nil
}

func (p *playwrightPage) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	content, err := p.page.Content()
	return content, classify(err)
}

func (p *playwrightPage) ConsoleLog() []ConsoleEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]ConsoleEntry, len(p.console))
	copy(out, p.console)
	return out
}

func (p *playwrightPage) SetDefaultTimeout(d time.Duration) error {
	if p.page.IsClosed() {
		return ErrSessionClosed
	}
	p.page.SetDefaultTimeout(float64(d.Milliseconds()))
	return nil
}

func (p *playwrightPage) SetViewport(width, height int) error {
	return classify(p.page.SetViewportSize(width, height))
}

// Close closes page, context and browser in that order. Every step runs even
// if an earlier one fails; the first real failure is returned.
func (p *playwrightPage) Close() error {
	p.closeOnce.Do(func() {
		var errs []error
		if err := p.page.Close(); err != nil && !alreadyClosed(err) {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
		if err := p.context.Close(); err != nil && !alreadyClosed(err) {
			errs = append(errs, fmt.Errorf("close context: %w", err))
		}
		if err := p.browser.Close(); err != nil && !alreadyClosed(err) {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		if len(errs) > 0 {
			p.closeErr = errs[0]
		}
	})
	return p.closeErr
}

// timeoutFromContext converts a context deadline to a Playwright timeout in ms.
func timeoutFromContext(ctx context.Context) *float64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return nil
	}
	ms := float64(time.Until(deadline).Milliseconds())
	if ms < 1 {
		ms = 1
	}
	return playwright.Float(ms)
}

// The driver does not export typed errors for these, so match on message.
var (
	staleMarkers = []string{
		"Execution context was destroyed",
		"not attached to the DOM",
		"Element is not attached",
		"frame was detached",
		"Cannot find context with specified id",
	}
	missingMarkers = []string{
		"No node found",
		"failed to find element",
	}
	closedMarkers = []string{
		"Target closed",
		"Target page, context or browser has been closed",
		"Browser has been closed",
		"Context closed",
	}
)

// classify maps driver errors onto the harness error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case containsAny(msg, staleMarkers):
		return fmt.Errorf("%w: %v", ErrStaleElement, err)
	case containsAny(msg, missingMarkers):
		return fmt.Errorf("%w: %v", ErrNoSuchElement, err)
	case containsAny(msg, closedMarkers):
		return fmt.Errorf("%w: %v", ErrSessionClosed, err)
	}
	return err
}

func alreadyClosed(err error) bool {
	return errors.Is(classify(err), ErrSessionClosed)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// decodeResult converts an Evaluate result into a typed value via JSON.
func decodeResult(raw interface{}, target interface{}) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal script result: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal script result: %w", err)
	}
	return nil
}
