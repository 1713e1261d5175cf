package browsertest

import (
	"context"
	"sync"
	"time"

	"github.com/entrhq/harness/pkg/browser"
)

// Request records one Launch call.
type Request struct {
	Kind     browser.Kind
	Endpoint string
}

// Launcher is an in-memory browser.Launcher that hands out fresh Pages.
type Launcher struct {
	// Delay is slept (or interrupted by ctx) before each launch
	Delay time.Duration

	// Err fails every launch when non-nil
	Err error

	// Setup, when set, configures each new page before it is returned
	Setup func(req Request, page *Page)

	mu       sync.Mutex
	requests []Request
	pages    []*Page
}

// NewSession returns a local chrome session around page, bypassing any launcher.
func NewSession(worker string, page *Page) *browser.Session {
	return browser.NewSession(worker, browser.LaunchSettings{Kind: browser.LocalChrome}, page)
}

// Launch implements browser.Launcher.
func (l *Launcher) Launch(ctx context.Context, kind browser.Kind, endpoint string) (browser.Page, error) {
	req := Request{Kind: kind, Endpoint: endpoint}

	l.mu.Lock()
	l.requests = append(l.requests, req)
	l.mu.Unlock()

	if l.Delay > 0 {
		select {
		case <-time.After(l.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.Err != nil {
		return nil, l.Err
	}

	page := NewPage()
	if l.Setup != nil {
		l.Setup(req, page)
	}

	l.mu.Lock()
	l.pages = append(l.pages, page)
	l.mu.Unlock()
	return page, nil
}

// Launches returns the number of Launch calls.
func (l *Launcher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}

// Requests returns every Launch call in order.
func (l *Launcher) Requests() []Request {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Request, len(l.requests))
	copy(out, l.requests)
	return out
}

// Pages returns every page handed out, in launch order.
func (l *Launcher) Pages() []*Page {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*Page, len(l.pages))
	copy(out, l.pages)
	return out
}

var _ browser.Launcher = (*Launcher)(nil)
