package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one live browser owned by exactly one worker.
type Session struct {
	// ID is unique per session
	ID string

	// Worker is the identity of the owning worker
	Worker string

	// Kind is the engine and location of the browser
	Kind Kind

	// Endpoint is the remote URL, empty for local sessions
	Endpoint string

	// CreatedAt is the timestamp when the session was created
	CreatedAt time.Time

	// BaselineTimeout is the implicit wait applied to driver actions
	BaselineTimeout time.Duration

	page Page

	mu        sync.Mutex
	warnings  []string
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// NewSession wraps an already-launched page. Factory.Create is the usual way
// to obtain a session; NewSession exists for launchers managed elsewhere.
func NewSession(worker string, settings LaunchSettings, page Page) *Session {
	return &Session{
		ID:              uuid.New().String(),
		Worker:          worker,
		Kind:            settings.Kind,
		Endpoint:        settings.Endpoint,
		CreatedAt:       time.Now(),
		BaselineTimeout: settings.BaselineTimeout,
		page:            page,
	}
}

// Page returns the session's page, or ErrSessionClosed after Close.
func (s *Session) Page() (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("session %s: %w", s.ID, ErrSessionClosed)
	}
	return s.page, nil
}

// Navigate loads url in the session's page.
func (s *Session) Navigate(ctx context.Context, url string) error {
	page, err := s.Page()
	if err != nil {
		return err
	}
	if err := page.Goto(ctx, url); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Warnings returns setup steps that failed without failing session creation.
func (s *Session) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.warnings))
	copy(out, s.warnings)
	return out
}

func (s *Session) warn(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, msg)
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the browser. It is safe to call more than once; later calls
// return the first call's result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		page := s.page
		s.mu.Unlock()

		if page != nil {
			s.closeErr = page.Close()
		}
	})
	return s.closeErr
}

// Info returns a snapshot of the session's metadata.
func (s *Session) Info() SessionInfo {
	info := SessionInfo{
		ID:        s.ID,
		Worker:    s.Worker,
		Kind:      s.Kind,
		Endpoint:  s.Endpoint,
		CreatedAt: s.CreatedAt,
		Warnings:  s.Warnings(),
	}
	if page, err := s.Page(); err == nil {
		info.CurrentURL = page.URL()
	}
	return info
}

// SessionInfo contains metadata about a browser session.
type SessionInfo struct {
	ID         string    `json:"id"`
	Worker     string    `json:"worker"`
	Kind       Kind      `json:"kind"`
	Endpoint   string    `json:"endpoint,omitempty"`
	CurrentURL string    `json:"current_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Warnings   []string  `json:"warnings,omitempty"`
}
