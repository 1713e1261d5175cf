// Package capture collects evidence when a test fails: a screenshot, the
// page source and text, console output and the worker's recent log lines.
package capture

import (
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/harness/pkg/browser"
)

// Artifact is the evidence gathered for one failed test. It is built once
// and not modified after it is handed to a Sink.
type Artifact struct {
	TestName string `json:"test_name"`

	// Screenshot is PNG data; empty when the screenshot could not be taken
	Screenshot []byte `json:"-"`

	CapturedAt time.Time `json:"captured_at"`

	// LogExcerpt holds the worker's most recent log lines
	LogExcerpt string `json:"log_excerpt,omitempty"`

	// PageSource is the cleaned DOM of the page at failure time
	PageSource string `json:"page_source,omitempty"`

	// PageText is the visible body text
	PageText string `json:"page_text,omitempty"`

	PageURL    string                 `json:"page_url,omitempty"`
	PageTitle  string                 `json:"page_title,omitempty"`
	ConsoleLog []browser.ConsoleEntry `json:"console_log,omitempty"`
	Cause      string                 `json:"cause,omitempty"`
	Trace      string                 `json:"trace,omitempty"`

	// Problems lists capture steps that failed
	Problems []string `json:"problems,omitempty"`
}

// Attachment is a labeled blob recorded against a test.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Content types used for artifact attachments.
const (
	ContentTypePNG  = "image/png"
	ContentTypeHTML = "text/html"
	ContentTypeText = "text/plain"
	ContentTypeJSON = "application/json"
)

// Attachments returns the non-empty parts of the artifact as attachments.
func (a Artifact) Attachments() []Attachment {
	var out []Attachment
	add := func(name, contentType string, data []byte) {
		if len(data) > 0 {
			out = append(out, Attachment{Name: name, ContentType: contentType, Data: data})
		}
	}

	add("screenshot.png", ContentTypePNG, a.Screenshot)
	add("page.html", ContentTypeHTML, []byte(a.PageSource))
	add("page.txt", ContentTypeText, []byte(a.PageText))
	add("console.log", ContentTypeText, []byte(formatConsole(a.ConsoleLog)))
	add("harness.log", ContentTypeText, []byte(a.LogExcerpt))

	var cause strings.Builder
	if a.Cause != "" {
		cause.WriteString(a.Cause)
		cause.WriteString("\n")
	}
	if a.Trace != "" {
		cause.WriteString("\n")
		cause.WriteString(a.Trace)
	}
	add("cause.txt", ContentTypeText, []byte(cause.String()))
	return out
}

func formatConsole(entries []browser.ConsoleEntry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] [%s] %s\n", e.Time.Format(time.RFC3339Nano), e.Level, e.Text)
	}
	return b.String()
}
