package capture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/entrhq/harness/pkg/config"
)

// Sink receives failure evidence and run metadata. Implementations must be
// safe for concurrent use by many workers.
type Sink interface {
	// Record stores a complete failure artifact.
	Record(a Artifact) error

	// Attach stores a labeled blob against test.
	Attach(test string, att Attachment) error

	// Parameter records run metadata such as the browser in use.
	Parameter(key, value string) error
}

// MemorySink keeps everything in memory.
type MemorySink struct {
	mu          sync.Mutex
	artifacts   []Artifact
	attachments map[string][]Attachment
	params      map[string]string
}

// NewMemorySink returns an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		attachments: make(map[string][]Attachment),
		params:      make(map[string]string),
	}
}

func (s *MemorySink) Record(a Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts = append(s.artifacts, a)
	return nil
}

func (s *MemorySink) Attach(test string, att Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments[test] = append(s.attachments[test], att)
	return nil
}

func (s *MemorySink) Parameter(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[key] = value
	return nil
}

// Artifacts returns every recorded artifact in order.
func (s *MemorySink) Artifacts() []Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Artifact(nil), s.artifacts...)
}

// AttachmentsFor returns the attachments stored against test.
func (s *MemorySink) AttachmentsFor(test string) []Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Attachment(nil), s.attachments[test]...)
}

// Parameters returns a copy of the recorded parameters.
func (s *MemorySink) Parameters() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.params))
	for k, v := range s.params {
		out[k] = v
	}
	return out
}

// DirSink writes artifacts under a directory:
//
//	<dir>/<test>_<timestamp>/artifact.json plus one file per attachment
//	<dir>/attachments/<test>/<name>
//	<dir>/parameters.json
type DirSink struct {
	dir string

	mu     sync.Mutex
	params map[string]string
	seq    int
}

// NewDirSink creates dir if needed.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &DirSink{dir: dir, params: make(map[string]string)}, nil
}

// DirSinkFromConfig writes under screenshot.path, or fallback when unset.
func DirSinkFromConfig(p config.Provider, fallback string) (*DirSink, error) {
	return NewDirSink(config.String(p, config.KeyScreenshotPath, fallback))
}

// Dir returns the root directory.
func (s *DirSink) Dir() string {
	return s.dir
}

func (s *DirSink) Record(a Artifact) error {
	s.mu.Lock()
	s.seq++
	name := fmt.Sprintf("%s_%s_%03d", safeName(a.TestName), a.CapturedAt.UTC().Format("20060102T150405.000"), s.seq)
	s.mu.Unlock()

	dir := filepath.Join(s.dir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	for _, att := range a.Attachments() {
		if err := os.WriteFile(filepath.Join(dir, safeName(att.Name)), att.Data, 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", att.Name, err)
		}
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}
	if writeErr := os.WriteFile(filepath.Join(dir, "artifact.json"), data, 0600); writeErr != nil {
		return fmt.Errorf("failed to write artifact JSON: %w", writeErr)
	}
	return nil
}

func (s *DirSink) Attach(test string, att Attachment) error {
	dir := filepath.Join(s.dir, "attachments", safeName(test))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create attachment directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, safeName(att.Name)), att.Data, 0600); err != nil {
		return fmt.Errorf("failed to write attachment %s: %w", att.Name, err)
	}
	return nil
}

func (s *DirSink) Parameter(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.params[key] = value
	data, err := json.MarshalIndent(s.params, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}
	if writeErr := os.WriteFile(filepath.Join(s.dir, "parameters.json"), data, 0600); writeErr != nil {
		return fmt.Errorf("failed to write parameters: %w", writeErr)
	}
	return nil
}

// Parameters returns the recorded parameters sorted by key.
func (s *DirSink) Parameters() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.params))
	for k, v := range s.params {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// safeName maps a test or attachment name onto a single path element.
func safeName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	name = strings.Trim(name, ".")
	if name == "" {
		return "unnamed"
	}
	return name
}
