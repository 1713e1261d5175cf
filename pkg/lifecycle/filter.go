package lifecycle

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Filter selects tests by ID ("Class.Test") with glob patterns.
type Filter struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewFilter compiles include and exclude patterns. Blank patterns are ignored.
func NewFilter(include, exclude []string) (*Filter, error) {
	f := &Filter{}

	for _, pattern := range include {
		if pattern = strings.TrimSpace(pattern); pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern '%s': %w", pattern, err)
		}
		f.include = append(f.include, g)
	}

	for _, pattern := range exclude {
		if pattern = strings.TrimSpace(pattern); pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err)
		}
		f.exclude = append(f.exclude, g)
	}

	return f, nil
}

// Match reports whether the test id is selected. Exclusions win; with no
// include patterns everything not excluded is selected. A nil Filter
// selects everything.
func (f *Filter) Match(id string) bool {
	if f == nil {
		return true
	}

	for _, pattern := range f.exclude {
		if pattern.Match(id) {
			return false
		}
	}

	if len(f.include) == 0 {
		return true
	}

	for _, pattern := range f.include {
		if pattern.Match(id) {
			return true
		}
	}
	return false
}

// Apply returns the classes with unselected tests removed. Classes left
// without tests are dropped.
func (f *Filter) Apply(classes []Class) []Class {
	if f == nil {
		return classes
	}

	var out []Class
	for _, c := range classes {
		selected := c
		selected.Tests = nil
		for _, t := range c.Tests {
			if f.Match(c.TestID(t)) {
				selected.Tests = append(selected.Tests, t)
			}
		}
		if len(selected.Tests) > 0 {
			out = append(out, selected)
		}
	}
	return out
}
