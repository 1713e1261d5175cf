package wait

import (
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/harness/pkg/browser"
	"github.com/entrhq/harness/pkg/config"
)

// ErrInvalidSpec is returned when a resolved timeout is negative or a poll
// interval is not positive.
var ErrInvalidSpec = errors.New("invalid wait spec")

// Spec governs one bounded polling operation.
type Spec struct {
	// Timeout bounds the whole wait; zero evaluates the condition exactly once
	Timeout time.Duration

	// PollInterval is the minimum spacing between polls
	PollInterval time.Duration

	// Ignore lists error kinds treated as "not yet" while polling, matched with errors.Is
	Ignore []error
}

// DefaultIgnore is the ignore set used when a call does not supply one.
func DefaultIgnore() []error {
	return []error{browser.ErrNoSuchElement, browser.ErrStaleElement}
}

// ignores reports whether err matches the ignore set.
func (s Spec) ignores(err error) bool {
	for _, target := range s.Ignore {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s Spec) validate() error {
	if s.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative, got %s", ErrInvalidSpec, s.Timeout)
	}
	if s.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive, got %s", ErrInvalidSpec, s.PollInterval)
	}
	return nil
}

type overrides struct {
	timeout  *time.Duration
	interval *time.Duration
	ignore   []error
	replace  bool
}

// Option overrides one Spec field for a single call.
type Option func(*overrides)

// WithTimeout overrides the configured timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *overrides) { o.timeout = &d }
}

// WithPollInterval overrides the configured poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(o *overrides) { o.interval = &d }
}

// WithIgnore replaces the ignore set. WithIgnore() with no arguments makes
// every error terminal.
func WithIgnore(errs ...error) Option {
	return func(o *overrides) {
		o.ignore = append([]error(nil), errs...)
		o.replace = true
	}
}

// AlsoIgnore adds error kinds to the ignore set.
func AlsoIgnore(errs ...error) Option {
	return func(o *overrides) { o.ignore = append(o.ignore, errs...) }
}

// Resolve builds a Spec.
// Precedence for timeout and interval: option > config key > default
//
// explicit.wait is read in seconds, polling.interval in milliseconds.
func Resolve(p config.Provider, opts ...Option) (Spec, error) {
	var o overrides
	for _, opt := range opts {
		opt(&o)
	}

	spec := Spec{Ignore: DefaultIgnore()}

	if o.timeout != nil {
		spec.Timeout = *o.timeout
	} else {
		d, err := config.Duration(p, config.KeyExplicitWait, time.Second, config.DefaultExplicitWait)
		if err != nil {
			return Spec{}, err
		}
		spec.Timeout = d
	}

	if o.interval != nil {
		spec.PollInterval = *o.interval
	} else {
		d, err := config.Duration(p, config.KeyPollingInterval, time.Millisecond, config.DefaultPollingInterval)
		if err != nil {
			return Spec{}, err
		}
		spec.PollInterval = d
	}

	if o.replace {
		spec.Ignore = o.ignore
	} else {
		spec.Ignore = append(spec.Ignore, o.ignore...)
	}

	if err := spec.validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}
