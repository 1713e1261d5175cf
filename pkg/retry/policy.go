// Package retry decides whether a failed test case is re-run.
//
// A Policy is a pure attempt budget. A Tracker keys the budget per test case
// so one flaky case cannot consume another's retries.
package retry

import (
	"fmt"
	"sync"

	"github.com/entrhq/harness/pkg/config"
)

// DefaultMaxAttempts is the retry budget when retry.count is not configured.
const DefaultMaxAttempts = config.DefaultRetryCount

// State is the retry bookkeeping for one test case.
type State struct {
	Test        string `json:"test"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
}

// Remaining returns how many retries are left.
func (s *State) Remaining() int {
	if s.Attempts >= s.MaxAttempts {
		return 0
	}
	return s.MaxAttempts - s.Attempts
}

// Policy bounds retries of a failed test case.
type Policy struct {
	MaxAttempts int
}

// NewPolicy returns a policy allowing maxAttempts retries. Negative values
// are treated as zero.
func NewPolicy(maxAttempts int) Policy {
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	return Policy{MaxAttempts: maxAttempts}
}

// PolicyFromConfig reads retry.count, falling back to DefaultMaxAttempts.
func PolicyFromConfig(p config.Provider) (Policy, error) {
	n, err := config.Long(p, config.KeyRetryCount, DefaultMaxAttempts)
	if err != nil {
		return Policy{}, err
	}
	if n < 0 {
		return Policy{}, &config.KeyError{Key: config.KeyRetryCount, Value: fmt.Sprint(n), Err: config.ErrInvalidFormat}
	}
	return NewPolicy(int(n)), nil
}

// NewState starts the bookkeeping for test under this policy.
func (p Policy) NewState(test string) *State {
	return &State{Test: test, MaxAttempts: p.MaxAttempts}
}

// ShouldRetry reports whether the failed case gets another run, and counts
// the retry when it does.
func (p Policy) ShouldRetry(s *State) bool {
	if s == nil || s.Attempts >= s.MaxAttempts {
		return false
	}
	s.Attempts++
	return true
}

// Tracker holds retry state per test case for one worker or a whole run.
type Tracker struct {
	policy Policy

	mu     sync.Mutex
	states map[string]*State
}

// NewTracker returns an empty tracker applying policy.
func NewTracker(policy Policy) *Tracker {
	return &Tracker{
		policy: policy,
		states: make(map[string]*State),
	}
}

// Policy returns the policy the tracker applies.
func (t *Tracker) Policy() Policy {
	return t.policy
}

// Fail records a failure of test and reports whether it should be retried.
// State is created on the first failure and discarded once the budget is spent.
func (t *Tracker) Fail(test string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.states[test]
	if !ok {
		s = t.policy.NewState(test)
		t.states[test] = s
	}

	retry := t.policy.ShouldRetry(s)
	if !retry {
		delete(t.states, test)
	}
	recordDecision(retry)
	return retry
}

// Pass discards any state held for test.
func (t *Tracker) Pass(test string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, test)
}

// State returns a copy of the state held for test.
func (t *Tracker) State(test string) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.states[test]
	if !ok {
		return State{}, false
	}
	return *s, true
}

// Len returns the number of test cases with live retry state.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.states)
}
