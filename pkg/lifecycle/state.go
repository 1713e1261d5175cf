package lifecycle

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a hook is called out of sequence.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// State is where a worker is in the class lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateSessionActive
	StateNavigated
	StateExecuted
	StatePassed
	StateRetryScheduled
	StateFailed
	StateClosed
)

var stateNames = map[State]string{
	StateUninitialized:  "uninitialized",
	StateSessionActive:  "session-active",
	StateNavigated:      "navigated",
	StateExecuted:       "executed",
	StatePassed:         "passed",
	StateRetryScheduled: "retry-scheduled",
	StateFailed:         "failed",
	StateClosed:         "closed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state by name in reports.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// transitions lists the legal successors of each state. A failed navigation
// moves straight from SessionActive to an outcome, and a closed worker may
// start its next class.
var transitions = map[State][]State{
	StateUninitialized:  {StateSessionActive, StateClosed},
	StateSessionActive:  {StateNavigated, StateRetryScheduled, StateFailed, StateClosed},
	StateNavigated:      {StateExecuted},
	StateExecuted:       {StatePassed, StateRetryScheduled, StateFailed},
	StatePassed:         {StateSessionActive, StateClosed},
	StateRetryScheduled: {StateSessionActive, StateClosed},
	StateFailed:         {StateSessionActive, StateClosed},
	StateClosed:         {StateSessionActive},
}

// CanTransition reports whether to is a legal successor of s.
func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Outcome reports whether s is a per-test outcome.
func (s State) Outcome() bool {
	return s == StatePassed || s == StateRetryScheduled || s == StateFailed
}
