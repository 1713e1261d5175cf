package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/entrhq/harness/pkg/browser"
)

// ErrTimeout is matched by every *TimeoutError.
var ErrTimeout = errors.New("wait timed out")

// TimeoutError reports a wait whose condition never held.
type TimeoutError struct {
	Timeout time.Duration
	Elapsed time.Duration
	Polls   int

	// Last is the final "not yet" reason or ignored error observed
	Last error
}

func (e *TimeoutError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("wait timed out after %s (%d polls): %v", e.Timeout, e.Polls, e.Last)
	}
	return fmt.Sprintf("wait timed out after %s (%d polls)", e.Timeout, e.Polls)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

func (e *TimeoutError) Unwrap() error {
	return e.Last
}

// Poll is the outcome of one condition check: either a ready value or a
// reason the condition does not hold yet.
type Poll[T any] struct {
	value  T
	ready  bool
	reason string
}

// Ready reports the condition as satisfied with value v.
func Ready[T any](v T) Poll[T] {
	return Poll[T]{value: v, ready: true}
}

// NotYet reports the condition as unsatisfied for now.
func NotYet[T any](format string, args ...interface{}) Poll[T] {
	return Poll[T]{reason: fmt.Sprintf(format, args...)}
}

// Done reports whether the condition held.
func (p Poll[T]) Done() bool { return p.ready }

// Value returns the ready value.
func (p Poll[T]) Value() T { return p.value }

// Reason returns why the condition did not hold.
func (p Poll[T]) Reason() string { return p.reason }

// Condition checks the page once. A non-nil error ends the wait unless it
// matches the Spec's ignore set.
type Condition[T any] func(ctx context.Context, page browser.Page) (Poll[T], error)

// notReady carries a Poll reason through the backoff loop.
type notReady struct {
	reason string
}

func (e *notReady) Error() string { return e.reason }

// deadlineBackOff paces polls at a constant interval. The wait before the
// final poll is shortened so that poll lands on the deadline.
type deadlineBackOff struct {
	interval time.Duration
	deadline time.Time
	final    bool
}

func (b *deadlineBackOff) NextBackOff() time.Duration {
	if b.final {
		return backoff.Stop
	}
	remaining := time.Until(b.deadline)
	if remaining <= 0 {
		return backoff.Stop
	}
	if remaining <= b.interval {
		b.final = true
		return remaining
	}
	return b.interval
}

func (b *deadlineBackOff) Reset() {
	b.final = false
}

// poll runs cond until it is ready, fails terminally, or spec.Timeout elapses.
func poll[T any](ctx context.Context, page browser.Page, spec Spec, cond Condition[T]) (T, stats, error) {
	var (
		zero   T
		result T
		st     stats
		last   error
		fatal  bool
	)

	start := time.Now()
	b := &deadlineBackOff{interval: spec.PollInterval, deadline: start.Add(spec.Timeout)}

	op := func() error {
		st.polls++
		p, err := cond(ctx, page)
		if err != nil {
			if spec.ignores(err) {
				last = err
				return err
			}
			fatal = true
			return backoff.Permanent(err)
		}
		if !p.Done() {
			last = &notReady{reason: p.Reason()}
			return last
		}
		result = p.Value()
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(b, ctx))
	st.elapsed = time.Since(start)

	switch {
	case err == nil:
		return result, st, nil
	case fatal:
		return zero, st, err
	case ctx.Err() != nil:
		return zero, st, fmt.Errorf("wait interrupted after %d polls: %w", st.polls, ctx.Err())
	default:
		return zero, st, &TimeoutError{Timeout: spec.Timeout, Elapsed: st.elapsed, Polls: st.polls, Last: last}
	}
}

type stats struct {
	polls   int
	elapsed time.Duration
}
