package browser

import (
	"errors"
	"fmt"
)

var (
	ErrNotInitialized  = errors.New("browser session not initialized")
	ErrInvalidEndpoint = errors.New("invalid remote endpoint")
	ErrLaunchFailure   = errors.New("browser launch failed")
	ErrSessionClosed   = errors.New("browser session closed")
	ErrNoSuchElement   = errors.New("no such element")
	ErrStaleElement    = errors.New("stale element reference")
)

// EndpointError reports a remote endpoint that cannot be used.
type EndpointError struct {
	Endpoint string
	Reason   string
	Err      error
}

func (e *EndpointError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid remote endpoint %q: %s: %v", e.Endpoint, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid remote endpoint %q: %s", e.Endpoint, e.Reason)
}

func (e *EndpointError) Is(target error) bool {
	return target == ErrInvalidEndpoint
}

func (e *EndpointError) Unwrap() error {
	return e.Err
}

// LaunchError wraps the cause of a failed local launch or remote connect.
type LaunchError struct {
	Kind     Kind
	Endpoint string
	Err      error
}

func (e *LaunchError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("browser launch failed [%s @ %s]: %v", e.Kind, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("browser launch failed [%s]: %v", e.Kind, e.Err)
}

func (e *LaunchError) Is(target error) bool {
	return target == ErrLaunchFailure
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// IsTransient returns true for element errors that usually clear on a later poll.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNoSuchElement) || errors.Is(err, ErrStaleElement)
}

// IsFatal returns true for errors that make the owning session unusable.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrSessionClosed) ||
		errors.Is(err, ErrLaunchFailure) ||
		errors.Is(err, ErrInvalidEndpoint) ||
		errors.Is(err, ErrNotInitialized)
}
