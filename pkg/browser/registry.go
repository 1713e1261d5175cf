package browser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/entrhq/harness/pkg/logging"
)

// Creator builds a session for a worker. *Factory implements it.
type Creator interface {
	Create(ctx context.Context, worker string, settings LaunchSettings) (*Session, error)
}

// Registry maps worker identity to that worker's session.
// Each worker owns at most one session; creation is serialized per worker so
// concurrent Acquire calls for the same worker observe a single launch.
type Registry struct {
	creator Creator
	logger  *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	inflight singleflight.Group
}

// NewRegistry creates an empty registry. A nil logger discards output.
func NewRegistry(creator Creator, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Discard("registry")
	}
	return &Registry{
		creator:  creator,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Acquire returns the worker's live session, creating it if absent.
func (r *Registry) Acquire(ctx context.Context, worker string, settings LaunchSettings) (*Session, error) {
	if s := r.lookup(worker); s != nil {
		return s, nil
	}

	v, err, shared := r.inflight.Do(worker, func() (interface{}, error) {
		// Re-check under the flight: a previous flight may have stored it.
		if s := r.lookup(worker); s != nil {
			return s, nil
		}

		s, err := r.creator.Create(ctx, worker, settings)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.sessions[worker] = s
		count := len(r.sessions)
		r.mu.Unlock()

		metricActiveSessions.Set(float64(count))
		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("acquire session for worker %q: %w", worker, err)
	}
	if shared {
		r.logger.Debugf("worker %s: concurrent acquire joined an in-flight launch", worker)
	}
	return v.(*Session), nil
}

// lookup returns the stored session if it is still open. A session closed
// behind the registry's back is forgotten.
func (r *Registry) lookup(worker string) *Session {
	r.mu.RLock()
	s, ok := r.sessions[worker]
	r.mu.RUnlock()

	if !ok {
		return nil
	}
	if !s.Closed() {
		return s
	}

	r.mu.Lock()
	if r.sessions[worker] == s {
		delete(r.sessions, worker)
	}
	r.mu.Unlock()
	return nil
}

// Current returns the worker's session or ErrNotInitialized.
func (r *Registry) Current(worker string) (*Session, error) {
	if s := r.lookup(worker); s != nil {
		return s, nil
	}
	return nil, fmt.Errorf("worker %q: %w", worker, ErrNotInitialized)
}

// Release closes and forgets the worker's session. Releasing a worker with no
// session is a no-op. The session is forgotten even when closing it fails.
func (r *Registry) Release(worker string) error {
	r.mu.Lock()
	s, ok := r.sessions[worker]
	delete(r.sessions, worker)
	count := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return nil
	}

	metricActiveSessions.Set(float64(count))
	metricSessionsReleased.Inc()

	if err := s.Close(); err != nil {
		r.logger.Warnf("worker %s: closing session %s: %v", worker, s.ID, err)
		return fmt.Errorf("release session for worker %q: %w", worker, err)
	}
	r.logger.Debugf("worker %s: session %s released", worker, s.ID)
	return nil
}

// Active returns information about all live sessions, ordered by worker.
func (r *Registry) Active() []SessionInfo {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		if !s.Closed() {
			infos = append(infos, s.Info())
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Worker < infos[j].Worker })
	return infos
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll releases every session. Every session is closed even if some fail.
func (r *Registry) CloseAll() error {
	r.mu.RLock()
	workers := make([]string, 0, len(r.sessions))
	for w := range r.sessions {
		workers = append(workers, w)
	}
	r.mu.RUnlock()

	var errs []error
	for _, w := range workers {
		if err := r.Release(w); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
