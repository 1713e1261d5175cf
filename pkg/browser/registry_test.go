package browser_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/harness/pkg/browser"
	"github.com/entrhq/harness/pkg/browser/browsertest"
)

func newRegistry(launcher *browsertest.Launcher) *browser.Registry {
	return browser.NewRegistry(browser.NewFactory(launcher, nil), nil)
}

var local = browser.LaunchSettings{Kind: browser.LocalChrome}

func TestRegistry_AcquireIsIdempotent(t *testing.T) {
	launcher := &browsertest.Launcher{}
	registry := newRegistry(launcher)
	ctx := context.Background()

	first, err := registry.Acquire(ctx, "w1", local)
	require.NoError(t, err)
	second, err := registry.Acquire(ctx, "w1", local)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, launcher.Launches())

	current, err := registry.Current("w1")
	require.NoError(t, err)
	assert.Same(t, first, current)
}

func TestRegistry_ConcurrentAcquireLaunchesOnce(t *testing.T) {
	launcher := &browsertest.Launcher{Delay: 50 * time.Millisecond}
	registry := newRegistry(launcher)

	const callers = 16
	sessions := make([]*browser.Session, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := registry.Acquire(context.Background(), "w1", local)
			assert.NoError(t, err)
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, launcher.Launches())
	for _, s := range sessions {
		assert.Same(t, sessions[0], s)
	}
	assert.Equal(t, 1, registry.Len())
}

func TestRegistry_WorkersAreIsolated(t *testing.T) {
	launcher := &browsertest.Launcher{}
	registry := newRegistry(launcher)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := registry.Acquire(context.Background(), fmt.Sprintf("w%d", i), local)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	seen := make(map[*browser.Session]string)
	for i := 0; i < workers; i++ {
		worker := fmt.Sprintf("w%d", i)
		s, err := registry.Current(worker)
		require.NoError(t, err)
		if other, dup := seen[s]; dup {
			t.Fatalf("workers %s and %s share a session", other, worker)
		}
		seen[s] = worker
		assert.Equal(t, worker, s.Worker)
	}
	assert.Equal(t, workers, launcher.Launches())
	assert.Len(t, registry.Active(), workers)
}

func TestRegistry_CurrentBeforeAcquire(t *testing.T) {
	registry := newRegistry(&browsertest.Launcher{})

	_, err := registry.Current("w1")
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrNotInitialized)
	assert.Contains(t, err.Error(), "w1")
}

func TestRegistry_ReleaseIsIdempotent(t *testing.T) {
	launcher := &browsertest.Launcher{}
	registry := newRegistry(launcher)

	s, err := registry.Acquire(context.Background(), "w1", local)
	require.NoError(t, err)

	assert.NoError(t, registry.Release("w1"))
	assert.NoError(t, registry.Release("w1"))
	assert.NoError(t, registry.Release("never-acquired"))

	assert.True(t, s.Closed())
	assert.Equal(t, 1, launcher.Pages()[0].CloseCalls())

	_, err = registry.Current("w1")
	assert.ErrorIs(t, err, browser.ErrNotInitialized)
}

func TestRegistry_ReleaseForgetsOnCloseError(t *testing.T) {
	launcher := &browsertest.Launcher{
		Setup: func(_ browsertest.Request, page *browsertest.Page) {
			page.CloseErr = errors.New("process already exited")
		},
	}
	registry := newRegistry(launcher)

	_, err := registry.Acquire(context.Background(), "w1", local)
	require.NoError(t, err)

	err = registry.Release("w1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "process already exited")
	assert.Equal(t, 0, registry.Len())
	assert.NoError(t, registry.Release("w1"))
}

func TestRegistry_AcquireAfterReleaseCreatesNewSession(t *testing.T) {
	launcher := &browsertest.Launcher{}
	registry := newRegistry(launcher)
	ctx := context.Background()

	first, err := registry.Acquire(ctx, "w1", local)
	require.NoError(t, err)
	require.NoError(t, registry.Release("w1"))

	second, err := registry.Acquire(ctx, "w1", local)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRegistry_ExternallyClosedSessionIsReplaced(t *testing.T) {
	launcher := &browsertest.Launcher{}
	registry := newRegistry(launcher)
	ctx := context.Background()

	first, err := registry.Acquire(ctx, "w1", local)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	_, err = registry.Current("w1")
	assert.ErrorIs(t, err, browser.ErrNotInitialized)

	second, err := registry.Acquire(ctx, "w1", local)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, launcher.Launches())
}

func TestRegistry_AcquireFailureLeavesNoEntry(t *testing.T) {
	registry := newRegistry(&browsertest.Launcher{Err: errors.New("no display")})

	_, err := registry.Acquire(context.Background(), "w1", local)
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrLaunchFailure)
	assert.Equal(t, 0, registry.Len())

	_, err = registry.Current("w1")
	assert.ErrorIs(t, err, browser.ErrNotInitialized)
}

func TestRegistry_IndependentNavigation(t *testing.T) {
	launcher := &browsertest.Launcher{}
	registry := newRegistry(launcher)
	ctx := context.Background()

	a, err := registry.Acquire(ctx, "a", local)
	require.NoError(t, err)
	b, err := registry.Acquire(ctx, "b", local)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, tc := range []struct {
		s   *browser.Session
		url string
	}{{a, "http://app.local/a"}, {b, "http://app.local/b"}} {
		wg.Add(1)
		go func(s *browser.Session, url string) {
			defer wg.Done()
			assert.NoError(t, s.Navigate(ctx, url))
		}(tc.s, tc.url)
	}
	wg.Wait()

	pa, _ := a.Page()
	pb, _ := b.Page()
	assert.Equal(t, "http://app.local/a", pa.URL())
	assert.Equal(t, "http://app.local/b", pb.URL())

	require.NoError(t, registry.Release("a"))
	assert.False(t, b.Closed())
	assert.Equal(t, "http://app.local/b", pb.URL())
	require.NoError(t, registry.Release("b"))
}

func TestRegistry_CloseAll(t *testing.T) {
	launcher := &browsertest.Launcher{}
	registry := newRegistry(launcher)

	for _, w := range []string{"w1", "w2", "w3"} {
		_, err := registry.Acquire(context.Background(), w, local)
		require.NoError(t, err)
	}
	launcher.Pages()[1].CloseErr = errors.New("boom")

	err := registry.CloseAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 0, registry.Len())
	for _, p := range launcher.Pages() {
		assert.True(t, p.Closed())
	}
}
