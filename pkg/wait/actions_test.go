package wait_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/harness/pkg/browser"
	"github.com/entrhq/harness/pkg/browser/browsertest"
	"github.com/entrhq/harness/pkg/wait"
)

var fast = []wait.Option{wait.WithTimeout(300 * time.Millisecond), wait.WithPollInterval(10 * time.Millisecond)}

func TestClick_WaitsForClickable(t *testing.T) {
	engine, page := newEngine(t, nil)
	page.Appear("#buy", visibleButton, 50*time.Millisecond)

	require.NoError(t, engine.Click(context.Background(), "#buy", fast...))

	actions := page.Actions()
	require.Len(t, actions, 1)
	assert.Equal(t, "click", actions[0].Kind)
	assert.Equal(t, "#buy", actions[0].Selector)
	assert.Greater(t, page.Probes(), 1)
}

func TestClick_ObscuredTimesOutWithoutClicking(t *testing.T) {
	engine, page := newEngine(t, nil)
	covered := visibleButton
	covered.Obscured = true
	page.SetElement("#buy", covered)

	err := engine.Click(context.Background(), "#buy", fast...)
	require.Error(t, err)
	assert.ErrorIs(t, err, wait.ErrTimeout)
	assert.Contains(t, err.Error(), `click "#buy"`)
	assert.Empty(t, page.Actions())
}

func TestClickWith_ScriptClickIgnoresCover(t *testing.T) {
	engine, page := newEngine(t, nil)
	covered := visibleButton
	covered.Obscured = true
	page.SetElement("#buy", covered)

	opts := browser.ClickOptions{Script: true}
	require.NoError(t, engine.ClickWith(context.Background(), "#buy", opts, fast...))

	actions := page.Actions()
	require.Len(t, actions, 1)
	assert.True(t, actions[0].Click.Script)
}

func TestElementActions(t *testing.T) {
	field := browser.ElementState{Visible: true, Enabled: true, Width: 200, Height: 30, Text: "Welcome back"}

	tests := []struct {
		name      string
		run       func(ctx context.Context, e *wait.Engine) error
		wantKind  string
		wantValue string
	}{
		{
			name:      "fill",
			run:       func(ctx context.Context, e *wait.Engine) error { return e.Fill(ctx, "#field", "alice", fast...) },
			wantKind:  "fill",
			wantValue: "alice",
		},
		{
			name:     "hover",
			run:      func(ctx context.Context, e *wait.Engine) error { return e.Hover(ctx, "#field", fast...) },
			wantKind: "hover",
		},
		{
			name:     "scroll",
			run:      func(ctx context.Context, e *wait.Engine) error { return e.ScrollIntoView(ctx, "#field", fast...) },
			wantKind: "scroll",
		},
		{
			name: "select by label",
			run: func(ctx context.Context, e *wait.Engine) error {
				got, err := e.Select(ctx, "#field", browser.Selection{Labels: []string{"Blue"}}, fast...)
				if err == nil && (len(got) != 1 || got[0] != "Blue") {
					return errors.New("unexpected selection")
				}
				return err
			},
			wantKind:  "select",
			wantValue: "Blue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, page := newEngine(t, nil)
			page.SetElement("#field", field)

			require.NoError(t, tt.run(context.Background(), engine))

			actions := page.Actions()
			require.Len(t, actions, 1)
			assert.Equal(t, tt.wantKind, actions[0].Kind)
			if tt.wantValue != "" {
				assert.Equal(t, tt.wantValue, page.Value("#field"))
			}
		})
	}
}

func TestText_WaitsForVisibility(t *testing.T) {
	engine, page := newEngine(t, nil)
	page.Appear("#greeting", browser.ElementState{Visible: true, Width: 100, Height: 20, Text: "Hello"}, 30*time.Millisecond)

	text, err := engine.Text(context.Background(), "#greeting", fast...)
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
}

func TestFill_HiddenFieldTimesOut(t *testing.T) {
	engine, page := newEngine(t, nil)
	page.SetElement("#field", browser.ElementState{Enabled: true})

	err := engine.Fill(context.Background(), "#field", "x", fast...)
	require.Error(t, err)
	assert.ErrorIs(t, err, wait.ErrTimeout)
	assert.Empty(t, page.Value("#field"))
}

func TestAction_DriverErrorIsReturned(t *testing.T) {
	engine, page := newEngine(t, nil)
	page.SetElement("#buy", visibleButton)
	page.ActionErr = browser.ErrStaleElement

	err := engine.Click(context.Background(), "#buy", fast...)
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrStaleElement)
	assert.NotErrorIs(t, err, wait.ErrTimeout)
}

func TestAction_ClosedSession(t *testing.T) {
	page := browsertest.NewPage()
	session := browsertest.NewSession("w1", page)
	require.NoError(t, session.Close())

	engine := wait.NewEngine(session, nil, nil)
	err := engine.Click(context.Background(), "#buy", fast...)
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrSessionClosed)
}
