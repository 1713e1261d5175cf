package main

import (
	"context"
	"errors"
	"strings"

	"github.com/entrhq/harness/pkg/browser"
	"github.com/entrhq/harness/pkg/lifecycle"
	"github.com/entrhq/harness/pkg/wait"
)

// smokeClass checks that the configured base URL loads on browserName.
func smokeClass(browserName string) lifecycle.Class {
	return lifecycle.Class{
		Name:    "Smoke",
		Browser: browserName,
		Tests: []lifecycle.Test{
			{Name: "pageReady", Run: checkPageReady},
			{Name: "title", Run: checkTitle},
		},
	}
}

func checkPageReady(ctx context.Context, w *lifecycle.Worker) error {
	return w.Wait().ForPageReady(ctx)
}

func checkTitle(ctx context.Context, w *lifecycle.Worker) error {
	if err := w.Wait().ForPageReady(ctx); err != nil {
		return err
	}

	title, err := wait.For(ctx, w.Wait(), wait.Condition[string](func(ctx context.Context, page browser.Page) (wait.Poll[string], error) {
		title, err := page.Title(ctx)
		if err != nil {
			return wait.Poll[string]{}, err
		}
		if strings.TrimSpace(title) == "" {
			return wait.NotYet[string]("document has no title"), nil
		}
		return wait.Ready(title), nil
	}))
	if err != nil {
		return err
	}

	w.Logger().Infof("page title %q", title)
	if strings.Contains(strings.ToLower(title), "error") {
		return errors.New("page title reports an error: " + title)
	}
	return nil
}
