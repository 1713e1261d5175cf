// Package browser manages browser sessions for test workers.
//
// # Architecture
//
// The package is built around four concepts:
//
// 1. Page: the driver port. PlaywrightLauncher provides the production
// implementation; browsertest provides an in-memory one.
// 2. Session: one live browser owned by exactly one worker.
// 3. Factory: validates launch settings, launches through a Launcher and
// applies baseline settings (implicit wait, maximized viewport).
// 4. Registry: maps worker identity to session with atomic create-if-absent.
//
// # Session Lifecycle
//
//  1. Acquire: the first Acquire for a worker launches its session
//  2. Use: waits and navigation go through the session's Page
//  3. Release: closes the browser and forgets the session; idempotent
//
// Sessions are never shared between workers. A worker that exits abnormally
// is cleaned up by Registry.CloseAll.
//
// # Configuration
//
// SettingsFromConfig reads these keys:
//
//   - browser: chrome (default) or firefox
//   - remote.url: remote endpoint; when set, sessions connect instead of launching
//   - implicit.wait: baseline action timeout in seconds (default: 10)
//   - viewport.width, viewport.height: maximized size (default: 1920x1080)
//
// # Example Usage
//
//	launcher := browser.NewPlaywrightLauncher(browser.PlaywrightOptions{Headless: true})
//	registry := browser.NewRegistry(browser.NewFactory(launcher, logger), logger)
//
//	settings, err := browser.SettingsFromConfig(cfg, "firefox")
//	session, err := registry.Acquire(ctx, "worker-1", settings)
//	defer registry.Release("worker-1")
//
//	err = session.Navigate(ctx, "https://example.com")
package browser
