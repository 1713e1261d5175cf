package config

import "time"

// Recognised configuration keys.
const (
	KeyEnv             = "env"
	KeyBrowser         = "browser"
	KeyBaseURL         = "baseUrl"
	KeyImplicitWait    = "implicit.wait"    // seconds
	KeyExplicitWait    = "explicit.wait"    // seconds
	KeyPollingInterval = "polling.interval" // milliseconds
	KeyScreenshotPath  = "screenshot.path"
	KeyLogFilePath     = "log.file.path"
	KeyLogLevel        = "log.level"
	KeyRetryCount      = "retry.count"
	KeyRemoteURL       = "remote.url"
	KeyViewportWidth   = "viewport.width"
	KeyViewportHeight  = "viewport.height"
	KeyHeadless        = "headless"
)

// Defaults applied when a key is absent.
const (
	DefaultImplicitWait    = 10 * time.Second
	DefaultExplicitWait    = 20 * time.Second
	DefaultPollingInterval = 500 * time.Millisecond
	DefaultRetryCount      = 2
	DefaultViewportWidth   = 1920
	DefaultViewportHeight  = 1080
	DefaultBrowser         = "chrome"
)
