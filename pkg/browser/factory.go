package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/entrhq/harness/pkg/config"
	"github.com/entrhq/harness/pkg/logging"
)

// Launcher starts or connects to a browser and returns its page.
// Closing the page must release everything Launch created.
type Launcher interface {
	Launch(ctx context.Context, kind Kind, endpoint string) (Page, error)
}

// LaunchSettings configures a new session.
type LaunchSettings struct {
	// Kind selects the engine; an Endpoint upgrades a local kind to remote
	Kind Kind

	// Endpoint is the remote browser URL, empty for a local launch
	Endpoint string

	// BaselineTimeout is applied as the page's default action timeout
	BaselineTimeout time.Duration

	// Viewport is applied after launch; zero means the configured default
	Viewport Viewport
}

// SettingsFromConfig resolves launch settings from configuration.
// browserName overrides the browser key when non-empty.
func SettingsFromConfig(p config.Provider, browserName string) (LaunchSettings, error) {
	if strings.TrimSpace(browserName) == "" {
		browserName = config.String(p, config.KeyBrowser, config.DefaultBrowser)
	}
	endpoint := config.String(p, config.KeyRemoteURL, "")

	baseline, err := config.Duration(p, config.KeyImplicitWait, time.Second, config.DefaultImplicitWait)
	if err != nil {
		return LaunchSettings{}, err
	}
	width, err := config.Long(p, config.KeyViewportWidth, config.DefaultViewportWidth)
	if err != nil {
		return LaunchSettings{}, err
	}
	height, err := config.Long(p, config.KeyViewportHeight, config.DefaultViewportHeight)
	if err != nil {
		return LaunchSettings{}, err
	}

	return LaunchSettings{
		Kind:            ParseKind(browserName, endpoint != ""),
		Endpoint:        endpoint,
		BaselineTimeout: baseline,
		Viewport:        Viewport{Width: int(width), Height: int(height)},
	}, nil
}

// ValidateEndpoint checks that raw is an absolute URL a driver can connect to.
func ValidateEndpoint(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &EndpointError{Endpoint: raw, Reason: "malformed URL", Err: err}
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, &EndpointError{Endpoint: raw, Reason: "scheme and host are required"}
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ws", "wss":
	default:
		return nil, &EndpointError{Endpoint: raw, Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	return u, nil
}

// Factory builds sessions through a Launcher.
type Factory struct {
	launcher Launcher
	logger   *logging.Logger
}

// NewFactory creates a factory. A nil logger discards output.
func NewFactory(launcher Launcher, logger *logging.Logger) *Factory {
	if logger == nil {
		logger = logging.Discard("browser")
	}
	return &Factory{
		launcher: launcher,
		logger:   logger,
	}
}

// Create launches a session for worker.
//
// An empty endpoint launches locally; a non-empty one connects remotely with
// the same engine. Baseline settings are applied best-effort: failures are
// recorded on Session.Warnings and logged, never returned.
func (f *Factory) Create(ctx context.Context, worker string, settings LaunchSettings) (*Session, error) {
	settings.Endpoint = strings.TrimSpace(settings.Endpoint)
	if !settings.Kind.Valid() {
		settings.Kind = LocalChrome
	}

	if settings.Endpoint != "" {
		if _, err := ValidateEndpoint(settings.Endpoint); err != nil {
			recordLaunchFailure(settings.Kind)
			return nil, err
		}
		settings.Kind = settings.Kind.AsRemote()
	} else if settings.Kind.Remote() {
		recordLaunchFailure(settings.Kind)
		return nil, &EndpointError{Reason: fmt.Sprintf("%s requires an endpoint", settings.Kind)}
	}

	log := f.logger.With("worker", worker)
	log.Debugf("launching %s %s", settings.Kind, settings.Endpoint)

	page, err := f.launcher.Launch(ctx, settings.Kind, settings.Endpoint)
	if err != nil {
		recordLaunchFailure(settings.Kind)
		log.Errorf("launch failed: %v", err)
		return nil, &LaunchError{Kind: settings.Kind, Endpoint: settings.Endpoint, Err: err}
	}

	session := NewSession(worker, settings, page)
	f.applyBaseline(session, page, settings, log)

	recordSessionCreated(settings.Kind)
	log.Infof("session %s created (%s)", session.ID, settings.Kind)
	return session, nil
}

func (f *Factory) applyBaseline(s *Session, page Page, settings LaunchSettings, log *logging.Logger) {
	if settings.BaselineTimeout > 0 {
		if err := page.SetDefaultTimeout(settings.BaselineTimeout); err != nil {
			s.warn(fmt.Sprintf("set implicit wait: %v", err))
			log.Warnf("failed to apply implicit wait %s: %v", settings.BaselineTimeout, err)
			recordBaselineWarning()
		}
	}

	vp := settings.Viewport
	if vp.Width <= 0 || vp.Height <= 0 {
		vp = Viewport{Width: config.DefaultViewportWidth, Height: config.DefaultViewportHeight}
	}
	if err := page.SetViewport(vp.Width, vp.Height); err != nil {
		s.warn(fmt.Sprintf("maximize viewport: %v", err))
		log.Warnf("failed to maximize viewport to %dx%d: %v", vp.Width, vp.Height, err)
		recordBaselineWarning()
	}
}
