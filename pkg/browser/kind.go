package browser

import "strings"

// Kind identifies a browser engine and where it runs.
type Kind string

const (
	LocalChrome   Kind = "local-chrome"
	LocalFirefox  Kind = "local-firefox"
	RemoteChrome  Kind = "remote-chrome"
	RemoteFirefox Kind = "remote-firefox"
)

// Engine names accepted in configuration.
const (
	EngineChrome  = "chrome"
	EngineFirefox = "firefox"
)

// ParseKind maps a configured browser name to a Kind.
// Unrecognised names fall back to chrome; remote upgrades the result to its
// remote counterpart.
func ParseKind(name string, remote bool) Kind {
	name = strings.ToLower(strings.TrimSpace(name))

	var kind Kind
	switch name {
	case "firefox", "ff", "gecko", string(LocalFirefox):
		kind = LocalFirefox
	case string(RemoteFirefox):
		kind = RemoteFirefox
	case string(RemoteChrome):
		kind = RemoteChrome
	default:
		kind = LocalChrome
	}

	if remote {
		return kind.AsRemote()
	}
	return kind
}

// Remote reports whether the kind connects to an endpoint instead of launching.
func (k Kind) Remote() bool {
	return k == RemoteChrome || k == RemoteFirefox
}

// Engine returns the engine name, chrome or firefox.
func (k Kind) Engine() string {
	if k == LocalFirefox || k == RemoteFirefox {
		return EngineFirefox
	}
	return EngineChrome
}

// AsRemote returns the remote kind for the same engine.
func (k Kind) AsRemote() Kind {
	if k.Engine() == EngineFirefox {
		return RemoteFirefox
	}
	return RemoteChrome
}

// AsLocal returns the local kind for the same engine.
func (k Kind) AsLocal() Kind {
	if k.Engine() == EngineFirefox {
		return LocalFirefox
	}
	return LocalChrome
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case LocalChrome, LocalFirefox, RemoteChrome, RemoteFirefox:
		return true
	}
	return false
}

func (k Kind) String() string {
	return string(k)
}
