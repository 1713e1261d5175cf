package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// BaseFile is the base layer loaded from the config directory.
	BaseFile = "config.yaml"

	// DefaultEnv is used when neither the caller nor HARNESS_ENV names one.
	DefaultEnv = "dev"

	// EnvVar selects the environment layer.
	EnvVar = "HARNESS_ENV"
)

// Load builds a Layered provider from <dir>/config.yaml and <dir>/<env>.yaml.
// Precedence for env: argument > HARNESS_ENV > "dev"
func Load(dir, env string) (*Layered, error) {
	env = ResolveEnv(env)

	base, err := NewFileStore(filepath.Join(dir, BaseFile))
	if err != nil {
		return nil, fmt.Errorf("failed to load base config: %w", err)
	}

	overlay, err := NewFileStore(filepath.Join(dir, env+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s config: %w", env, err)
	}

	return NewLayered(env, base.Values(), overlay.Values()), nil
}

// ResolveEnv picks the environment name.
func ResolveEnv(env string) string {
	if env = strings.TrimSpace(env); env != "" {
		return env
	}
	if env = strings.TrimSpace(os.Getenv(EnvVar)); env != "" {
		return env
	}
	return DefaultEnv
}

// Duration resolves key as a count of unit.
// A missing key yields fallback; a malformed or negative one is an error.
func Duration(p Provider, key string, unit, fallback time.Duration) (time.Duration, error) {
	if p == nil || !p.ContainsKey(key) {
		return fallback, nil
	}
	n, err := p.GetLong(key)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, &KeyError{Key: key, Value: fmt.Sprint(n), Err: ErrInvalidFormat}
	}
	return time.Duration(n) * unit, nil
}

// Long resolves key as an integer, falling back when the key is absent.
func Long(p Provider, key string, fallback int64) (int64, error) {
	if p == nil || !p.ContainsKey(key) {
		return fallback, nil
	}
	return p.GetLong(key)
}

// String resolves key, falling back when the key is absent.
func String(p Provider, key, fallback string) string {
	if p == nil {
		return fallback
	}
	v, err := p.Get(key)
	if err != nil {
		return fallback
	}
	return v
}

// Bool resolves key as a boolean, falling back when absent or unparseable.
func Bool(p Provider, key string, fallback bool) bool {
	switch strings.ToLower(String(p, key, "")) {
	case "true", "yes", "1", "on":
		return true
	case "false", "no", "0", "off":
		return false
	default:
		return fallback
	}
}
