package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrMissingKey is returned when a key is absent or blank in every layer.
	ErrMissingKey = errors.New("missing config key")

	// ErrInvalidFormat is returned when a value cannot be parsed as the requested type.
	ErrInvalidFormat = errors.New("invalid config value")
)

// KeyError describes a failed lookup for a single key.
type KeyError struct {
	Key   string
	Value string
	Err   error
}

func (e *KeyError) Error() string {
	if errors.Is(e.Err, ErrInvalidFormat) {
		return fmt.Sprintf("%v for %q: %q", e.Err, e.Key, e.Value)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Key)
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

// Provider resolves configuration values by key.
// Implementations must be safe for concurrent readers.
type Provider interface {
	// Get returns the trimmed value for key, or ErrMissingKey.
	Get(key string) (string, error)

	// GetLong returns the value for key parsed as a base-10 integer.
	GetLong(key string) (int64, error)

	// ContainsKey reports whether Get would succeed for key.
	ContainsKey(key string) bool
}

// Layered resolves keys against an environment layer first and a base layer second.
// Precedence: environment (non-blank) > base (non-blank) > ErrMissingKey
//
// A Layered is immutable after construction.
type Layered struct {
	env  string
	base map[string]string
	over map[string]string
}

// NewLayered creates a provider from already-flattened layers.
// Both maps are copied.
func NewLayered(env string, base, overlay map[string]string) *Layered {
	return &Layered{
		env:  env,
		base: copyLayer(base),
		over: copyLayer(overlay),
	}
}

// Env returns the environment name the provider was built for.
func (l *Layered) Env() string {
	return l.env
}

// Get returns the value for key.
func (l *Layered) Get(key string) (string, error) {
	if v, ok := nonBlank(l.over, key); ok {
		return v, nil
	}
	if v, ok := nonBlank(l.base, key); ok {
		return v, nil
	}
	return "", &KeyError{Key: key, Err: ErrMissingKey}
}

// GetLong returns the value for key as an int64.
func (l *Layered) GetLong(key string) (int64, error) {
	return parseLong(l, key)
}

// ContainsKey reports whether key resolves to a non-blank value in either layer.
func (l *Layered) ContainsKey(key string) bool {
	_, err := l.Get(key)
	return err == nil
}

// All returns the merged view of both layers.
func (l *Layered) All() map[string]string {
	merged := copyLayer(l.base)
	for k, v := range l.over {
		if strings.TrimSpace(v) != "" {
			merged[k] = strings.TrimSpace(v)
		}
	}
	return merged
}

// Keys returns every resolvable key in sorted order.
func (l *Layered) Keys() []string {
	all := l.All()
	keys := make([]string, 0, len(all))
	for k, v := range all {
		if strings.TrimSpace(v) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// overlayProvider wins over its parent for the keys it holds.
type overlayProvider struct {
	parent    Provider
	overrides map[string]string
}

// Overlay returns a provider where non-blank overrides take precedence over p.
// The parent is never mutated.
func Overlay(p Provider, overrides map[string]string) Provider {
	if len(overrides) == 0 {
		return p
	}
	return &overlayProvider{parent: p, overrides: copyLayer(overrides)}
}

func (o *overlayProvider) Get(key string) (string, error) {
	if v, ok := nonBlank(o.overrides, key); ok {
		return v, nil
	}
	if o.parent == nil {
		return "", &KeyError{Key: key, Err: ErrMissingKey}
	}
	return o.parent.Get(key)
}

func (o *overlayProvider) GetLong(key string) (int64, error) {
	return parseLong(o, key)
}

func (o *overlayProvider) ContainsKey(key string) bool {
	_, err := o.Get(key)
	return err == nil
}

// parseLong shares GetLong semantics across providers.
func parseLong(p Provider, key string) (int64, error) {
	raw, err := p.Get(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &KeyError{Key: key, Value: raw, Err: ErrInvalidFormat}
	}
	return n, nil
}

func nonBlank(layer map[string]string, key string) (string, bool) {
	v, ok := layer[key]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func copyLayer(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
