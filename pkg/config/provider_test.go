package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayered_Get(t *testing.T) {
	p := NewLayered("dev",
		map[string]string{"browser": "chrome", "baseUrl": "http://base", "only.base": " padded ", "blank.both": ""},
		map[string]string{"baseUrl": "http://env", "browser": "   ", "only.env": "x", "blank.both": " "},
	)

	tests := []struct {
		name    string
		key     string
		want    string
		wantErr error
	}{
		{name: "env wins over base", key: "baseUrl", want: "http://env"},
		{name: "blank env falls back to base", key: "browser", want: "chrome"},
		{name: "base only is trimmed", key: "only.base", want: "padded"},
		{name: "env only", key: "only.env", want: "x"},
		{name: "blank in both layers", key: "blank.both", wantErr: ErrMissingKey},
		{name: "absent", key: "nope", wantErr: ErrMissingKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Get(tt.key)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.Contains(t, err.Error(), tt.key)
				assert.False(t, p.ContainsKey(tt.key))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, p.ContainsKey(tt.key))
		})
	}
}

func TestLayered_GetLong(t *testing.T) {
	p := NewLayered("dev", map[string]string{"n": "42", "neg": "-3", "bad": "abc", "float": "1.5"}, nil)

	n, err := p.GetLong("n")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	n, err = p.GetLong("neg")
	require.NoError(t, err)
	assert.Equal(t, int64(-3), n)

	for _, key := range []string{"bad", "float"} {
		_, err = p.GetLong(key)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidFormat)

		var keyErr *KeyError
		require.True(t, errors.As(err, &keyErr))
		assert.Equal(t, key, keyErr.Key)
	}

	_, err = p.GetLong("absent")
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestLayered_AllAndKeys(t *testing.T) {
	p := NewLayered("dev",
		map[string]string{"a": "1", "b": "2", "c": ""},
		map[string]string{"b": "3", "d": " "},
	)

	all := p.All()
	assert.Equal(t, "1", all["a"])
	assert.Equal(t, "3", all["b"])
	assert.Equal(t, []string{"a", "b"}, p.Keys())
}

func TestOverlay(t *testing.T) {
	base := NewLayered("dev", map[string]string{"browser": "chrome", "retry.count": "2"}, nil)

	t.Run("overrides win", func(t *testing.T) {
		p := Overlay(base, map[string]string{"browser": "firefox"})
		v, err := p.Get("browser")
		require.NoError(t, err)
		assert.Equal(t, "firefox", v)

		n, err := p.GetLong("retry.count")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("parent untouched", func(t *testing.T) {
		_ = Overlay(base, map[string]string{"browser": "firefox"})
		v, err := base.Get("browser")
		require.NoError(t, err)
		assert.Equal(t, "chrome", v)
	})

	t.Run("blank override ignored", func(t *testing.T) {
		p := Overlay(base, map[string]string{"browser": ""})
		v, err := p.Get("browser")
		require.NoError(t, err)
		assert.Equal(t, "chrome", v)
	})

	t.Run("empty overlay returns parent", func(t *testing.T) {
		assert.Same(t, base, Overlay(base, nil))
	})
}

func TestDuration(t *testing.T) {
	p := NewLayered("dev", map[string]string{"explicit.wait": "5", "polling.interval": "abc", "neg": "-1"}, nil)

	d, err := Duration(p, KeyExplicitWait, time.Second, DefaultExplicitWait)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)

	d, err = Duration(p, "absent", time.Millisecond, DefaultPollingInterval)
	require.NoError(t, err)
	assert.Equal(t, DefaultPollingInterval, d)

	_, err = Duration(p, KeyPollingInterval, time.Millisecond, DefaultPollingInterval)
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = Duration(p, "neg", time.Second, time.Second)
	assert.ErrorIs(t, err, ErrInvalidFormat)

	d, err = Duration(nil, KeyExplicitWait, time.Second, DefaultExplicitWait)
	require.NoError(t, err)
	assert.Equal(t, DefaultExplicitWait, d)
}

func TestStringAndBool(t *testing.T) {
	p := NewLayered("dev", map[string]string{"headless": "false", "flag": "maybe", "name": "x"}, nil)

	assert.Equal(t, "x", String(p, "name", "y"))
	assert.Equal(t, "y", String(p, "absent", "y"))
	assert.False(t, Bool(p, KeyHeadless, true))
	assert.True(t, Bool(p, "flag", true))
	assert.True(t, Bool(p, "absent", true))

	n, err := Long(p, "absent", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}
