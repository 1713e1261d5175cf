package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestNewFileStore(t *testing.T) {
	t.Run("flattens nested mappings", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "config.yaml", `
browser: firefox
explicit:
  wait: 5
polling.interval: 250
retry:
  count: 3
tags: [smoke, login]
empty:
`)
		store, err := NewFileStore(path)
		require.NoError(t, err)

		values := store.Values()
		assert.Equal(t, "firefox", values["browser"])
		assert.Equal(t, "5", values["explicit.wait"])
		assert.Equal(t, "250", values["polling.interval"])
		assert.Equal(t, "3", values["retry.count"])
		assert.Equal(t, "smoke,login", values["tags"])
		assert.Equal(t, "", values["empty"])
		assert.Equal(t, path, store.Path())
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := NewFileStore(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "config.yaml", "browser: [unterminated")
		_, err := NewFileStore(path)
		assert.Error(t, err)
	})

	t.Run("values are a copy", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "config.yaml", "browser: chrome\n")
		store, err := NewFileStore(path)
		require.NoError(t, err)

		values := store.Values()
		values["browser"] = "mutated"
		assert.Equal(t, "chrome", store.Values()["browser"])
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "browser: chrome\nbaseUrl: http://base.local\nexplicit.wait: 20\n")
	writeFile(t, dir, "qa.yaml", "baseUrl: http://qa.local\nexplicit.wait: '  '\n")

	t.Run("environment layer wins", func(t *testing.T) {
		p, err := Load(dir, "qa")
		require.NoError(t, err)

		assert.Equal(t, "qa", p.Env())
		v, err := p.Get(KeyBaseURL)
		require.NoError(t, err)
		assert.Equal(t, "http://qa.local", v)
	})

	t.Run("blank environment value falls back to base", func(t *testing.T) {
		p, err := Load(dir, "qa")
		require.NoError(t, err)

		n, err := p.GetLong(KeyExplicitWait)
		require.NoError(t, err)
		assert.Equal(t, int64(20), n)
	})

	t.Run("env falls back to HARNESS_ENV", func(t *testing.T) {
		t.Setenv(EnvVar, "qa")
		p, err := Load(dir, "")
		require.NoError(t, err)
		assert.Equal(t, "qa", p.Env())
	})

	t.Run("missing environment file", func(t *testing.T) {
		_, err := Load(dir, "prod")
		assert.Error(t, err)
	})
}

func TestResolveEnv(t *testing.T) {
	t.Setenv(EnvVar, "")
	assert.Equal(t, DefaultEnv, ResolveEnv(""))
	assert.Equal(t, "stage", ResolveEnv(" stage "))

	t.Setenv(EnvVar, "ci")
	assert.Equal(t, "ci", ResolveEnv(""))
}
