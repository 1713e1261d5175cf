package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileStore is a single configuration layer backed by a YAML file.
// Nested mappings are flattened to dotted keys, so
//
//	explicit:
//	  wait: 5
//
// and `explicit.wait: 5` resolve to the same key.
type FileStore struct {
	path string
	data map[string]string
}

// NewFileStore reads and flattens the YAML file at path.
func NewFileStore(path string) (*FileStore, error) {
	store := &FileStore{
		path: path,
		data: make(map[string]string),
	}

	if err := store.Load(); err != nil {
		return nil, err
	}

	return store, nil
}

// Load (re)reads the file from disk.
func (s *FileStore) Load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", s.path, err)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", s.path, err)
	}

	data := make(map[string]string)
	flatten("", doc, data)
	s.data = data
	return nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Values returns a copy of the flattened key/value pairs.
func (s *FileStore) Values() map[string]string {
	return copyLayer(s.data)
}

func flatten(prefix string, node map[string]interface{}, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		switch val := v.(type) {
		case map[string]interface{}:
			flatten(key, val, out)
		case []interface{}:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, scalarString(item))
			}
			out[key] = strings.Join(parts, ",")
		default:
			out[key] = scalarString(val)
		}
	}
}

func scalarString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return strings.Join(keys, ",")
	default:
		return fmt.Sprint(val)
	}
}
