// Package kv is the key-value store backing the persisted session.
package kv

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"
)

// Store is a string key-value store.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(keys ...string) error
}

// Memory is an in-process Store.
type Memory struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// File is a Store persisted as a flat YAML mapping. Every write replaces the
// file atomically; a missing file reads as empty.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile returns a store backed by path. The file is created on first write.
func NewFile(path string) *File {
	return &File{path: path}
}

// DefaultPath returns $XDG_CONFIG_HOME/munchify/session.yaml or its
// platform equivalent.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "user config dir")
	}
	return filepath.Join(dir, "munchify", "session.yaml"), nil
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

func (f *File) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := data[key]
	return v, ok, nil
}

func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return err
	}
	data[key] = value
	return f.save(data)
}

func (f *File) Delete(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := data[k]; ok {
			delete(data, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.save(data)
}

func (f *File) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read store")
	}

	data := make(map[string]string)
	if len(bytes.TrimSpace(raw)) == 0 {
		return data, nil
	}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, errors.Wrapf(err, "parse %s", f.path)
	}
	return data, nil
}

func (f *File) save(data map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return errors.Wrap(err, "create store dir")
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range keys {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Value: data[k], Style: yaml.DoubleQuotedStyle},
		)
	}
	raw, err := yaml.Marshal(node)
	if err != nil {
		return errors.Wrap(err, "encode store")
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*.yaml")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "chmod temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return errors.Wrap(err, "replace store")
	}
	return nil
}
