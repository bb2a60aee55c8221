// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package config

import (
	"errors"
	"sync"
	"sync/atomic"
)

// LoaderFunc builds a snapshot from the file at path.
type LoaderFunc func(path string) (*Config, error)

// Store holds the active snapshot. Readers call Current once per delivery
// run and keep using that pointer; Reload swaps in a new snapshot only when
// it loads and validates.
type Store struct {
	current atomic.Pointer[Config]
	path    string
	load    LoaderFunc

	// reloadMu serializes reloads so a slow loader cannot overwrite a newer
	// snapshot with an older one.
	reloadMu sync.Mutex
}

// NewStore wraps an already loaded snapshot. Reloads re-read cfg.Path().
func NewStore(cfg *Config) *Store {
	return NewStoreWithLoader(cfg, LoadFrom)
}

// NewStoreWithLoader is NewStore with a custom loader (tests).
func NewStoreWithLoader(cfg *Config, load LoaderFunc) *Store {
	s := &Store{path: cfg.Path(), load: load}
	s.current.Store(cfg)
	return s
}

// Current returns the active snapshot.
func (s *Store) Current() *Config {
	return s.current.Load()
}

// Reload loads a fresh snapshot. On failure the previous snapshot stays
// active and the error is returned.
func (s *Store) Reload() (*Config, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	cfg, err := s.load(s.path)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, errors.New("loader returned no configuration")
	}
	s.current.Store(cfg)
	return cfg, nil
}

// Path returns the file reloads read from.
func (s *Store) Path() string { return s.path }
