// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/embynotify/internal/config"
	"github.com/tomtom215/embynotify/internal/logging"
	"github.com/tomtom215/embynotify/internal/metrics"
)

// ConfigReloader is satisfied by *config.Store.
type ConfigReloader interface {
	Reload() (*config.Config, error)
	Path() string
}

// WatchFunc starts watching path and returns a function that stops it.
type WatchFunc func(path string, onChange func(), onError func(error)) (stop func() error, err error)

// ConfigWatchService reloads the configuration snapshot whenever the file
// changes. A failed reload keeps the previous snapshot active; a watcher
// error ends Serve so the supervisor can re-establish the watch.
type ConfigWatchService struct {
	store    ConfigReloader
	watch    WatchFunc
	onReload func(*config.Config)
}

// NewConfigWatchService watches store.Path() with config.WatchConfigFile.
// onReload, if set, runs after each successful reload.
func NewConfigWatchService(store ConfigReloader, onReload func(*config.Config)) *ConfigWatchService {
	return &ConfigWatchService{store: store, watch: config.WatchConfigFile, onReload: onReload}
}

// WithWatchFunc replaces the file watcher.
func (s *ConfigWatchService) WithWatchFunc(fn WatchFunc) *ConfigWatchService {
	s.watch = fn
	return s
}

// Serve implements suture.Service.
func (s *ConfigWatchService) Serve(ctx context.Context) error {
	path := s.store.Path()
	if path == "" {
		return errors.New("config watch: configuration was not loaded from a file")
	}

	changes := make(chan struct{}, 1)
	failures := make(chan error, 1)
	stop, err := s.watch(path,
		func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		},
		func(err error) {
			select {
			case failures <- err:
			default:
			}
		},
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := stop(); err != nil {
			logging.Debug().Err(err).Msg("Config watch stop")
		}
	}()
	logging.Info().Str("path", path).Msg("Watching configuration file")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-failures:
			return fmt.Errorf("config watch %s: %w", path, err)
		case <-changes:
			s.reload()
		}
	}
}

func (s *ConfigWatchService) reload() {
	cfg, err := s.store.Reload()
	metrics.RecordConfigReload("watch", err)
	if err != nil {
		logging.Warn().Err(err).Msg("Configuration change rejected, keeping previous settings")
		return
	}
	logging.Info().Str("path", cfg.Path()).Msg("Configuration reloaded from file change")
	if s.onReload != nil {
		s.onReload(cfg)
	}
}

// String names the service in supervisor events.
func (s *ConfigWatchService) String() string {
	return "config-watch"
}
