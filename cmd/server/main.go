// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"

	"github.com/tomtom215/embynotify/internal/api"
	"github.com/tomtom215/embynotify/internal/cache"
	"github.com/tomtom215/embynotify/internal/config"
	"github.com/tomtom215/embynotify/internal/enrich"
	"github.com/tomtom215/embynotify/internal/logging"
	"github.com/tomtom215/embynotify/internal/metrics"
	"github.com/tomtom215/embynotify/internal/notifier"
	"github.com/tomtom215/embynotify/internal/supervisor"
	"github.com/tomtom215/embynotify/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	initLogging(cfg)
	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	logging.Info().
		Str("version", version).
		Str("config_path", cfg.Path()).
		Bool("watch", cfg.Watch).
		Msg("Starting Emby Notify")
	logChannels(cfg)

	metaCache, err := cache.New(cache.Config{Dir: cfg.Cache.Dir, TTL: cfg.Cache.TTL})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open metadata cache")
	}
	defer func() {
		if err := metaCache.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing metadata cache")
		}
	}()

	store := config.NewStore(cfg)
	engine := notifier.NewEngine(store,
		notifier.WithGeoResolver(enrich.NewGeoResolver(cfg.Geo, metaCache)),
		notifier.WithImageResolver(enrich.NewImageResolver(metaCache)),
	)

	onReload := func(next *config.Config) {
		initLogging(next)
		logChannels(next)
	}
	handler := api.NewHandler(engine, store, api.WithReloadHook(onReload))

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	server := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	tree.AddAPIService(services.NewHTTPServerService(server, addr, cfg.Server.ShutdownTimeout))
	if cfg.Watch && store.Path() != "" {
		tree.AddConfigService(services.NewConfigWatchService(store, onReload))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}
	logging.Info().Msg("Emby Notify stopped")
}

func initLogging(cfg *config.Config) {
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
}

// logChannels reports which channels will be attempted and why the others
// are skipped.
func logChannels(cfg *config.Config) {
	for _, status := range []config.ChannelStatus{cfg.TelegramStatus(), cfg.WeComStatus(), cfg.DiscordStatus()} {
		if err := status.Err(); err != nil {
			logging.Info().Str("channel", status.Name).Str("reason", err.Error()).Msg("Channel disabled")
			continue
		}
		logging.Info().Str("channel", status.Name).Msg("Channel enabled")
	}
}
