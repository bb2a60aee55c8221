// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

/*
Command server runs the Emby Notify webhook relay.

Emby posts webhook events to /webhook. Each event is classified, rendered
with the configured templates, optionally enriched with a poster image and
a login location, and delivered to Telegram, WeCom and Discord.

# Startup

 1. Configuration: koanf v2 layers defaults, config.yaml and environment
 2. Logging: zerolog, JSON or console
 3. Metadata cache: BadgerDB, in memory unless cache.dir is set
 4. Notification engine with TMDB and ip-api enrichment
 5. Supervisor tree: HTTP listener and, with watch: true, the config watcher

# Configuration

The file is read from CONFIG_PATH, which must exist when set, or the
first of config.yaml, config.yml, /config/config.yaml and
/etc/embynotify/config.yaml that exists. Environment variables override it:

	HTTP_HOST, HTTP_PORT          listener (default :5000)
	HTTP_DELIVERY_TIMEOUT         per-webhook delivery budget (75s), below HTTP_WRITE_TIMEOUT
	EMBY_URL                      Emby server for local artwork and card links
	TELEGRAM_TOKEN                bot token
	TELEGRAM_ADMINS, TELEGRAM_USERS
	                              comma-separated chat ids
	WECOM_CORP_ID, WECOM_SECRET, WECOM_AGENT_ID, WECOM_TO_USER
	WECOM_PROXY_URL               qyapi base URL or a proxy in front of it
	DISCORD_WEBHOOK_URL
	TMDB_API_KEY                  enables TMDB poster lookup
	GEO_ENABLED, GEO_LANG         ip-api location lookup for logins
	CACHE_DIR, CACHE_TTL
	LOG_LEVEL, LOG_FORMAT
	CONFIG_WATCH                  reload when the file changes

A channel with missing credentials is skipped; the others still deliver.

# Endpoints

	POST /webhook              Emby webhook receiver
	GET|POST /reload_config    re-read the configuration file
	GET /healthcheck           liveness with UTC and Beijing time
	GET /metrics               Prometheus metrics

# Signals

SIGINT and SIGTERM stop the listener. In-flight webhooks get
server.shutdown_timeout to finish delivering.
*/
package main
