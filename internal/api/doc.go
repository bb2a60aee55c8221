// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

/*
Package api exposes the HTTP surface of the relay.

Endpoints:

	POST      /webhook        Emby webhook receiver
	GET|POST  /reload_config  swap in a freshly loaded configuration snapshot
	GET       /healthcheck    liveness probe with UTC and UTC+8 clocks
	GET       /metrics        Prometheus exposition

Response bodies keep the shape Emby users already script against:

	{"status": "success", "message": "Webhook processed"}
	{"status": "error", "message": "..."}

The webhook handler processes the event synchronously and answers once every
channel has finished. Processing runs on a context detached from the client
connection, so a disconnecting Emby server does not cancel deliveries that
are already in flight; each outbound call still carries its own timeout.
*/
package api
