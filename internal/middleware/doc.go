// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

/*
Package middleware provides the HTTP middleware shared by every endpoint.

  - RequestID: request and correlation ids for log tracing
  - AccessLog: one zerolog line per request
  - PrometheusMetrics: request count, latency and in-flight gauge

All three are chi-compatible (func(http.Handler) http.Handler):

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)

PrometheusMetrics labels requests by route pattern, so it must run inside a
chi router to avoid one series per raw path.
*/
package middleware
