// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Webhook Metrics
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total number of webhook events received, by event family",
		},
		[]string{"family"}, // playback, library-new, login, mark-or-rate, default, malformed
	)

	NotificationsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_skipped_total",
			Help: "Total number of events that produced no notification",
		},
		[]string{"reason"}, // missing_event, missing_item, empty_body
	)

	// Delivery Metrics
	DeliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_attempts_total",
			Help: "Total number of outbound send attempts per channel",
		},
		[]string{"channel"},
	)

	DeliveryResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_results_total",
			Help: "Total number of delivery outcomes per channel",
		},
		[]string{"channel", "result"}, // result: success, fallback, failure
	)

	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "delivery_duration_seconds",
			Help:    "Time spent delivering one notification on a channel, retries included",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"channel"},
	)

	// Enrichment Metrics
	EnrichmentLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_lookups_total",
			Help: "Total number of metadata lookups by source and outcome",
		},
		[]string{"source", "result"}, // source: tmdb, emby, geo; result: hit, miss, error, skipped, rate_limited
	)

	EnrichmentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enrichment_duration_seconds",
			Help:    "Duration of outbound metadata lookups",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of metadata cache hits",
		},
		[]string{"kind"}, // tmdb, geo
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of metadata cache misses",
		},
		[]string{"kind"},
	)

	// Configuration Metrics
	ConfigReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "config_reloads_total",
			Help: "Total number of configuration reloads by trigger and outcome",
		},
		[]string{"trigger", "result"}, // trigger: api, watch; result: success, failure
	)

	ConfigLastReload = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "config_last_reload_timestamp",
			Help: "Unix timestamp of the last successful configuration reload",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordWebhookEvent counts a received event by family.
func RecordWebhookEvent(family string) {
	WebhookEventsTotal.WithLabelValues(family).Inc()
}

// RecordSkipped counts an event that produced no notification.
func RecordSkipped(reason string) {
	NotificationsSkipped.WithLabelValues(reason).Inc()
}

// RecordDeliveryAttempt counts one outbound send attempt.
func RecordDeliveryAttempt(channel string) {
	DeliveryAttempts.WithLabelValues(channel).Inc()
}

// RecordDelivery records the outcome of delivering one notification.
func RecordDelivery(channel, result string, duration time.Duration) {
	DeliveryResults.WithLabelValues(channel, result).Inc()
	DeliveryDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordEnrichment records one metadata lookup. duration is ignored when zero
// (cache hits and skipped lookups never leave the process).
func RecordEnrichment(source, result string, duration time.Duration) {
	EnrichmentLookups.WithLabelValues(source, result).Inc()
	if duration > 0 {
		EnrichmentDuration.WithLabelValues(source).Observe(duration.Seconds())
	}
}

// RecordCache records a cache lookup.
func RecordCache(kind string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(kind).Inc()
	} else {
		CacheMisses.WithLabelValues(kind).Inc()
	}
}

// RecordConfigReload records a reload attempt.
func RecordConfigReload(trigger string, err error) {
	if err != nil {
		ConfigReloads.WithLabelValues(trigger, "failure").Inc()
		return
	}
	ConfigReloads.WithLabelValues(trigger, "success").Inc()
	ConfigLastReload.Set(float64(time.Now().Unix()))
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
