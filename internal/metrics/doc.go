// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

/*
Package metrics provides Prometheus metrics for the notification relay.

All collectors are registered with the default registry through promauto and
exposed at /metrics by the API router:

	curl http://localhost:5000/metrics

# Available Metrics

Webhook:
  - webhook_events_total{family}: events received per family
  - notifications_skipped_total{reason}: events that produced no message

Delivery:
  - delivery_attempts_total{channel}: outbound send attempts
  - delivery_results_total{channel,result}: success, fallback or failure
  - delivery_duration_seconds{channel}: per-notification delivery time

Enrichment:
  - enrichment_lookups_total{source,result}: tmdb, emby and geo lookups
  - enrichment_duration_seconds{source}: outbound lookup latency
  - cache_hits_total{kind}, cache_misses_total{kind}: metadata cache

Configuration:
  - config_reloads_total{trigger,result}
  - config_last_reload_timestamp

HTTP:
  - api_requests_total{method,endpoint,status_code}
  - api_request_duration_seconds{method,endpoint}
  - api_active_requests

Circuit breakers (tmdb-api, ip-api):
  - circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total{name,result}
  - circuit_breaker_consecutive_failures{name}
  - circuit_breaker_state_transitions_total{name,from_state,to_state}

# Usage

	start := time.Now()
	results, err := ch.Send(ctx, msg)
	metrics.RecordDelivery(ch.Name(), "success", time.Since(start))

# Thread Safety

Every collector is safe for concurrent use.
*/
package metrics
