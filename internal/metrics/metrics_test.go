// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordWebhookEventAndSkipped(t *testing.T) {
	before := testutil.ToFloat64(WebhookEventsTotal.WithLabelValues("login"))
	RecordWebhookEvent("login")
	RecordWebhookEvent("login")
	if got := testutil.ToFloat64(WebhookEventsTotal.WithLabelValues("login")) - before; got != 2 {
		t.Errorf("webhook_events_total{login} delta = %v, want 2", got)
	}

	before = testutil.ToFloat64(NotificationsSkipped.WithLabelValues("missing_item"))
	RecordSkipped("missing_item")
	if got := testutil.ToFloat64(NotificationsSkipped.WithLabelValues("missing_item")) - before; got != 1 {
		t.Errorf("notifications_skipped_total delta = %v, want 1", got)
	}
}

func TestRecordDelivery(t *testing.T) {
	tests := []struct {
		name     string
		channel  string
		result   string
		duration time.Duration
	}{
		{"telegram success", "telegram", "success", 120 * time.Millisecond},
		{"wecom failure", "wecom", "failure", 10 * time.Second},
		{"telegram fallback", "telegram", "fallback", 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(DeliveryResults.WithLabelValues(tt.channel, tt.result))
			RecordDelivery(tt.channel, tt.result, tt.duration)
			if got := testutil.ToFloat64(DeliveryResults.WithLabelValues(tt.channel, tt.result)) - before; got != 1 {
				t.Errorf("delivery_results_total delta = %v, want 1", got)
			}
		})
	}

	// Histogram sample counts are only visible through the client model.
	var m dto.Metric
	if err := DeliveryDuration.WithLabelValues("telegram").(interface{ Write(*dto.Metric) error }).Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if m.GetHistogram().GetSampleCount() < 2 {
		t.Errorf("delivery_duration_seconds{telegram} samples = %d, want >= 2", m.GetHistogram().GetSampleCount())
	}
}

func TestRecordEnrichmentSkipsZeroDuration(t *testing.T) {
	var before dto.Metric
	hist := EnrichmentDuration.WithLabelValues("geo").(interface{ Write(*dto.Metric) error })
	if err := hist.Write(&before); err != nil {
		t.Fatal(err)
	}

	RecordEnrichment("geo", "skipped", 0)
	RecordEnrichment("geo", "hit", 50*time.Millisecond)

	var after dto.Metric
	if err := hist.Write(&after); err != nil {
		t.Fatal(err)
	}
	if got := after.GetHistogram().GetSampleCount() - before.GetHistogram().GetSampleCount(); got != 1 {
		t.Errorf("observed %d samples, want 1", got)
	}
}

func TestRecordCache(t *testing.T) {
	hits := testutil.ToFloat64(CacheHits.WithLabelValues("tmdb"))
	misses := testutil.ToFloat64(CacheMisses.WithLabelValues("tmdb"))

	RecordCache("tmdb", true)
	RecordCache("tmdb", false)
	RecordCache("tmdb", false)

	if got := testutil.ToFloat64(CacheHits.WithLabelValues("tmdb")) - hits; got != 1 {
		t.Errorf("hits delta = %v", got)
	}
	if got := testutil.ToFloat64(CacheMisses.WithLabelValues("tmdb")) - misses; got != 2 {
		t.Errorf("misses delta = %v", got)
	}
}

func TestRecordConfigReload(t *testing.T) {
	ok := testutil.ToFloat64(ConfigReloads.WithLabelValues("api", "success"))
	failed := testutil.ToFloat64(ConfigReloads.WithLabelValues("api", "failure"))

	RecordConfigReload("api", nil)
	RecordConfigReload("api", errors.New("bad yaml"))

	if got := testutil.ToFloat64(ConfigReloads.WithLabelValues("api", "success")) - ok; got != 1 {
		t.Errorf("success delta = %v", got)
	}
	if got := testutil.ToFloat64(ConfigReloads.WithLabelValues("api", "failure")) - failed; got != 1 {
		t.Errorf("failure delta = %v", got)
	}
	if testutil.ToFloat64(ConfigLastReload) == 0 {
		t.Error("last reload timestamp not set")
	}
}

func TestTrackActiveRequestConcurrent(t *testing.T) {
	start := testutil.ToFloat64(APIActiveRequests)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			TrackActiveRequest(true)
			TrackActiveRequest(false)
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(APIActiveRequests); got != start {
		t.Errorf("active requests = %v, want %v", got, start)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/webhook", "200"))
	RecordAPIRequest("POST", "/webhook", "200", 15*time.Millisecond)
	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/webhook", "200")) - before; got != 1 {
		t.Errorf("api_requests_total delta = %v", got)
	}
}
