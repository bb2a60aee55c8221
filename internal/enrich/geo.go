// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/embynotify/internal/cache"
	"github.com/tomtom215/embynotify/internal/config"
	"github.com/tomtom215/embynotify/internal/logging"
	"github.com/tomtom215/embynotify/internal/metrics"
)

// GeoTimeout bounds one ip-api request.
const GeoTimeout = 3 * time.Second

const sourceGeo = "geo"

// ipAPIResponse is the subset of the ip-api.com reply we read.
type ipAPIResponse struct {
	Status     string `json:"status"`  // "success" or "fail"
	Message    string `json:"message"` // reason when status is "fail"
	RegionName string `json:"regionName"`
	City       string `json:"city"`
}

// GeoResolver turns a client IP into "<region> <city>" using ip-api.com.
// The free tier allows 45 requests per minute; excess lookups are skipped
// rather than queued so a webhook never waits on the limiter.
type GeoResolver struct {
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *Breaker
	cache    cache.Cacher
	settings config.GeoConfig
}

// NewGeoResolver creates a resolver. c may be nil to disable caching.
func NewGeoResolver(settings config.GeoConfig, c cache.Cacher) *GeoResolver {
	if c == nil {
		c = &cache.Nop{}
	}
	return &GeoResolver{
		client:   &http.Client{Timeout: GeoTimeout},
		limiter:  rate.NewLimiter(perMinute(settings.RequestsPerMinute), burst(settings.RequestsPerMinute)),
		breaker:  NewBreaker(BreakerGeo),
		cache:    c,
		settings: settings,
	}
}

// WithSettings returns a resolver that uses s but shares the limiter,
// breaker and cache with g. Used to apply a reloaded configuration.
func (g *GeoResolver) WithSettings(s config.GeoConfig) *GeoResolver {
	if s.RequestsPerMinute != g.settings.RequestsPerMinute {
		g.limiter.SetLimit(perMinute(s.RequestsPerMinute))
		g.limiter.SetBurst(burst(s.RequestsPerMinute))
	}
	next := *g
	next.settings = s
	return &next
}

// ResolveLocation returns a display location for ip, or "" when it is
// unknown. It never fails; problems are logged at warn.
func (g *GeoResolver) ResolveLocation(ctx context.Context, ip string) string {
	if ip == "" {
		return ""
	}
	if !g.settings.Enabled {
		metrics.RecordEnrichment(sourceGeo, "skipped", 0)
		return ""
	}
	if !IsPublicIP(ip) {
		metrics.RecordEnrichment(sourceGeo, "skipped", 0)
		return ""
	}

	key := "geo:" + g.settings.Lang + ":" + ip
	if loc, ok := g.cache.Get(key); ok {
		metrics.RecordCache(sourceGeo, true)
		metrics.RecordEnrichment(sourceGeo, "hit", 0)
		return loc
	}
	metrics.RecordCache(sourceGeo, false)

	if !g.limiter.Allow() {
		metrics.RecordEnrichment(sourceGeo, "rate_limited", 0)
		logging.CtxWarn(ctx).Str("ip", ip).Msg("ip-api rate limit reached, skipping location lookup")
		return ""
	}

	start := time.Now()
	loc, err := Execute(g.breaker, func() (string, error) {
		return g.query(ctx, ip)
	})
	if err != nil {
		metrics.RecordEnrichment(sourceGeo, "error", time.Since(start))
		logging.CtxWarn(ctx).Err(err).Str("endpoint", g.settings.BaseURL).Str("ip", ip).Msg("IP location lookup failed")
		return ""
	}
	if loc == "" {
		metrics.RecordEnrichment(sourceGeo, "miss", time.Since(start))
		return ""
	}

	metrics.RecordEnrichment(sourceGeo, "hit", time.Since(start))
	g.cache.Set(key, loc)
	return loc
}

// query performs one lookup. A "fail" status is a miss, not an error, so
// reserved ranges do not count against the breaker.
func (g *GeoResolver) query(ctx context.Context, ip string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, GeoTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s?lang=%s&fields=status,message,regionName,city",
		g.settings.BaseURL, url.PathEscape(ip), url.QueryEscape(g.settings.Lang))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to query ip-api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ip-api returned status %d", resp.StatusCode)
	}

	var result ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode ip-api response: %w", err)
	}
	if result.Status != "success" {
		logging.Ctx(ctx).Debug().Str("ip", ip).Str("reason", result.Message).Msg("ip-api lookup returned no location")
		return "", nil
	}
	return strings.TrimSpace(result.RegionName + " " + result.City), nil
}

// IsPublicIP reports whether ip parses and is globally routable. Private,
// loopback, link-local and unspecified addresses cannot be geolocated.
func IsPublicIP(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	return !(addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() ||
		addr.IsUnspecified() || addr.IsMulticast())
}

func perMinute(n int) rate.Limit {
	if n <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(n) / 60)
}

func burst(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
