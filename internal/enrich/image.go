// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

// Package enrich looks up data the webhook does not carry: poster images
// from TMDB or the Emby server and a location for the client IP. Every
// lookup degrades to "no result"; none of them fail a notification.
package enrich

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/embynotify/internal/cache"
	"github.com/tomtom215/embynotify/internal/config"
	"github.com/tomtom215/embynotify/internal/logging"
	"github.com/tomtom215/embynotify/internal/metrics"
	"github.com/tomtom215/embynotify/internal/models"
	"github.com/tomtom215/embynotify/internal/render"
)

// Request timeouts for image lookups.
const (
	TMDBTimeout  = 10 * time.Second
	ProbeTimeout = 5 * time.Second
)

const (
	sourceTMDB = "tmdb"
	sourceEmby = "emby"
)

// ImageOptions carries the per-snapshot settings a lookup needs.
type ImageOptions struct {
	TMDBKey      string
	TMDBURL      string // API base, e.g. https://api.themoviedb.org
	ImageBaseURL string // prefix for poster_path
	EmbyURL      string // Emby server base for the local fallback
}

// ImageOptionsFrom extracts ImageOptions from a configuration snapshot.
func ImageOptionsFrom(cfg *config.Config) ImageOptions {
	return ImageOptions{
		TMDBKey:      cfg.TMDB.APIKey,
		TMDBURL:      cfg.TMDB.APIURL,
		ImageBaseURL: cfg.TMDB.ImageBaseURL,
		EmbyURL:      cfg.Emby.URL,
	}
}

// ImageResolver finds a poster URL for a media item. It is safe for
// concurrent use.
type ImageResolver struct {
	tmdb    *http.Client
	probe   *http.Client
	breaker *Breaker
	cache   cache.Cacher
}

// NewImageResolver creates a resolver. c may be nil to disable caching.
func NewImageResolver(c cache.Cacher) *ImageResolver {
	if c == nil {
		c = &cache.Nop{}
	}
	return &ImageResolver{
		tmdb:    &http.Client{Timeout: TMDBTimeout},
		probe:   &http.Client{Timeout: ProbeTimeout},
		breaker: NewBreaker(BreakerTMDB),
		cache:   c,
	}
}

// ResolveImage returns an image URL for item, or "" when none was found.
// Episodes are matched by series name on TMDB, movies by their TMDB id;
// anything else, and any TMDB failure, falls back to the Emby server's own
// artwork.
func (r *ImageResolver) ResolveImage(ctx context.Context, item *models.MediaItem, opts ImageOptions) string {
	if item == nil {
		return ""
	}
	if opts.TMDBKey == "" {
		logging.Ctx(ctx).Debug().Msg("TMDB API key not configured, skipping TMDB lookup")
		return r.localImage(ctx, item, opts)
	}

	var poster string
	switch {
	case item.IsEpisode():
		poster = r.episodePoster(ctx, item, opts)
	case item.IsMovie():
		poster = r.moviePoster(ctx, item, opts)
	}
	if poster != "" {
		return poster
	}
	return r.localImage(ctx, item, opts)
}

func (r *ImageResolver) episodePoster(ctx context.Context, item *models.MediaItem, opts ImageOptions) string {
	series := strings.TrimSpace(item.SeriesName)
	if series == "" {
		logging.Ctx(ctx).Debug().Str("item_id", item.ID).Msg("Episode has no series name, skipping TMDB search")
		return ""
	}
	year := ""
	if render.Truthy(item.ProductionYear) {
		year = item.Year()
	}

	key := "tmdb:poster:tv:" + series + ":" + year
	if url, ok := r.cached(key, opts); ok {
		return url
	}

	start := time.Now()
	id, err := r.searchTV(ctx, opts, series, year)
	if err != nil {
		r.failed(ctx, err, "search/tv", start)
		return ""
	}
	if id == 0 {
		metrics.RecordEnrichment(sourceTMDB, "miss", time.Since(start))
		logging.Ctx(ctx).Debug().Str("series", logging.Sanitize(series)).Str("year", year).Msg("No TMDB match for series")
		return ""
	}

	path, err := r.poster(ctx, opts, "tv", formatID(id))
	if err != nil {
		r.failed(ctx, err, "tv", start)
		return ""
	}
	return r.store(key, opts, path, start)
}

func (r *ImageResolver) moviePoster(ctx context.Context, item *models.MediaItem, opts ImageOptions) string {
	id := strings.TrimSpace(item.TmdbIDString())
	if id == "" {
		logging.Ctx(ctx).Debug().Str("item_id", item.ID).Msg("Movie has no TMDB id")
		return ""
	}

	key := "tmdb:poster:movie:" + id
	if url, ok := r.cached(key, opts); ok {
		return url
	}

	start := time.Now()
	path, err := r.poster(ctx, opts, "movie", id)
	if err != nil {
		r.failed(ctx, err, "movie", start)
		return ""
	}
	return r.store(key, opts, path, start)
}

// cached returns the poster URL for a cached poster_path. The URL is built
// from the current options so a changed tmdb.image_base_url applies to
// cached entries too.
func (r *ImageResolver) cached(key string, opts ImageOptions) (string, bool) {
	path, ok := r.cache.Get(key)
	metrics.RecordCache(sourceTMDB, ok)
	if !ok {
		return "", false
	}
	metrics.RecordEnrichment(sourceTMDB, "hit", 0)
	return opts.ImageBaseURL + path, true
}

// store caches a found poster_path. Misses are not cached so a later upload
// on TMDB is picked up.
func (r *ImageResolver) store(key string, opts ImageOptions, path string, start time.Time) string {
	if path == "" {
		metrics.RecordEnrichment(sourceTMDB, "miss", time.Since(start))
		return ""
	}
	metrics.RecordEnrichment(sourceTMDB, "hit", time.Since(start))
	r.cache.Set(key, path)
	return opts.ImageBaseURL + path
}

func (r *ImageResolver) failed(ctx context.Context, err error, what string, start time.Time) {
	result := "error"
	if IsRejection(err) {
		result = "rejected"
	}
	metrics.RecordEnrichment(sourceTMDB, result, time.Since(start))
	logTMDBFailure(ctx, err, what)
}
