// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/embynotify/internal/models"
	"github.com/tomtom215/embynotify/internal/render"
)

var (
	// ErrMissingEvent means the payload had no Event field.
	ErrMissingEvent = errors.New("payload has no Event field")

	// ErrMissingItem means a family that needs Item metadata got none.
	ErrMissingItem = errors.New("payload has no Item section")
)

// Fallback labels for absent payload fields.
const (
	UnknownUser     = "未知用户"
	UnknownMedia    = "未知媒体"
	UnknownYear     = "未知年份"
	UnknownSeries   = "未知剧集"
	UnknownMedium   = "媒体"
	NoOverview      = "暂无剧情简介"
	MediaTypeMovie  = "电影"
	MediaTypeSeries = "剧集"
	MediaTypeAudio  = "有声书"
)

// LocationResolver maps an IP address to a display location ("" = unknown).
type LocationResolver interface {
	ResolveLocation(ctx context.Context, ip string) string
}

// Builder assembles template variables. It is safe for concurrent use.
type Builder struct {
	geo LocationResolver
	now func() time.Time
}

// NewBuilder returns a Builder. geo may be nil to skip location lookups.
func NewBuilder(geo LocationResolver) *Builder {
	return &Builder{geo: geo, now: time.Now}
}

// WithClock replaces the time source (tests).
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build returns the context for ev and, for families that use it, the media
// item. It returns ErrMissingItem when such a family has no Item.
func (b *Builder) Build(ctx context.Context, ev models.RawEvent, cls models.Classification) (models.EventContext, *models.MediaItem, error) {
	var item *models.MediaItem
	switch cls.Family {
	case models.FamilyPlayback, models.FamilyLibraryNew, models.FamilyMarkOrRate:
		var ok bool
		if item, ok = models.ItemFromEvent(ev); !ok {
			return nil, nil, fmt.Errorf("%s: %w", cls.EventType, ErrMissingItem)
		}
	}

	c := b.base(ctx, ev, cls)
	switch cls.Family {
	case models.FamilyPlayback:
		addPlayback(c, ev, item)
	case models.FamilyLibraryNew:
		addLibrary(c, item)
	case models.FamilyLogin:
		if name, ok := c["device_name"].(string); ok {
			c["client"] = FirstToken(name)
		}
	case models.FamilyMarkOrRate:
		addMark(c, ev, cls, item)
	}
	return c, item, nil
}

func (b *Builder) base(ctx context.Context, ev models.RawEvent, cls models.Classification) models.EventContext {
	device := ExtractDevice(ev)
	c := models.EventContext{
		"action":      cls.Action,
		"user_name":   userName(ev),
		"now_time":    LocalTime(b.now()),
		"ip_address":  device.IP,
		"client":      device.Name,
		"device_name": device.Name,
	}
	if b.geo != nil && device.IP != "" {
		if loc := b.geo.ResolveLocation(ctx, device.IP); loc != "" {
			c["ip_location"] = loc
		}
	}
	return c
}

func userName(ev models.RawEvent) string {
	user := ev.Section("User")
	if user == nil {
		return UnknownUser
	}
	return user.StringOr("Name", UnknownUser)
}

func addPlayback(c models.EventContext, ev models.RawEvent, item *models.MediaItem) {
	mediaType := MediaTypeSeries
	if item.IsMovie() {
		mediaType = MediaTypeMovie
	}

	season, episode := seasonEpisode(item)
	name := item.Raw().StringOr("Name", UnknownMedia)
	seasonEpisodeTag := ""
	if item.IsEpisode() {
		name = episodeName(item, name)
		seasonEpisodeTag = fmt.Sprintf("S%sE%s", season, episode)
	}

	playback := ev.Section("PlaybackInfo")
	if pct := Percentage(playback.Int64("PositionTicks"), item.RunTimeTicks); pct > 0 {
		c["percentage"] = pct
	}

	c["media_type"] = mediaType
	c["item_name"] = itemName(item, name)
	c["overview"] = item.Raw().StringOr("Overview", NoOverview)
	c["season_episode"] = seasonEpisodeTag
	c.Set("vote_average", item.CommunityRating)
	c.Set("tmdbid", item.TmdbID)
	c.Set("imdbid", item.ImdbID)
	c.Set("resource_quality", playback["VideoQuality"])
}

func addLibrary(c models.EventContext, item *models.MediaItem) {
	var mediaType string
	switch item.Type {
	case models.ItemTypeMovie:
		mediaType = MediaTypeMovie
	case models.ItemTypeEpisode:
		mediaType = MediaTypeSeries
	case models.ItemTypeAudio:
		mediaType = MediaTypeAudio
	default:
		mediaType = item.Raw().StringOr("Type", UnknownMedium)
	}

	name := item.Raw().StringOr("Name", UnknownMedia)
	if mediaType == MediaTypeSeries {
		name = episodeName(item, name)
	}

	c["media_type"] = mediaType
	c["item_name"] = itemName(item, name)
	c["overview"] = item.Raw().StringOr("Overview", NoOverview)
	c.Set("vote_average", item.CommunityRating)
	c.Set("tmdbid", item.TmdbID)
	c.Set("imdbid", item.ImdbID)
	if size := FormatSize(item.Size); size != "" {
		c["total_size"] = size
	}
}

func addMark(c models.EventContext, ev models.RawEvent, cls models.Classification, item *models.MediaItem) {
	var mediaType string
	switch item.Type {
	case models.ItemTypeMovie:
		mediaType = MediaTypeMovie
	case models.ItemTypeEpisode:
		mediaType = MediaTypeSeries
	default:
		mediaType = item.Raw().StringOr("Type", UnknownMedium)
	}

	name := item.Raw().StringOr("Name", UnknownMedia)
	if item.IsEpisode() {
		name = episodeName(item, name)
	}

	ratingSource := item.CommunityRating
	if !render.Truthy(ratingSource) {
		ratingSource, _ = ev.Lookup("Rating")
	}
	rating, hasRating := FormatRating(ratingSource)

	var action, emoji string
	switch {
	case cls.EventType == TypeMarkPlayed:
		action, emoji = "标记为已播放", "✅"
	case cls.EventType == TypeMarkUnplayed:
		action, emoji = "标记为未播放", "🔄"
	case IsRating(cls.EventType):
		action, emoji = "评分", "⭐"
		if hasRating {
			action = "评分 " + rating
		}
	default:
		action, emoji = "标记了", "🏷️"
	}

	c["action"] = action
	c["mark_type"] = action
	c["mark_emoji"] = emoji
	c["media_type"] = mediaType
	c["item_name"] = itemName(item, name)
	c["overview"] = item.Raw().StringOr("Overview", NoOverview)
	if hasRating {
		c["vote_average"] = rating
	}
	c.Set("tmdbid", item.TmdbID)
	c.Set("imdbid", item.ImdbID)
}

func seasonEpisode(item *models.MediaItem) (string, string) {
	season, episode := "0", "0"
	if item.ParentIndexNumber != nil {
		season = models.Display(item.ParentIndexNumber)
	}
	if item.IndexNumber != nil {
		episode = models.Display(item.IndexNumber)
	}
	return season, episode
}

// episodeName formats "Series S1E2 - Title".
func episodeName(item *models.MediaItem, title string) string {
	series := item.Raw().StringOr("SeriesName", UnknownSeries)
	season, episode := seasonEpisode(item)
	return fmt.Sprintf("%s S%sE%s - %s", series, season, episode, title)
}

// itemName formats "Name (Year)".
func itemName(item *models.MediaItem, name string) string {
	return fmt.Sprintf("%s (%s)", name, item.Raw().StringOr("ProductionYear", UnknownYear))
}
