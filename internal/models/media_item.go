// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package models

// Item types reported by Emby in Item.Type.
const (
	ItemTypeMovie   = "Movie"
	ItemTypeEpisode = "Episode"
	ItemTypeAudio   = "Audio"
)

// MediaItem is a read-only view over the Item section of a webhook.
// Optional values keep their raw payload form (json.Number, string) so
// they render the way Emby sent them; nil means absent.
type MediaItem struct {
	ID         string // Emby item id, used for local image URLs
	Type       string // "Movie", "Episode", "Audio", ...
	SeriesName string

	ProductionYear    any // nil when absent
	ParentIndexNumber any // season number
	IndexNumber       any // episode number
	CommunityRating   any

	RunTimeTicks int64
	Size         int64

	TmdbID any // ProviderIds.Tmdb
	ImdbID any // ProviderIds.Imdb

	raw RawEvent
}

// ItemFromEvent returns the Item section, or false when it is missing or empty.
func ItemFromEvent(ev RawEvent) (*MediaItem, bool) {
	sec := ev.Section("Item")
	if len(sec) == 0 {
		return nil, false
	}

	item := &MediaItem{
		ID:                sec.String("Id"),
		Type:              sec.String("Type"),
		SeriesName:        sec.String("SeriesName"),
		ProductionYear:    sec["ProductionYear"],
		ParentIndexNumber: sec["ParentIndexNumber"],
		IndexNumber:       sec["IndexNumber"],
		CommunityRating:   sec["CommunityRating"],
		RunTimeTicks:      sec.Int64("RunTimeTicks"),
		Size:              sec.Int64("Size"),
		raw:               sec,
	}
	if ids := sec.Section("ProviderIds"); ids != nil {
		item.TmdbID = ids["Tmdb"]
		item.ImdbID = ids["Imdb"]
	}
	return item, true
}

// Raw exposes the underlying Item object for fields without an accessor.
func (m *MediaItem) Raw() RawEvent { return m.raw }

// IsEpisode reports whether the item is a TV episode.
func (m *MediaItem) IsEpisode() bool { return m.Type == ItemTypeEpisode }

// IsMovie reports whether the item is a film.
func (m *MediaItem) IsMovie() bool { return m.Type == ItemTypeMovie }

// Year returns the production year text, or "" when absent.
func (m *MediaItem) Year() string { return Display(m.ProductionYear) }

// TmdbIDString returns the TMDB id as text, or "".
func (m *MediaItem) TmdbIDString() string { return Display(m.TmdbID) }
