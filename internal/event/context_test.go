// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/embynotify/internal/models"
)

type stubGeo struct {
	mu    sync.Mutex
	calls []string
	loc   string
}

func (s *stubGeo) ResolveLocation(_ context.Context, ip string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, ip)
	return s.loc
}

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func build(t *testing.T, geo LocationResolver, body string) (models.EventContext, *models.MediaItem, error) {
	t.Helper()
	ev := mustDecode(t, body)
	cls, err := ClassifyEvent(ev)
	if err != nil {
		t.Fatalf("ClassifyEvent: %v", err)
	}
	return NewBuilder(geo).WithClock(func() time.Time { return fixedNow }).Build(context.Background(), ev, cls)
}

func TestBuildMissingItem(t *testing.T) {
	t.Parallel()

	for _, body := range []string{
		`{"Event":"playback.start"}`,
		`{"Event":"library.new","Item":{}}`,
		`{"Event":"item.markplayed","Item":null}`,
	} {
		geo := &stubGeo{loc: "somewhere"}
		for i := 0; i < 2; i++ {
			c, item, err := build(t, geo, body)
			if !errors.Is(err, ErrMissingItem) {
				t.Errorf("%s: err = %v, want ErrMissingItem", body, err)
			}
			if c != nil || item != nil {
				t.Errorf("%s: expected no context", body)
			}
		}
		if len(geo.calls) != 0 {
			t.Errorf("%s: geo called %d times for an incomplete event", body, len(geo.calls))
		}
	}
}

func TestBuildBaseContext(t *testing.T) {
	t.Parallel()

	geo := &stubGeo{loc: "上海市 上海"}
	c, item, err := build(t, geo, `{"Event":"system.updateavailable","Session":{"RemoteEndPoint":"192.168.1.5:8096"}}`)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if item != nil {
		t.Error("default family should not carry an item")
	}

	want := map[string]any{
		"action":      "系统更新可用",
		"user_name":   UnknownUser,
		"now_time":    "2026-01-02 11:04:05",
		"ip_address":  "192.168.1.5",
		"device_name": UnknownDevice,
		"client":      UnknownDevice,
		"ip_location": "上海市 上海",
	}
	for k, v := range want {
		if c[k] != v {
			t.Errorf("%s = %v, want %v", k, c[k], v)
		}
	}
	if len(geo.calls) != 1 || geo.calls[0] != "192.168.1.5" {
		t.Errorf("geo calls = %v", geo.calls)
	}
}

func TestBuildNoIPSkipsGeo(t *testing.T) {
	t.Parallel()

	geo := &stubGeo{loc: "x"}
	c, _, err := build(t, geo, `{"Event":"device.online"}`)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c["ip_location"]; ok {
		t.Error("ip_location should be absent")
	}
	if len(geo.calls) != 0 {
		t.Errorf("geo calls = %v", geo.calls)
	}
}

func TestBuildPlayback(t *testing.T) {
	t.Parallel()

	body := `{
		"Event":"playback.stop",
		"User":{"Name":"alice"},
		"Session":{"DeviceName":"Shield"},
		"PlaybackInfo":{"PositionTicks":300000000,"VideoQuality":"1080p"},
		"Item":{
			"Type":"Episode","Name":"Pilot","SeriesName":"Show",
			"ParentIndexNumber":1,"IndexNumber":2,"ProductionYear":2024,
			"RunTimeTicks":6000000000,"CommunityRating":7.0,
			"ProviderIds":{"Tmdb":"123","Imdb":"tt1"}
		}
	}`
	c, item, err := build(t, nil, body)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if item == nil || !item.IsEpisode() {
		t.Fatal("expected episode item")
	}

	checks := map[string]string{
		"media_type":       MediaTypeSeries,
		"item_name":        "Show S1E2 - Pilot (2024)",
		"season_episode":   "S1E2",
		"overview":         NoOverview,
		"user_name":        "alice",
		"resource_quality": "1080p",
		"tmdbid":           "123",
		"imdbid":           "tt1",
		"vote_average":     "7.0",
	}
	for k, want := range checks {
		if got := models.Display(c[k]); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
	if c["percentage"] != 5 {
		t.Errorf("percentage = %v, want 5", c["percentage"])
	}
}

func TestBuildPlaybackOptionalFieldsAbsent(t *testing.T) {
	t.Parallel()

	c, _, err := build(t, nil, `{"Event":"playback.start","Item":{"Type":"Movie","Name":"Film","RunTimeTicks":6000000000},"PlaybackInfo":{"PositionTicks":0}}`)
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"percentage", "vote_average", "tmdbid", "imdbid", "resource_quality", "ip_location"} {
		if _, ok := c[k]; ok {
			t.Errorf("%s should be absent, got %v", k, c[k])
		}
	}
	if c["media_type"] != MediaTypeMovie || c["item_name"] != "Film (未知年份)" || c["season_episode"] != "" {
		t.Errorf("unexpected context %v", c)
	}
}

func TestBuildLibraryNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		item      string
		mediaType string
		itemName  string
		size      string
	}{
		{"movie", `{"Type":"Movie","Name":"Example Film","ProductionYear":2024,"Size":1610612736}`, MediaTypeMovie, "Example Film (2024)", "1.5 GiB"},
		{"episode", `{"Type":"Episode","Name":"E","ParentIndexNumber":3,"IndexNumber":4}`, MediaTypeSeries, "未知剧集 S3E4 - E (未知年份)", ""},
		{"audio", `{"Type":"Audio","Name":"Book"}`, MediaTypeAudio, "Book (未知年份)", ""},
		{"literal type", `{"Type":"MusicAlbum","Name":"LP"}`, "MusicAlbum", "LP (未知年份)", ""},
		{"no type", `{"Name":"Thing","Size":0}`, UnknownMedium, "Thing (未知年份)", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, _, err := build(t, nil, `{"Event":"library.new","Item":`+tt.item+`}`)
			if err != nil {
				t.Fatal(err)
			}
			if c["media_type"] != tt.mediaType {
				t.Errorf("media_type = %v, want %q", c["media_type"], tt.mediaType)
			}
			if c["item_name"] != tt.itemName {
				t.Errorf("item_name = %v, want %q", c["item_name"], tt.itemName)
			}
			got, _ := c["total_size"].(string)
			if got != tt.size {
				t.Errorf("total_size = %q, want %q", got, tt.size)
			}
			if c["action"] != ActionNewItem {
				t.Errorf("action = %v", c["action"])
			}
		})
	}
}

func TestBuildLogin(t *testing.T) {
	t.Parallel()

	c, item, err := build(t, nil, `{"Event":"user.authenticationfailed","DeviceName":"Emby Web 4.8","RemoteEndPoint":"10.0.0.7"}`)
	if err != nil {
		t.Fatal(err)
	}
	if item != nil {
		t.Error("login should not carry an item")
	}
	if c["client"] != "Emby" || c["device_name"] != "Emby Web 4.8" {
		t.Errorf("client = %v device_name = %v", c["client"], c["device_name"])
	}
	if c["ip_address"] != "10.0.0.7" || c["action"] != "登录失败" {
		t.Errorf("unexpected context %v", c)
	}
}

func TestBuildMarkOrRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantAction string
		wantEmoji  string
		wantRating any
	}{
		{
			name:       "played",
			body:       `{"Event":"item.markplayed","Item":{"Type":"Movie","Name":"F"}}`,
			wantAction: "标记为已播放",
			wantEmoji:  "✅",
		},
		{
			name:       "unplayed",
			body:       `{"Event":"item.markunplayed","Item":{"Type":"Movie","Name":"F"}}`,
			wantAction: "标记为未播放",
			wantEmoji:  "🔄",
		},
		{
			name:       "rated from item",
			body:       `{"Event":"item.rate","Item":{"Type":"Movie","Name":"F","CommunityRating":8.46}}`,
			wantAction: "评分 8.5/10",
			wantEmoji:  "⭐",
			wantRating: "8.5/10",
		},
		{
			name:       "rated from top level",
			body:       `{"Event":"user.ratingchanged","Rating":"7","Item":{"Type":"Movie","Name":"F","CommunityRating":0}}`,
			wantAction: "评分 7.0/10",
			wantEmoji:  "⭐",
			wantRating: "7.0/10",
		},
		{
			name:       "literal rating",
			body:       `{"Event":"item.rate","Rating":"liked","Item":{"Type":"Movie","Name":"F"}}`,
			wantAction: "评分 liked",
			wantEmoji:  "⭐",
			wantRating: "liked",
		},
		{
			name:       "rated without score",
			body:       `{"Event":"item.rate","Item":{"Type":"Movie","Name":"F"}}`,
			wantAction: "评分",
			wantEmoji:  "⭐",
		},
		{
			name:       "generic mark",
			body:       `{"Event":"item.markfavorite","Item":{"Type":"Movie","Name":"F"}}`,
			wantAction: "标记了",
			wantEmoji:  "🏷️",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, _, err := build(t, nil, tt.body)
			if err != nil {
				t.Fatal(err)
			}
			if c["action"] != tt.wantAction || c["mark_type"] != tt.wantAction {
				t.Errorf("action = %v mark_type = %v, want %q", c["action"], c["mark_type"], tt.wantAction)
			}
			if c["mark_emoji"] != tt.wantEmoji {
				t.Errorf("mark_emoji = %v, want %q", c["mark_emoji"], tt.wantEmoji)
			}
			if got, ok := c["vote_average"]; tt.wantRating == nil && ok {
				t.Errorf("vote_average = %v, want absent", got)
			} else if tt.wantRating != nil && got != tt.wantRating {
				t.Errorf("vote_average = %v, want %v", got, tt.wantRating)
			}
		})
	}
}

func TestFormatHelpers(t *testing.T) {
	t.Parallel()

	if got := Percentage(300000000, 6000000000); got != 5 {
		t.Errorf("Percentage = %d, want 5", got)
	}
	if got := Percentage(10, 0); got != 0 {
		t.Errorf("Percentage with zero runtime = %d", got)
	}
	if got := FormatSize(1024); got != "1.0 KiB" {
		t.Errorf("FormatSize(1024) = %q", got)
	}
	if got := FormatSize(-1); got != "" {
		t.Errorf("FormatSize(-1) = %q", got)
	}
	if got := FirstToken("  Emby  Web "); got != "Emby" {
		t.Errorf("FirstToken = %q", got)
	}
	if got := FirstToken(""); got != "" {
		t.Errorf("FirstToken(\"\") = %q", got)
	}
	if _, ok := FormatRating(""); ok {
		t.Error("empty rating should be absent")
	}
	if got := LocalTime(fixedNow); got != "2026-01-02 11:04:05" {
		t.Errorf("LocalTime = %q", got)
	}
}
