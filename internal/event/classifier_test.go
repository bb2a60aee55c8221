// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package event

import (
	"errors"
	"testing"

	"github.com/tomtom215/embynotify/internal/models"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		eventType  string
		wantFamily models.Family
		wantAction string
	}{
		{"playback.start", models.FamilyPlayback, "开始播放"},
		{"playback.unpause", models.FamilyPlayback, "继续播放"},
		{"playback.progress", models.FamilyDefault, "playback.progress"},
		{"library.new", models.FamilyLibraryNew, ActionNewItem},
		{"library.deleted", models.FamilyDefault, "删除内容"},
		{"user.authenticated", models.FamilyLogin, "登录成功"},
		{"user.authenticationfailed", models.FamilyLogin, "登录失败"},
		{"item.markplayed", models.FamilyMarkOrRate, "标记已播放"},
		{"item.markfavorite", models.FamilyMarkOrRate, "item.markfavorite"},
		{"user.ratingchanged", models.FamilyMarkOrRate, "user.ratingchanged"},
		{"item.rate", models.FamilyMarkOrRate, "item.rate"},
		{"item.rated", models.FamilyDefault, "item.rated"},
		{"system.updateavailable", models.FamilyDefault, "系统更新可用"},
		{"device.offline", models.FamilyDefault, "设备离线"},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			t.Parallel()
			got := Classify(tt.eventType)
			if got.Family != tt.wantFamily {
				t.Errorf("Family = %q, want %q", got.Family, tt.wantFamily)
			}
			if got.Action != tt.wantAction {
				t.Errorf("Action = %q, want %q", got.Action, tt.wantAction)
			}
			if got.EventType != tt.eventType {
				t.Errorf("EventType = %q", got.EventType)
			}
		})
	}
}

func TestClassifyEventMissingEvent(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`{"Item":{"Type":"Movie"}}`, `{"Event":"  "}`, `{"Event":7}`} {
		if _, err := ClassifyEvent(mustDecode(t, body)); !errors.Is(err, ErrMissingEvent) {
			t.Errorf("ClassifyEvent(%s) err = %v, want ErrMissingEvent", body, err)
		}
	}

	cls, err := ClassifyEvent(mustDecode(t, `{"Event":" library.new "}`))
	if err != nil {
		t.Fatalf("ClassifyEvent: %v", err)
	}
	if cls.Family != models.FamilyLibraryNew {
		t.Errorf("Family = %q", cls.Family)
	}
}
