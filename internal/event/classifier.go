// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

// Package event turns a raw Emby webhook into a classification and the
// template variables for it.
package event

import (
	"strings"

	"github.com/tomtom215/embynotify/internal/models"
)

// Emby event types with special handling.
const (
	TypePlaybackStart   = "playback.start"
	TypePlaybackStop    = "playback.stop"
	TypePlaybackPause   = "playback.pause"
	TypePlaybackUnpause = "playback.unpause"
	TypeLibraryNew      = "library.new"
	TypeLoginSuccess    = "user.authenticated"
	TypeLoginFailure    = "user.authenticationfailed"
	TypeMarkPlayed      = "item.markplayed"
	TypeMarkUnplayed    = "item.markunplayed"
	TypeItemRate        = "item.rate"
)

// ActionNewItem labels library.new; the default title template keys its
// new-item markers on it.
const ActionNewItem = "新入库"

var actionLabels = map[string]string{
	TypePlaybackStart:              "开始播放",
	TypePlaybackStop:               "停止播放",
	TypePlaybackPause:              "暂停播放",
	TypePlaybackUnpause:            "继续播放",
	TypeLibraryNew:                 ActionNewItem,
	"library.deleted":              "删除内容",
	TypeMarkUnplayed:               "标记未播放",
	TypeMarkPlayed:                 "标记已播放",
	"system.updateavailable":       "系统更新可用",
	"system.serverrestartrequired": "需要重启服务器",
	TypeLoginFailure:               "登录失败",
	TypeLoginSuccess:               "登录成功",
	"plugins.pluginuninstalled":    "插件卸载",
	"plugins.plugininstalled":      "插件安装",
	"device.online":                "设备上线",
	"device.offline":               "设备离线",
}

// ActionLabel returns the localized label, or eventType itself when unknown.
func ActionLabel(eventType string) string {
	if label, ok := actionLabels[eventType]; ok {
		return label
	}
	return eventType
}

// Classify assigns eventType to a family. Rules are checked in order.
func Classify(eventType string) models.Classification {
	c := models.Classification{
		EventType: eventType,
		Action:    ActionLabel(eventType),
		Family:    models.FamilyDefault,
	}

	switch {
	case isPlayback(eventType):
		c.Family = models.FamilyPlayback
	case eventType == TypeLibraryNew:
		c.Family = models.FamilyLibraryNew
	case eventType == TypeLoginSuccess || eventType == TypeLoginFailure:
		c.Family = models.FamilyLogin
	case IsMarkOrRate(eventType):
		c.Family = models.FamilyMarkOrRate
	}
	return c
}

// ClassifyEvent classifies ev. It returns ErrMissingEvent when the payload
// has no Event field.
func ClassifyEvent(ev models.RawEvent) (models.Classification, error) {
	et := ev.EventType()
	if et == "" {
		return models.Classification{}, ErrMissingEvent
	}
	return Classify(et), nil
}

func isPlayback(t string) bool {
	switch t {
	case TypePlaybackStart, TypePlaybackStop, TypePlaybackPause, TypePlaybackUnpause:
		return true
	}
	return false
}

// IsMarkOrRate matches item.mark*, user.rating* and item.rate.
func IsMarkOrRate(t string) bool {
	return strings.HasPrefix(t, "item.mark") || strings.HasPrefix(t, "user.rating") || t == TypeItemRate
}

// IsRating matches the rating subset of the mark-or-rate family.
func IsRating(t string) bool {
	return strings.HasPrefix(t, "user.rating") || t == TypeItemRate
}
