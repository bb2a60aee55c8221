// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package models

// ============================================================================
// Classification and Rendered Output
// ============================================================================

// Family groups event types that share context fields and a template.
type Family string

const (
	FamilyPlayback   Family = "playback"
	FamilyLibraryNew Family = "library-new"
	FamilyLogin      Family = "login"
	FamilyMarkOrRate Family = "mark-or-rate"
	FamilyDefault    Family = "default"
)

// TemplateKey returns the notification_templates key used for the family.
func (f Family) TemplateKey() string {
	switch f {
	case FamilyPlayback:
		return "playback"
	case FamilyLibraryNew:
		return "library"
	case FamilyLogin:
		return "login"
	case FamilyMarkOrRate:
		return "mark"
	default:
		return "default"
	}
}

// WantsImage reports whether messages of this family carry a poster.
func (f Family) WantsImage() bool {
	switch f {
	case FamilyPlayback, FamilyLibraryNew, FamilyMarkOrRate:
		return true
	}
	return false
}

// Classification is the outcome of classifying an event type.
type Classification struct {
	EventType string // raw Event field
	Family    Family
	Action    string // localized label, or EventType when unknown
}

// DeviceInfo is what the field extractor finds about the client.
type DeviceInfo struct {
	Name string // never empty; "未知设备" when nothing matched
	IP   string // empty when no candidate held an IPv4 address
}

// EventContext is the flat variable map templates render against.
// Optional fields that resolved to nothing are left out entirely.
type EventContext map[string]any

// Set stores v unless it is nil.
func (c EventContext) Set(key string, v any) {
	if v == nil {
		return
	}
	c[key] = v
}

// RenderedMessage is the channel-agnostic notification for one event.
type RenderedMessage struct {
	EventType string `json:"event_type"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	ImageURL  string `json:"image_url,omitempty"`
}

// Deliverable reports whether the message has a body to send.
func (m *RenderedMessage) Deliverable() bool {
	return m != nil && m.Body != ""
}
