// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package models

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// ============================================================================
// Emby Webhook Payload
// ============================================================================
// Emby posts one JSON object per event. The shape varies by event family and
// server version: the device name can live at the top level or under
// Session/Device, the client address under Session, PlaybackInfo, Server or
// Request. RawEvent keeps the payload untyped and Probe describes where to
// look for a value.

// ErrNotObject is returned by DecodeRawEvent for JSON that is not an object.
var ErrNotObject = errors.New("payload is not a JSON object")

// RawEvent is a decoded webhook body. Numbers are json.Number so the text
// the server sent ("2024", "7.0") is preserved. Treat it as read-only.
type RawEvent map[string]any

// DecodeRawEvent parses a webhook body.
func DecodeRawEvent(body []byte) (RawEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return RawEvent(obj), nil
}

// EventType returns the Event field ("playback.start", "library.new", ...).
func (e RawEvent) EventType() string {
	s, _ := e["Event"].(string)
	return strings.TrimSpace(s)
}

// Section returns a nested object, or nil when it is absent or not an object.
func (e RawEvent) Section(name string) RawEvent {
	m, _ := e[name].(map[string]any)
	return m
}

// Lookup returns the raw value at key and whether the key was present.
func (e RawEvent) Lookup(key string) (any, bool) {
	v, ok := e[key]
	return v, ok
}

// String returns the value at key when it is a string.
func (e RawEvent) String(key string) string {
	s, _ := e[key].(string)
	return s
}

// StringOr returns def when key is absent or null.
// A present non-string value is formatted.
func (e RawEvent) StringOr(key, def string) string {
	v, ok := e[key]
	if !ok || v == nil {
		return def
	}
	return Display(v)
}

// Int64 reads an integral number. Missing or malformed values yield 0.
func (e RawEvent) Int64(key string) int64 {
	return toInt64(e[key])
}

// Probe reads one candidate location from an event.
type Probe func(RawEvent) (any, bool)

// Path builds a probe that walks nested objects: Path("Session", "DeviceName").
func Path(keys ...string) Probe {
	return func(ev RawEvent) (any, bool) {
		cur := map[string]any(ev)
		for i, k := range keys {
			v, ok := cur[k]
			if !ok {
				return nil, false
			}
			if i == len(keys)-1 {
				return v, true
			}
			next, ok := v.(map[string]any)
			if !ok {
				return nil, false
			}
			cur = next
		}
		return nil, false
	}
}

// FirstString returns the first probe result that is a non-empty string.
func FirstString(ev RawEvent, probes ...Probe) (string, bool) {
	for _, p := range probes {
		v, ok := p(ev)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

// Display formats a payload value for interpolation into text.
func Display(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func toInt64(v any) int64 {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return int64(f)
		}
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return i
		}
	}
	return 0
}
