// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package event

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tomtom215/embynotify/internal/models"
	"github.com/tomtom215/embynotify/internal/render"
)

// TimeLayout is the timestamp format used in notifications.
const TimeLayout = "2006-01-02 15:04:05"

// Beijing is the fixed UTC+8 zone notification timestamps are shown in.
var Beijing = time.FixedZone("UTC+8", 8*60*60)

// LocalTime formats t in UTC+8.
func LocalTime(t time.Time) string {
	return t.In(Beijing).Format(TimeLayout)
}

// Percentage returns floor(position/runtime*100), or 0 when runtime is not
// positive. Ticks are 100ns units but only the ratio matters.
func Percentage(positionTicks, runtimeTicks int64) int {
	if runtimeTicks <= 0 || positionTicks <= 0 {
		return 0
	}
	return int(float64(positionTicks) / float64(runtimeTicks) * 100)
}

// FormatSize renders a byte count as "1.5 GiB". Non-positive sizes yield "".
func FormatSize(size int64) string {
	if size <= 0 {
		return ""
	}
	return humanize.IBytes(uint64(size))
}

// FormatRating renders a rating as "8.5/10" when it parses as a number and
// as the raw text otherwise. ok is false for an empty or zero rating.
func FormatRating(v any) (string, bool) {
	if !render.Truthy(v) {
		return "", false
	}
	text := strings.TrimSpace(models.Display(v))
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return fmt.Sprintf("%.1f/10", f), true
	}
	return text, true
}

// FirstToken returns the first whitespace-separated word of s, or s.
func FirstToken(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return s
}
