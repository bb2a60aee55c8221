// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package event

import (
	"regexp"
	"strings"

	"github.com/tomtom215/embynotify/internal/models"
)

// UnknownDevice is the device name used when no candidate field is set.
const UnknownDevice = "未知设备"

// deviceProbes are tried in order; the first non-empty string wins.
var deviceProbes = []models.Probe{
	models.Path("Client"),
	models.Path("DeviceName"),
	models.Path("Session", "DeviceName"),
	models.Path("Device", "DeviceName"),
}

// addressProbes are the places Emby versions have put the client address.
var addressProbes = []models.Probe{
	models.Path("RemoteEndPoint"),
	models.Path("Session", "RemoteEndPoint"),
	models.Path("PlaybackInfo", "RemoteEndPoint"),
	models.Path("Device", "RemoteEndPoint"),
	models.Path("Server", "RemoteAddress"),
	models.Path("Request", "RemoteAddress"),
}

// ipv4Pattern accepts four dotted groups of 1-3 digits. Octet ranges are
// not checked, so 999.1.1.1 passes; the geo lookup rejects it later.
var ipv4Pattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)

// ExtractDevice finds the client device name and IPv4 address.
func ExtractDevice(ev models.RawEvent) models.DeviceInfo {
	info := models.DeviceInfo{Name: UnknownDevice}
	if name, ok := models.FirstString(ev, deviceProbes...); ok {
		info.Name = name
	}
	info.IP = extractIP(ev)
	return info
}

func extractIP(ev models.RawEvent) string {
	for _, probe := range addressProbes {
		v, ok := probe(ev)
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if host, _, found := strings.Cut(strings.TrimSpace(s), ":"); found {
			s = host
		} else {
			s = strings.TrimSpace(s)
		}
		if ipv4Pattern.MatchString(s) {
			return s
		}
	}
	return ""
}
