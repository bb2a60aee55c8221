// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package logging

import (
	"fmt"
	"net/url"
	"strings"
)

// maxLoggedValue caps attacker-controlled strings copied into log entries.
const maxLoggedValue = 256

// Sanitize escapes control characters and truncates s so webhook-supplied
// values cannot forge log lines.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	n := 0
	for _, r := range s {
		if n >= maxLoggedValue {
			b.WriteString("...")
			break
		}
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
		n++
	}
	return b.String()
}

// secretParams are query parameters stripped by RedactURL.
var secretParams = []string{"api_key", "corpsecret", "access_token", "token"}

// RedactURL masks credentials carried in query strings and in the Telegram
// bot path segment (/bot<token>/).
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	q := u.Query()
	for _, p := range secretParams {
		if q.Has(p) {
			q.Set(p, "REDACTED")
		}
	}
	u.RawQuery = q.Encode()
	if i := strings.Index(u.Path, "/bot"); i >= 0 {
		rest := u.Path[i+4:]
		if j := strings.Index(rest, "/"); j >= 0 {
			u.Path = u.Path[:i] + "/botREDACTED" + rest[j:]
		} else {
			u.Path = u.Path[:i] + "/botREDACTED"
		}
	}
	return u.String()
}
