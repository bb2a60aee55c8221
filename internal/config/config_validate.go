// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tomtom215/embynotify/internal/logging"
)

// Validate checks settings that would break the process. Incomplete channel
// settings are not errors; the channel is skipped at delivery time.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateURLs(); err != nil {
		return err
	}
	if err := c.validateGeo(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("HTTP_MAX_BODY_BYTES must be positive")
	}
	if c.Server.DeliveryTimeout <= 0 {
		return fmt.Errorf("HTTP_DELIVERY_TIMEOUT must be positive")
	}
	if c.Server.WriteTimeout > 0 && c.Server.DeliveryTimeout >= c.Server.WriteTimeout {
		return fmt.Errorf("HTTP_DELIVERY_TIMEOUT (%s) must be shorter than HTTP_WRITE_TIMEOUT (%s)",
			c.Server.DeliveryTimeout, c.Server.WriteTimeout)
	}
	return nil
}

// validateURLs rejects base URLs that cannot be requested. Empty optional
// URLs are allowed.
func (c *Config) validateURLs() error {
	checks := []struct {
		name     string
		value    string
		required bool
	}{
		{"emby.url", c.Emby.URL, false},
		{"telegram.api_url", c.Telegram.APIURL, true},
		{"wecom.proxy_url", c.WeCom.ProxyURL, true},
		{"wecom.card_url", c.WeCom.CardURL, false},
		{"discord.webhook_url", c.Discord.WebhookURL, false},
		{"tmdb.api_url", c.TMDB.APIURL, true},
		{"tmdb.image_base_url", c.TMDB.ImageBaseURL, true},
		{"geo.base_url", c.Geo.BaseURL, c.Geo.Enabled},
	}
	for _, chk := range checks {
		if chk.value == "" {
			if chk.required {
				return fmt.Errorf("%s is required", chk.name)
			}
			continue
		}
		if err := validateHTTPURL(chk.value); err != nil {
			return fmt.Errorf("%s: %w", chk.name, err)
		}
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}

func (c *Config) validateGeo() error {
	if c.Geo.Enabled && c.Geo.RequestsPerMinute <= 0 {
		return fmt.Errorf("GEO_REQUESTS_PER_MINUTE must be positive when geolocation is enabled")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console":
		return nil
	}
	return fmt.Errorf("LOG_FORMAT must be one of: json, console")
}
