// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

// Package config loads and validates the relay configuration.
//
// Configuration is layered with koanf: struct defaults, then a YAML file,
// then environment variables. Older deployments that use flat, list-wrapped
// keys (token: ["..."], emby-server: [...]) are translated into the nested layout below before unmarshalling.
//
//	server:
//	  port: 5000
//	emby:
//	  url: http://emby:8096
//	telegram:
//	  token: "123:abc"
//	  admins: [1111]
//	wecom:
//	  corp_id: ww...
//	notification_templates:
//	  default:
//	    title: "{{ action }} {{ item_name }}"
//	    text: "..."
//
// A loaded Config is an immutable snapshot; see Store for swapping it at
// runtime.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/embynotify/internal/render"
	"github.com/tomtom215/embynotify/internal/validation"
)

// Config is one immutable configuration snapshot.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Emby     EmbyConfig     `koanf:"emby"`
	Telegram TelegramConfig `koanf:"telegram"`
	WeCom    WeComConfig    `koanf:"wecom"`
	Discord  DiscordConfig  `koanf:"discord"`
	TMDB     TMDBConfig     `koanf:"tmdb"`
	Geo      GeoConfig      `koanf:"geo"`
	Cache    CacheConfig    `koanf:"cache"`
	Logging  LoggingConfig  `koanf:"logging"`

	// Watch reloads the snapshot when the config file changes.
	Watch bool `koanf:"watch"`

	// NotificationTemplates maps template keys (playback, library, login,
	// mark, default) to title/text sources. The built-in default is added
	// when the file has no "default" entry.
	NotificationTemplates map[string]TemplateConfig `koanf:"notification_templates,omitempty"`

	path      string
	templates *render.Set
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`

	// DeliveryTimeout bounds the whole delivery of one webhook, retries
	// included. It must stay below WriteTimeout so the response is written.
	DeliveryTimeout time.Duration `koanf:"delivery_timeout"`
}

// EmbyConfig points at the media server, used for local poster fallbacks.
type EmbyConfig struct {
	URL string `koanf:"url" validate:"omitempty,http_url"`
}

// TelegramConfig configures the bot-chat channel.
type TelegramConfig struct {
	Token  string   `koanf:"token" validate:"required"`
	Admins []string `koanf:"admins"`
	Users  []string `koanf:"users"`
	APIURL string   `koanf:"api_url" validate:"required,http_url"`
}

// Recipients returns admins followed by users.
func (t TelegramConfig) Recipients() []string {
	out := make([]string, 0, len(t.Admins)+len(t.Users))
	out = append(out, t.Admins...)
	return append(out, t.Users...)
}

// WeComConfig configures the enterprise-IM channel.
type WeComConfig struct {
	CorpID   string `koanf:"corp_id" validate:"required"`
	Secret   string `koanf:"secret" validate:"required"`
	AgentID  string `koanf:"agent_id" validate:"required"`
	ToUser   string `koanf:"to_user" validate:"required"`
	ProxyURL string `koanf:"proxy_url" validate:"required,http_url"`
	CardURL  string `koanf:"card_url"`
}

// DiscordConfig configures the community webhook channel.
type DiscordConfig struct {
	WebhookURL string `koanf:"webhook_url" validate:"required,http_url"`
	Username   string `koanf:"username"`
	AvatarURL  string `koanf:"avatar_url" validate:"omitempty,http_url"`
}

// TMDBConfig configures poster lookups. An empty APIKey disables TMDB and
// posters come from Emby only.
type TMDBConfig struct {
	APIKey       string `koanf:"api_key"`
	APIURL       string `koanf:"api_url"`
	ImageBaseURL string `koanf:"image_base_url"`
}

// GeoConfig configures IP geolocation through ip-api.com.
type GeoConfig struct {
	Enabled           bool   `koanf:"enabled"`
	BaseURL           string `koanf:"base_url"`
	Lang              string `koanf:"lang"`
	RequestsPerMinute int    `koanf:"requests_per_minute"`
}

// CacheConfig configures the metadata cache. An empty Dir keeps it in memory.
type CacheConfig struct {
	Dir string        `koanf:"dir"`
	TTL time.Duration `koanf:"ttl"`
}

// LoggingConfig is passed to logging.Init.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// TemplateConfig is one title/text template pair.
type TemplateConfig struct {
	Title string `koanf:"title"`
	Text  string `koanf:"text"`
}

// Path returns the file this snapshot was loaded from, or "" for env-only.
func (c *Config) Path() string { return c.path }

// Templates returns the compiled notification templates.
func (c *Config) Templates() *render.Set { return c.templates }

// ChannelStatus reports whether a channel config is complete. Missing lists
// the config keys that are empty or invalid.
type ChannelStatus struct {
	Name    string
	Enabled bool
	Missing []string
}

// TelegramStatus checks the bot-chat channel.
func (c *Config) TelegramStatus() ChannelStatus { return c.Telegram.Status() }

// WeComStatus checks the enterprise-IM channel.
func (c *Config) WeComStatus() ChannelStatus { return c.WeCom.Status() }

// DiscordStatus checks the community webhook channel.
func (c *Config) DiscordStatus() ChannelStatus { return c.Discord.Status() }

// Status reports whether the bot token and at least one chat id are set.
func (t TelegramConfig) Status() ChannelStatus {
	st := channelStatus("telegram", t)
	if len(t.Recipients()) == 0 {
		st.Enabled = false
		st.Missing = append(st.Missing, "admins/users")
	}
	return st
}

// Status reports whether corp id, secret, agent id and target are set.
func (w WeComConfig) Status() ChannelStatus { return channelStatus("wecom", w) }

// Status reports whether a webhook URL is set.
func (d DiscordConfig) Status() ChannelStatus { return channelStatus("discord", d) }

// Err returns nil when the channel is enabled.
func (s ChannelStatus) Err() error {
	if s.Enabled {
		return nil
	}
	return fmt.Errorf("%s: missing %s", s.Name, strings.Join(s.Missing, ", "))
}

func channelStatus(name string, cfg any) ChannelStatus {
	err := validation.Struct(cfg)
	if err == nil {
		return ChannelStatus{Name: name, Enabled: true}
	}
	st := ChannelStatus{Name: name}
	if ve, ok := err.(validation.Errors); ok {
		st.Missing = ve.Fields()
	} else {
		st.Missing = []string{err.Error()}
	}
	return st
}
