// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/embynotify/internal/render"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
// /config/config.yaml is where the container image mounts its volume.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/config/config.yaml",
	"/etc/embynotify/config.yaml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second, // delivery runs inside the request
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
			DeliveryTimeout: 75 * time.Second,
		},
		Telegram: TelegramConfig{
			APIURL: "https://api.telegram.org",
		},
		WeCom: WeComConfig{
			ToUser:   "@all",
			ProxyURL: "https://qyapi.weixin.qq.com",
		},
		Discord: DiscordConfig{
			Username: "Emby通知",
		},
		TMDB: TMDBConfig{
			APIURL:       "https://api.themoviedb.org",
			ImageBaseURL: "https://image.tmdb.org/t/p/original",
		},
		Geo: GeoConfig{
			Enabled:           true,
			BaseURL:           "http://ip-api.com/json",
			Lang:              "zh-CN",
			RequestsPerMinute: 45, // ip-api.com free tier
		},
		Cache: CacheConfig{
			TTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load finds the config file (CONFIG_PATH or DefaultConfigPaths) and loads it.
// A CONFIG_PATH that cannot be read is an error. When it is unset and no
// default path exists, defaults plus environment are used.
func Load() (*Config, error) {
	path, err := findConfigFile()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom builds a snapshot from defaults, the YAML file at path (skipped
// when path is empty), and environment variables, then validates it and
// compiles its templates.
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		if err := translateLegacyKeys(k); err != nil {
			return nil, fmt.Errorf("failed to translate legacy keys in %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.path = path
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	set, err := render.CompileSet(cfg.templateSources())
	if err != nil {
		return nil, err
	}
	cfg.templates = set
	return cfg, nil
}

// normalize trims values that are commonly pasted with stray whitespace or
// trailing slashes and fills the built-in default template.
func (c *Config) normalize() {
	c.Emby.URL = strings.TrimRight(strings.TrimSpace(c.Emby.URL), "/")
	c.Telegram.Token = strings.TrimSpace(c.Telegram.Token)
	c.Telegram.APIURL = strings.TrimRight(c.Telegram.APIURL, "/")
	c.WeCom.ProxyURL = strings.TrimRight(c.WeCom.ProxyURL, "/")
	c.TMDB.APIURL = strings.TrimRight(c.TMDB.APIURL, "/")
	c.TMDB.ImageBaseURL = strings.TrimRight(c.TMDB.ImageBaseURL, "/")
	c.Geo.BaseURL = strings.TrimRight(c.Geo.BaseURL, "/")
	c.Telegram.Admins = compact(c.Telegram.Admins)
	c.Telegram.Users = compact(c.Telegram.Users)

	if c.WeCom.ToUser == "" {
		c.WeCom.ToUser = "@all"
	}
	if c.WeCom.ProxyURL == "" {
		c.WeCom.ProxyURL = "https://qyapi.weixin.qq.com"
	}
	if c.Discord.Username == "" {
		c.Discord.Username = "Emby通知"
	}

	if c.NotificationTemplates == nil {
		c.NotificationTemplates = make(map[string]TemplateConfig)
	}
	if _, ok := c.NotificationTemplates[render.DefaultKey]; !ok {
		c.NotificationTemplates[render.DefaultKey] = DefaultTemplate()
	}
}

func (c *Config) templateSources() map[string]render.Source {
	out := make(map[string]render.Source, len(c.NotificationTemplates))
	for k, t := range c.NotificationTemplates {
		out[k] = render.Source{Title: t.Title, Text: t.Text}
	}
	return out
}

func compact(in []string) []string {
	out := in[:0:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func findConfigFile() (string, error) {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%s=%s: %w", ConfigPathEnvVar, p, err)
		}
		return p, nil
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// sliceConfigPaths accept comma-separated strings from the environment.
var sliceConfigPaths = []string{
	"telegram.admins",
	"telegram.users",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		vals := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				vals = append(vals, p)
			}
		}
		if err := k.Set(path, vals); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps upper-case environment variable names (lowercased) to
// koanf paths. Unmapped variables are ignored.
var envMappings = map[string]string{
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"http_max_body_bytes":   "server.max_body_bytes",
	"http_delivery_timeout": "server.delivery_timeout",

	"emby_url": "emby.url",

	"telegram_token":   "telegram.token",
	"telegram_admins":  "telegram.admins",
	"telegram_users":   "telegram.users",
	"telegram_api_url": "telegram.api_url",

	"wecom_corp_id":   "wecom.corp_id",
	"wecom_secret":    "wecom.secret",
	"wecom_agent_id":  "wecom.agent_id",
	"wecom_to_user":   "wecom.to_user",
	"wecom_proxy_url": "wecom.proxy_url",
	"wecom_card_url":  "wecom.card_url",

	"discord_webhook_url": "discord.webhook_url",
	"discord_username":    "discord.username",
	"discord_avatar_url":  "discord.avatar_url",

	"tmdb_api_key":        "tmdb.api_key",
	"tmdb_api_url":        "tmdb.api_url",
	"tmdb_image_base_url": "tmdb.image_base_url",

	"geo_enabled":             "geo.enabled",
	"geo_base_url":            "geo.base_url",
	"geo_lang":                "geo.lang",
	"geo_requests_per_minute": "geo.requests_per_minute",

	"cache_dir": "cache.dir",
	"cache_ttl": "cache.ttl",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"config_watch": "watch",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// WatchConfigFile calls onChange whenever the file at path changes. The
// returned stop function ends the watch.
func WatchConfigFile(path string, onChange func(), onError func(error)) (stop func() error, err error) {
	provider := file.Provider(path)
	err = provider.Watch(func(_ interface{}, werr error) {
		if werr != nil {
			if onError != nil {
				onError(werr)
			}
			return
		}
		onChange()
	})
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	return provider.Unwatch, nil
}
