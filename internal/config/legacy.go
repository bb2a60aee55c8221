// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package config

import (
	"fmt"

	"github.com/knadh/koanf/v2"
)

// legacyKey describes one flat key from the older single-file config.yaml layout.
// Scalar keys were written as single-element lists (token: ["123:abc"]).
type legacyKey struct {
	from   string
	to     string
	scalar bool
}

var legacyKeys = []legacyKey{
	{from: "token", to: "telegram.token", scalar: true},
	{from: "admins", to: "telegram.admins"},
	{from: "users", to: "telegram.users"},
	{from: "emby-server", to: "emby.url", scalar: true},
	{from: "wecom_corp_id", to: "wecom.corp_id", scalar: true},
	{from: "wecom_secret", to: "wecom.secret", scalar: true},
	{from: "wecom_agent_id", to: "wecom.agent_id", scalar: true},
	{from: "wecom_proxy_url", to: "wecom.proxy_url", scalar: true},
	{from: "wecom_to_user", to: "wecom.to_user", scalar: true},
	{from: "discord_webhook_url", to: "discord.webhook_url", scalar: true},
	{from: "discord_username", to: "discord.username", scalar: true},
	{from: "discord_avatar_url", to: "discord.avatar_url", scalar: true},
	{from: "tmdb_api_key", to: "tmdb.api_key", scalar: true},
	{from: "tmdb_image_base_url", to: "tmdb.image_base_url", scalar: true},
}

// translateLegacyKeys rewrites flat keys into the nested layout. A legacy
// key wins over the default but the environment layer, loaded afterwards,
// still overrides it.
func translateLegacyKeys(k *koanf.Koanf) error {
	for _, lk := range legacyKeys {
		if !k.Exists(lk.from) {
			continue
		}
		v := k.Get(lk.from)
		if lk.scalar {
			v = unwrapSingle(v)
		}
		k.Delete(lk.from)
		if v == nil {
			continue
		}
		if err := k.Set(lk.to, v); err != nil {
			return fmt.Errorf("set %s from %s: %w", lk.to, lk.from, err)
		}
	}
	return nil
}

// unwrapSingle returns the first element of a list, or v unchanged when it
// is not a list. Empty lists become nil.
func unwrapSingle(v any) any {
	switch list := v.(type) {
	case []any:
		if len(list) == 0 {
			return nil
		}
		return list[0]
	case []string:
		if len(list) == 0 {
			return nil
		}
		return list[0]
	}
	return v
}
