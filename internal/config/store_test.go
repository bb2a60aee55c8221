// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package config

import (
	"errors"
	"os"
	"reflect"
	"sync"
	"testing"
)

func TestStoreReload(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8001\n")
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	store := NewStore(cfg)

	if err := os.WriteFile(path, []byte("server:\n  port: 8002\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	next, err := store.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if next.Server.Port != 8002 || store.Current().Server.Port != 8002 {
		t.Errorf("port after reload = %d", store.Current().Server.Port)
	}
}

func TestStoreReloadFailureKeepsSnapshot(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8001\n")
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	store := NewStore(cfg)

	if err := os.WriteFile(path, []byte("server:\n  port: [not, a, port\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if store.Current() != cfg {
		t.Error("failed reload replaced the active snapshot")
	}
}

func TestStoreSnapshotIsStableForReaders(t *testing.T) {
	first := &Config{Server: ServerConfig{Port: 1}}
	n := 1
	store := NewStoreWithLoader(first, func(string) (*Config, error) {
		n++
		return &Config{Server: ServerConfig{Port: n}}, nil
	})

	held := store.Current()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Reload()
		}()
	}
	wg.Wait()

	if held.Server.Port != 1 {
		t.Errorf("held snapshot mutated: port %d", held.Server.Port)
	}
	if store.Current().Server.Port != 9 {
		t.Errorf("current port = %d, want 9 after 8 reloads", store.Current().Server.Port)
	}
}

func TestStoreReloadNilConfig(t *testing.T) {
	cfg := &Config{}
	store := NewStoreWithLoader(cfg, func(string) (*Config, error) { return nil, nil })
	if _, err := store.Reload(); err == nil {
		t.Error("expected error for nil config")
	}

	boom := errors.New("boom")
	store = NewStoreWithLoader(cfg, func(string) (*Config, error) { return nil, boom })
	if _, err := store.Reload(); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestChannelStatus(t *testing.T) {
	cfg := defaultConfig()

	tg := cfg.TelegramStatus()
	if tg.Enabled {
		t.Error("telegram without token should be disabled")
	}
	if !reflect.DeepEqual(tg.Missing, []string{"token", "admins/users"}) {
		t.Errorf("telegram missing = %v", tg.Missing)
	}

	cfg.Telegram.Token = "t"
	cfg.Telegram.Users = []string{"1"}
	if !cfg.TelegramStatus().Enabled {
		t.Error("telegram should be enabled")
	}

	wc := cfg.WeComStatus()
	if wc.Enabled || !reflect.DeepEqual(wc.Missing, []string{"corp_id", "secret", "agent_id"}) {
		t.Errorf("wecom status = %+v", wc)
	}

	cfg.Discord.WebhookURL = "https://discord.com/api/webhooks/1/x"
	if !cfg.DiscordStatus().Enabled {
		t.Errorf("discord status = %+v", cfg.DiscordStatus())
	}
}
