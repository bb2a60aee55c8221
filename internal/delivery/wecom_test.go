// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package delivery

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/embynotify/internal/config"
	"github.com/tomtom215/embynotify/internal/models"
)

// wecomAPI fakes gettoken and message/send. Replies are consumed in order;
// the last one repeats.
type wecomAPI struct {
	mu         sync.Mutex
	tokenCalls int
	sendCalls  int
	tokens     []string
	sends      []string
	sent       []map[string]any
	sendQuery  []string
	tokenQuery []string
}

func pick(replies []string, n int) string {
	if n >= len(replies) {
		return replies[len(replies)-1]
	}
	return replies[n]
}

func newWeComAPI(t *testing.T, tokens, sends []string) (*wecomAPI, string) {
	t.Helper()
	api := &wecomAPI{tokens: tokens, sends: sends}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		defer api.mu.Unlock()
		switch r.URL.Path {
		case "/cgi-bin/gettoken":
			api.tokenQuery = append(api.tokenQuery, r.URL.RawQuery)
			_, _ = io.WriteString(w, pick(api.tokens, api.tokenCalls))
			api.tokenCalls++
		case "/cgi-bin/message/send":
			raw, _ := io.ReadAll(r.Body)
			var body map[string]any
			_ = json.Unmarshal(raw, &body)
			api.sent = append(api.sent, body)
			api.sendQuery = append(api.sendQuery, r.URL.Query().Get("access_token"))
			_, _ = io.WriteString(w, pick(api.sends, api.sendCalls))
			api.sendCalls++
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return api, srv.URL
}

func wecomConfig(proxy string) config.WeComConfig {
	return config.WeComConfig{CorpID: "corp", Secret: "sec", AgentID: "1000002", ToUser: "@all", ProxyURL: proxy}
}

const (
	tokenOK = `{"errcode":0,"errmsg":"ok","access_token":"tok-1","expires_in":7200}`
	sendOK  = `{"errcode":0,"errmsg":"ok"}`
)

func TestWeComTextCard(t *testing.T) {
	api, base := newWeComAPI(t, []string{tokenOK}, []string{sendOK})
	ch := NewWeComChannel(wecomConfig(base), "http://emby.local:8096")

	results, err := ch.Send(context.Background(), &models.RenderedMessage{Title: "T", Body: "a\nb"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !results[0].Success || results[0].Attempts != 1 {
		t.Fatalf("result = %+v", results[0])
	}
	if api.sendQuery[0] != "tok-1" {
		t.Errorf("access_token = %q", api.sendQuery[0])
	}
	if api.tokenQuery[0] != "corpid=corp&corpsecret=sec" {
		t.Errorf("gettoken query = %q", api.tokenQuery[0])
	}

	body := api.sent[0]
	if body["msgtype"] != "textcard" || body["touser"] != "@all" || body["agentid"] != float64(1000002) {
		t.Errorf("body = %v", body)
	}
	card, _ := body["textcard"].(map[string]any)
	if card["description"] != "a<br>b" || card["btntxt"] != "详情" || card["url"] != "http://emby.local:8096" {
		t.Errorf("textcard = %v", card)
	}
	if _, ok := body["news"]; ok {
		t.Error("textcard message carries news")
	}
}

func TestWeComNewsWithImage(t *testing.T) {
	api, base := newWeComAPI(t, []string{tokenOK}, []string{sendOK})
	ch := NewWeComChannel(wecomConfig(base), "")

	img := "https://image.tmdb.org/t/p/original/p.jpg"
	if _, err := ch.Send(context.Background(), &models.RenderedMessage{Title: "T", Body: "a\nb", ImageURL: img}); err != nil {
		t.Fatal(err)
	}
	news, _ := api.sent[0]["news"].(map[string]any)
	articles, _ := news["articles"].([]any)
	if api.sent[0]["msgtype"] != "news" || len(articles) != 1 {
		t.Fatalf("body = %v", api.sent[0])
	}
	art := articles[0].(map[string]any)
	if art["url"] != img || art["picurl"] != img || art["description"] != "a\nb" {
		t.Errorf("article = %v", art)
	}
}

func TestWeComRetriesOnErrcode(t *testing.T) {
	tests := []struct {
		name      string
		tokens    []string
		sends     []string
		wantOK    bool
		wantToken int
		wantSend  int
	}{
		{
			name:      "token failure then success",
			tokens:    []string{`{"errcode":40013,"errmsg":"invalid corpid"}`, tokenOK},
			sends:     []string{sendOK},
			wantOK:    true,
			wantToken: 2,
			wantSend:  1,
		},
		{
			name:      "send failure then success",
			tokens:    []string{tokenOK},
			sends:     []string{`{"errcode":45009,"errmsg":"api freq out of limit"}`, sendOK},
			wantOK:    true,
			wantToken: 2,
			wantSend:  2,
		},
		{
			name:      "exhausted after two attempts",
			tokens:    []string{tokenOK},
			sends:     []string{`{"errcode":60020,"errmsg":"not allow to access from your ip"}`},
			wantToken: 2,
			wantSend:  2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, base := newWeComAPI(t, tt.tokens, tt.sends)
			results, err := NewWeComChannel(wecomConfig(base), "").Send(context.Background(), &models.RenderedMessage{Title: "T", Body: "b"})
			if err != nil {
				t.Fatal(err)
			}
			if results[0].Success != tt.wantOK {
				t.Errorf("success = %v, want %v (%+v)", results[0].Success, tt.wantOK, results[0])
			}
			if api.tokenCalls != tt.wantToken || api.sendCalls != tt.wantSend {
				t.Errorf("calls token=%d send=%d, want %d/%d", api.tokenCalls, api.sendCalls, tt.wantToken, tt.wantSend)
			}
			if !tt.wantOK && (results[0].State != StateExhausted || results[0].Attempts != WeComMaxAttempts) {
				t.Errorf("result = %+v", results[0])
			}
		})
	}
}

func TestWeComNotConfigured(t *testing.T) {
	cfg := wecomConfig("https://qyapi.weixin.qq.com")
	cfg.Secret = ""
	_, err := NewWeComChannel(cfg, "").Send(context.Background(), &models.RenderedMessage{Body: "b"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v", err)
	}
}

func TestWeComCardURL(t *testing.T) {
	cfg := wecomConfig("https://qyapi.weixin.qq.com")
	if got := NewWeComChannel(cfg, "").cardURL(); got != wecomDefaultCardURL {
		t.Errorf("default = %q", got)
	}
	if got := NewWeComChannel(cfg, "http://emby").cardURL(); got != "http://emby" {
		t.Errorf("emby = %q", got)
	}
	cfg.CardURL = "https://card"
	if got := NewWeComChannel(cfg, "http://emby").cardURL(); got != "https://card" {
		t.Errorf("configured = %q", got)
	}
}

func TestLoginTitle(t *testing.T) {
	tests := []struct {
		event, title, want string
	}{
		{"user.authenticated", "【bob】登录成功", "🔑+🔓 【bob】登录成功"},
		{"user.authenticated", "✅ 【bob】登录成功", "✅ 【bob】登录成功"},
		{"user.authenticationfailed", "【bob】登录失败", "🔑🔒 【bob】登录失败"},
		{"user.authenticationfailed", "❌ 【bob】登录失败", "❌ 【bob】登录失败"},
		{"user.authenticationfailed", "🔑 x", "🔑 x"},
		{"playback.start", "▶️ x", "▶️ x"},
	}
	for _, tt := range tests {
		if got := LoginTitle(tt.event, tt.title); got != tt.want {
			t.Errorf("LoginTitle(%q, %q) = %q, want %q", tt.event, tt.title, got, tt.want)
		}
	}
}

func TestAgentID(t *testing.T) {
	if got := agentID("1000002"); got != int64(1000002) {
		t.Errorf("agentID numeric = %#v", got)
	}
	if got := agentID("abc"); got != "abc" {
		t.Errorf("agentID text = %#v", got)
	}
}
