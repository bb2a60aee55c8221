// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/embynotify/internal/config"
	"github.com/tomtom215/embynotify/internal/models"
	"github.com/tomtom215/embynotify/internal/notifier"
)

type fakeEngine struct {
	mu       sync.Mutex
	events   []models.RawEvent
	ctxErr   error
	err      error
	deadline time.Time
	untilEnd bool // block until ctx is done, like a channel stuck in retries
}

func (f *fakeEngine) Process(ctx context.Context, ev models.RawEvent) (*notifier.Report, error) {
	if f.untilEnd {
		<-ctx.Done()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	f.ctxErr = ctx.Err()
	f.deadline, _ = ctx.Deadline()
	return &notifier.Report{EventType: ev.EventType()}, f.err
}

func newStore(t *testing.T, yaml string) (*config.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	return config.NewStore(cfg), path
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) models.StatusResponse {
	t.Helper()
	var resp models.StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestWebhook(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		engineErr  error
		wantStatus int
		wantMsg    string
		wantCalls  int
	}{
		{"processed", `{"Event":"playback.start","Item":{"Name":"x"}}`, nil, http.StatusOK, MsgWebhookProcessed, 1},
		{"no event still acknowledged", `{"User":{"Name":"x"}}`, nil, http.StatusOK, MsgWebhookProcessed, 1},
		{"not json", `Event=playback.start`, nil, http.StatusBadRequest, MsgInvalidJSON, 0},
		{"json array", `[1,2]`, nil, http.StatusBadRequest, MsgInvalidJSON, 0},
		{"empty body", ``, nil, http.StatusBadRequest, MsgInvalidJSON, 0},
		{"empty object", `{}`, nil, http.StatusBadRequest, MsgEmptyPayload, 0},
		{"internal failure", `{"Event":"x"}`, errors.New("render exploded"), http.StatusInternalServerError, "render exploded", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := newStore(t, "")
			engine := &fakeEngine{err: tt.engineErr}
			router := NewRouter(NewHandler(engine, store))

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(tt.body)))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			resp := decodeStatus(t, rec)
			wantStatus := models.StatusSuccess
			if tt.wantStatus != http.StatusOK {
				wantStatus = models.StatusError
			}
			if resp.Status != wantStatus || resp.Message != tt.wantMsg {
				t.Errorf("body = %+v", resp)
			}
			if len(engine.events) != tt.wantCalls {
				t.Errorf("engine calls = %d, want %d", len(engine.events), tt.wantCalls)
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID")
			}
		})
	}
}

func TestWebhookBodyLimit(t *testing.T) {
	store, _ := newStore(t, "server:\n  max_body_bytes: 64\n")
	engine := &fakeEngine{}
	router := NewRouter(NewHandler(engine, store))

	body := `{"Event":"playback.start","Overview":"` + strings.Repeat("x", 100) + `"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d", rec.Code)
	}
	if len(engine.events) != 0 {
		t.Error("oversized body reached the engine")
	}
}

func TestWebhookDetachesFromClientContext(t *testing.T) {
	store, _ := newStore(t, "")
	engine := &fakeEngine{}
	h := NewHandler(engine, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"Event":"device.online"}`)).WithContext(ctx)
	h.Webhook(httptest.NewRecorder(), req)

	if engine.ctxErr != nil {
		t.Errorf("engine saw canceled context: %v", engine.ctxErr)
	}
}

func TestWebhookDeliveryDeadline(t *testing.T) {
	store, _ := newStore(t, "server:\n  write_timeout: 2s\n  delivery_timeout: 50ms\n")
	engine := &fakeEngine{untilEnd: true}
	router := NewRouter(NewHandler(engine, store))

	start := time.Now()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"Event":"library.new"}`)))
	elapsed := time.Since(start)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if elapsed >= 2*time.Second {
		t.Errorf("handler took %v, past the write timeout", elapsed)
	}
	if !errors.Is(engine.ctxErr, context.DeadlineExceeded) {
		t.Errorf("engine ctx err = %v, want deadline exceeded", engine.ctxErr)
	}
	if engine.deadline.IsZero() || engine.deadline.Sub(start) > time.Second {
		t.Errorf("deadline = %v, want about 50ms after %v", engine.deadline, start)
	}
}

func TestWebhookRejectsGet(t *testing.T) {
	store, _ := newStore(t, "")
	rec := httptest.NewRecorder()
	NewRouter(NewHandler(&fakeEngine{}, store)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestReloadConfig(t *testing.T) {
	store, path := newStore(t, "server:\n  port: 5000\n")
	var hooked *config.Config
	router := NewRouter(NewHandler(&fakeEngine{}, store, WithReloadHook(func(c *config.Config) { hooked = c })))

	if err := os.WriteFile(path, []byte("server:\n  port: 5001\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, "/reload_config", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", method, rec.Code)
		}
		if resp := decodeStatus(t, rec); resp.Status != models.StatusSuccess || resp.Message != MsgConfigReloaded {
			t.Errorf("%s body = %+v", method, resp)
		}
	}
	if store.Current().Server.Port != 5001 {
		t.Errorf("port = %d", store.Current().Server.Port)
	}
	if hooked != store.Current() {
		t.Error("reload hook did not receive the new snapshot")
	}
}

func TestReloadConfigFailureKeepsSnapshot(t *testing.T) {
	store, path := newStore(t, "server:\n  port: 5000\n")
	before := store.Current()
	hookCalled := false
	router := NewRouter(NewHandler(&fakeEngine{}, store, WithReloadHook(func(*config.Config) { hookCalled = true })))

	if err := os.WriteFile(path, []byte("server:\n  port: 70000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reload_config", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
	resp := decodeStatus(t, rec)
	if resp.Status != models.StatusError || !strings.Contains(resp.Message, "HTTP_PORT") {
		t.Errorf("body = %+v", resp)
	}
	if store.Current() != before || hookCalled {
		t.Error("failed reload changed the active snapshot")
	}
}

func TestHealthCheck(t *testing.T) {
	store, _ := newStore(t, "")
	now := func() time.Time { return time.Date(2026, 3, 4, 20, 30, 0, 0, time.UTC) }
	rec := httptest.NewRecorder()
	NewRouter(NewHandler(&fakeEngine{}, store, WithNow(now))).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))

	var resp models.HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	want := models.HealthResponse{Status: "healthy", TimeUTC: "2026-03-04 20:30:00", TimeBeijing: "2026-03-05 04:30:00"}
	if resp != want {
		t.Errorf("health = %+v, want %+v", resp, want)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("content type = %q", ct)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	store, _ := newStore(t, "")
	router := NewRouter(NewHandler(&fakeEngine{}, store))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthcheck", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `api_requests_total{endpoint="/healthcheck"`) {
		t.Error("metrics output lacks api_requests_total for /healthcheck")
	}
}

func TestNotFound(t *testing.T) {
	store, _ := newStore(t, "")
	rec := httptest.NewRecorder()
	NewRouter(NewHandler(&fakeEngine{}, store)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound || decodeStatus(t, rec).Status != models.StatusError {
		t.Errorf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}
