// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/tomtom215/embynotify/internal/config"
	"github.com/tomtom215/embynotify/internal/event"
	"github.com/tomtom215/embynotify/internal/logging"
	"github.com/tomtom215/embynotify/internal/metrics"
	"github.com/tomtom215/embynotify/internal/models"
	"github.com/tomtom215/embynotify/internal/notifier"
)

// Response messages.
const (
	MsgWebhookProcessed = "Webhook processed"
	MsgConfigReloaded   = "Configuration reloaded successfully"
	MsgInvalidJSON      = "Invalid JSON payload"
	MsgEmptyPayload     = "Empty payload"
	MsgPayloadTooLarge  = "Payload too large"
	MsgReadFailed       = "Failed to read request body"
)

// Processor runs one webhook event through the notification pipeline.
type Processor interface {
	Process(ctx context.Context, ev models.RawEvent) (*notifier.Report, error)
}

// Handler serves the relay endpoints.
type Handler struct {
	engine   Processor
	store    *config.Store
	onReload func(*config.Config)
	now      func() time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithReloadHook runs fn with the new snapshot after a successful reload.
func WithReloadHook(fn func(*config.Config)) HandlerOption {
	return func(h *Handler) { h.onReload = fn }
}

// WithNow overrides the health check clock.
func WithNow(now func() time.Time) HandlerOption {
	return func(h *Handler) { h.now = now }
}

// NewHandler creates the endpoint handlers.
func NewHandler(engine Processor, store *config.Store, opts ...HandlerOption) *Handler {
	h := &Handler{engine: engine, store: store, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Webhook receives an Emby event and dispatches its notification.
//
// 400 for bodies that are not a JSON object or are empty, 413 above
// server.max_body_bytes, 500 when building the notification fails
// unexpectedly. Events that produce no notification still get 200.
//
// Delivery outlives a client disconnect but not server.delivery_timeout;
// channels still retrying at the deadline give up and are reported failed.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	srv := h.store.Current().Server
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, srv.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, MsgPayloadTooLarge, err)
			return
		}
		respondError(w, r, http.StatusBadRequest, MsgReadFailed, err)
		return
	}

	ev, err := models.DecodeRawEvent(body)
	if err != nil {
		metrics.RecordWebhookEvent("malformed")
		respondError(w, r, http.StatusBadRequest, MsgInvalidJSON, err)
		return
	}
	if len(ev) == 0 {
		metrics.RecordWebhookEvent("malformed")
		respondError(w, r, http.StatusBadRequest, MsgEmptyPayload, nil)
		return
	}

	logging.Ctx(r.Context()).Debug().
		Str("event", logging.Sanitize(ev.EventType())).
		Int("bytes", len(body)).
		Msg("Webhook received")

	ctx := context.WithoutCancel(r.Context())
	if srv.DeliveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, srv.DeliveryTimeout)
		defer cancel()
	}
	if _, err := h.engine.Process(ctx, ev); err != nil {
		respondError(w, r, http.StatusInternalServerError, err.Error(), err)
		return
	}
	respondSuccess(w, MsgWebhookProcessed)
}

// ReloadConfig reloads the configuration file. On failure the previous
// snapshot stays active.
func (h *Handler) ReloadConfig(w http.ResponseWriter, r *http.Request) {
	logging.Ctx(r.Context()).Info().Msg("Configuration reload requested")

	cfg, err := h.store.Reload()
	metrics.RecordConfigReload("api", err)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err.Error(), err)
		return
	}
	if h.onReload != nil {
		h.onReload(cfg)
	}

	logging.Ctx(r.Context()).Info().Str("path", cfg.Path()).Msg("Configuration reloaded")
	respondSuccess(w, MsgConfigReloaded)
}

// HealthCheck reports liveness with both clocks.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	respondJSON(w, http.StatusOK, models.HealthResponse{
		Status:      models.StatusHealthy,
		TimeUTC:     now.UTC().Format(event.TimeLayout),
		TimeBeijing: event.LocalTime(now),
	})
}
