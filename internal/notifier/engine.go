// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

/*
Package notifier turns one webhook event into a rendered notification and
fans it out to every configured channel.

A run moves through:

	Received -> Classified -> Rendered -> Dispatching{telegram, wecom, discord} -> Done

Each run captures the active configuration snapshot once, so a reload in
the middle of a run never mixes old and new settings. Events without an
Event field, or families that need an Item and have none, end in Done
without dispatch. Channels run concurrently in their own goroutines and a
panic in one is recovered into a failed result for that channel only. The
engine never retries across channels; retry policy belongs to each channel.
*/
package notifier

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/tomtom215/embynotify/internal/config"
	"github.com/tomtom215/embynotify/internal/delivery"
	"github.com/tomtom215/embynotify/internal/enrich"
	"github.com/tomtom215/embynotify/internal/event"
	"github.com/tomtom215/embynotify/internal/logging"
	"github.com/tomtom215/embynotify/internal/metrics"
	"github.com/tomtom215/embynotify/internal/models"
)

// Skip reasons, also used as metric labels.
const (
	SkipMissingEvent = "missing_event"
	SkipMissingItem  = "missing_item"
	SkipEmptyBody    = "empty_body"
)

// ErrInternal wraps panics raised while classifying or rendering.
var ErrInternal = errors.New("internal error while building notification")

// ImageResolver finds an illustrative image for a media item.
type ImageResolver interface {
	ResolveImage(ctx context.Context, item *models.MediaItem, opts enrich.ImageOptions) string
}

// ChannelFactory builds the channels for one configuration snapshot.
type ChannelFactory func(cfg *config.Config) []delivery.Channel

// DefaultChannels returns Telegram, WeCom and Discord built from cfg.
func DefaultChannels(opts ...delivery.Option) ChannelFactory {
	return func(cfg *config.Config) []delivery.Channel {
		return []delivery.Channel{
			delivery.NewTelegramChannel(cfg.Telegram, opts...),
			delivery.NewWeComChannel(cfg.WeCom, cfg.Emby.URL, opts...),
			delivery.NewDiscordChannel(cfg.Discord, opts...),
		}
	}
}

// Engine is the delivery orchestrator.
type Engine struct {
	store    *config.Store
	locate   func(cfg *config.Config) event.LocationResolver
	images   ImageResolver
	channels ChannelFactory
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithGeoResolver resolves login locations through g, rebound to each
// snapshot's geo settings.
func WithGeoResolver(g *enrich.GeoResolver) Option {
	return func(e *Engine) {
		e.locate = func(cfg *config.Config) event.LocationResolver { return g.WithSettings(cfg.Geo) }
	}
}

// WithLocationResolver uses r for every snapshot.
func WithLocationResolver(r event.LocationResolver) Option {
	return func(e *Engine) {
		e.locate = func(*config.Config) event.LocationResolver { return r }
	}
}

// WithImageResolver sets the poster resolver.
func WithImageResolver(r ImageResolver) Option {
	return func(e *Engine) { e.images = r }
}

// WithChannels replaces the channel factory.
func WithChannels(f ChannelFactory) Option {
	return func(e *Engine) { e.channels = f }
}

// WithClock overrides the time source used for now_time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine reading snapshots from store.
func NewEngine(store *config.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		locate:   func(*config.Config) event.LocationResolver { return noLocation{} },
		channels: DefaultChannels(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type noLocation struct{}

func (noLocation) ResolveLocation(context.Context, string) string { return "" }

// ChannelReport summarizes one channel's part in a run.
type ChannelReport struct {
	Channel    string                    `json:"channel"`
	Skipped    bool                      `json:"skipped,omitempty"`
	Reason     string                    `json:"reason,omitempty"`
	Results    []delivery.DeliveryResult `json:"results,omitempty"`
	DurationMS int64                     `json:"duration_ms"`
}

// Succeeded reports whether at least one recipient got the message.
func (c ChannelReport) Succeeded() bool {
	for _, r := range c.Results {
		if r.Success {
			return true
		}
	}
	return false
}

// Report is the outcome of one run.
type Report struct {
	EventType string                  `json:"event_type"`
	Family    models.Family           `json:"family,omitempty"`
	Message   *models.RenderedMessage `json:"message,omitempty"`

	// Skipped is set when the run ended without dispatch.
	Skipped string `json:"skipped,omitempty"`

	Channels []ChannelReport `json:"channels,omitempty"`

	SuccessfulDeliveries int `json:"successful_deliveries"`
	FailedDeliveries     int `json:"failed_deliveries"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMS  int64     `json:"duration_ms"`
}

// Dispatched reports whether any channel was attempted.
func (r *Report) Dispatched() bool { return r.Skipped == "" }

// Channel returns the report for name.
func (r *Report) Channel(name string) (ChannelReport, bool) {
	for _, c := range r.Channels {
		if c.Channel == name {
			return c, true
		}
	}
	return ChannelReport{}, false
}

// BuildMessage classifies ev, builds its context and renders it with cfg's
// templates. It returns an error wrapping event.ErrMissingEvent or
// event.ErrMissingItem for malformed input; callers treat those as "no
// message". Panics surface as ErrInternal.
func (e *Engine) BuildMessage(ctx context.Context, cfg *config.Config, ev models.RawEvent) (msg *models.RenderedMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Ctx(ctx).Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("Panic while building notification")
			msg, err = nil, fmt.Errorf("%w: %v", ErrInternal, r)
		}
	}()

	cls, err := event.ClassifyEvent(ev)
	if err != nil {
		return nil, err
	}

	builder := event.NewBuilder(e.locate(cfg)).WithClock(e.now)
	vars, item, err := builder.Build(ctx, ev, cls)
	if err != nil {
		return nil, err
	}

	title, body := cfg.Templates().Render(cls.Family.TemplateKey(), vars)
	msg = &models.RenderedMessage{EventType: cls.EventType, Title: title, Body: body}

	if item != nil && cls.Family.WantsImage() && e.images != nil {
		msg.ImageURL = e.images.ResolveImage(ctx, item, enrich.ImageOptionsFrom(cfg))
	}
	return msg, nil
}

// Process runs ev through the whole pipeline against the current snapshot.
// Only internal failures are returned as errors; malformed input and channel
// failures are recorded in the report.
func (e *Engine) Process(ctx context.Context, ev models.RawEvent) (*Report, error) {
	cfg := e.store.Current()
	report := &Report{EventType: ev.EventType(), StartedAt: time.Now()}
	defer func() {
		report.CompletedAt = time.Now()
		report.DurationMS = report.CompletedAt.Sub(report.StartedAt).Milliseconds()
	}()

	if report.EventType != "" {
		ctx = logging.ContextWithEventType(ctx, report.EventType)
	}
	if logging.CorrelationIDFromContext(ctx) == "" {
		ctx = logging.ContextWithNewCorrelationID(ctx)
	}

	report.Family = event.Classify(report.EventType).Family
	if report.EventType == "" {
		metrics.RecordWebhookEvent("malformed")
	} else {
		metrics.RecordWebhookEvent(string(report.Family))
	}

	msg, err := e.BuildMessage(ctx, cfg, ev)
	switch {
	case errors.Is(err, event.ErrMissingEvent):
		return e.skip(ctx, report, SkipMissingEvent, err), nil
	case errors.Is(err, event.ErrMissingItem):
		return e.skip(ctx, report, SkipMissingItem, err), nil
	case err != nil:
		return report, err
	case !msg.Deliverable():
		return e.skip(ctx, report, SkipEmptyBody, errors.New("rendered body is empty")), nil
	}
	report.Message = msg

	report.Channels = e.dispatch(ctx, e.channels(cfg), msg)
	for _, c := range report.Channels {
		for _, r := range c.Results {
			if r.Success {
				report.SuccessfulDeliveries++
			} else {
				report.FailedDeliveries++
			}
		}
	}

	logging.Ctx(ctx).Info().
		Str("family", string(report.Family)).
		Bool("image", msg.ImageURL != "").
		Int("successful", report.SuccessfulDeliveries).
		Int("failed", report.FailedDeliveries).
		Msg("Notification dispatched")
	return report, nil
}

func (e *Engine) skip(ctx context.Context, report *Report, reason string, err error) *Report {
	report.Skipped = reason
	metrics.RecordSkipped(reason)
	logging.CtxWarn(ctx).Err(err).Str("reason", reason).Msg("Event produced no notification")
	return report
}

// dispatch runs every channel concurrently and returns their reports in
// channel order.
func (e *Engine) dispatch(ctx context.Context, channels []delivery.Channel, msg *models.RenderedMessage) []ChannelReport {
	reports := make([]ChannelReport, len(channels))
	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reports[i] = runChannel(ctx, ch, msg)
		}()
	}
	wg.Wait()
	return reports
}

func runChannel(ctx context.Context, ch delivery.Channel, msg *models.RenderedMessage) (rep ChannelReport) {
	name := ch.Name()
	start := time.Now()
	rep.Channel = name

	defer func() {
		rep.DurationMS = time.Since(start).Milliseconds()
		if r := recover(); r != nil {
			logging.Ctx(ctx).Error().Str("channel", name).Interface("panic", r).
				Str("stack", string(debug.Stack())).Msg("Panic in channel delivery")
			rep.Results = []delivery.DeliveryResult{{
				Channel:      name,
				State:        delivery.StateExhausted,
				ErrorCode:    delivery.ErrorCodeUnknown,
				ErrorMessage: fmt.Sprintf("panic: %v", r),
			}}
			metrics.RecordDelivery(name, "failure", time.Since(start))
		}
	}()

	results, err := ch.Send(ctx, msg)
	if errors.Is(err, delivery.ErrNotConfigured) {
		rep.Skipped = true
		rep.Reason = err.Error()
		logging.Ctx(ctx).Debug().Str("channel", name).Str("reason", rep.Reason).Msg("Channel not configured, skipping")
		return rep
	}
	if err != nil {
		rep.Results = []delivery.DeliveryResult{{
			Channel:      name,
			State:        delivery.StateExhausted,
			ErrorCode:    delivery.ErrorCodeUnknown,
			ErrorMessage: err.Error(),
		}}
		logging.CtxErr(ctx, err).Str("channel", name).Msg("Channel delivery error")
		metrics.RecordDelivery(name, "failure", time.Since(start))
		return rep
	}

	rep.Results = results
	elapsed := time.Since(start)
	for _, r := range results {
		metrics.RecordDelivery(name, r.Result(), elapsed)
	}
	return rep
}
