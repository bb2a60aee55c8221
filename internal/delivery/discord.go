// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package delivery

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/embynotify/internal/config"
	"github.com/tomtom215/embynotify/internal/logging"
	"github.com/tomtom215/embynotify/internal/metrics"
	"github.com/tomtom215/embynotify/internal/models"
)

const (
	DiscordTimeout = 10 * time.Second

	discordContentLimit = 2000
	discordEmbedColor   = 0x00ff00
)

// DiscordChannel implements Discord webhook delivery. It is fire-and-forget:
// one POST, no retry.
type DiscordChannel struct {
	cfg  config.DiscordConfig
	opts options
}

// NewDiscordChannel creates a channel for one configuration snapshot.
func NewDiscordChannel(cfg config.DiscordConfig, opts ...Option) *DiscordChannel {
	return &DiscordChannel{cfg: cfg, opts: buildOptions(DiscordTimeout, opts)}
}

// Name returns the channel identifier.
func (c *DiscordChannel) Name() string { return ChannelDiscord }

// Validate requires a webhook URL.
func (c *DiscordChannel) Validate() error {
	if err := c.cfg.Status().Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}
	return nil
}

// DiscordWebhookPayload is the execute-webhook body.
type DiscordWebhookPayload struct {
	Username  string         `json:"username,omitempty"`
	Content   string         `json:"content"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Embeds    []DiscordEmbed `json:"embeds,omitempty"`
}

// DiscordEmbed carries the notification image.
type DiscordEmbed struct {
	Image *DiscordEmbedImage `json:"image,omitempty"`
	Color int                `json:"color,omitempty"`
}

// DiscordEmbedImage is an embed image reference.
type DiscordEmbedImage struct {
	URL string `json:"url"`
}

// Send posts the message once. Only 204 No Content counts as delivered.
func (c *DiscordChannel) Send(ctx context.Context, msg *models.RenderedMessage) ([]DeliveryResult, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	payload := DiscordWebhookPayload{
		Username:  c.cfg.Username,
		Content:   TruncateRunes(fmt.Sprintf("**%s**\n%s", msg.Title, msg.Body), discordContentLimit),
		AvatarURL: c.cfg.AvatarURL,
	}
	if msg.ImageURL != "" {
		payload.Embeds = []DiscordEmbed{{
			Image: &DiscordEmbedImage{URL: msg.ImageURL},
			Color: discordEmbedColor,
		}}
	}

	res := DeliveryResult{Channel: ChannelDiscord, State: StateAttempting, Attempts: 1}
	metrics.RecordDeliveryAttempt(ChannelDiscord)

	ctx, cancel := context.WithTimeout(ctx, DiscordTimeout)
	defer cancel()

	status, err := doJSON(ctx, c.opts.client, http.MethodPost, c.cfg.WebhookURL, payload, nil)
	switch {
	case err != nil:
		res.fail(asFailure(err))
	case status != http.StatusNoContent:
		res.fail(&failure{
			code:    classifyDiscordStatus(status),
			message: fmt.Sprintf("unexpected status %d", status),
			status:  status,
		})
	default:
		res.succeed()
		logging.Ctx(ctx).Info().Bool("embed", len(payload.Embeds) > 0).Msg("Discord notification sent")
		return []DeliveryResult{res}, nil
	}

	res.State = StateExhausted
	logging.CtxWarn(ctx).Int("status", res.ResponseCode).Str("error_code", res.ErrorCode).
		Str("error", res.ErrorMessage).Msg("Discord delivery failed")
	return []DeliveryResult{res}, nil
}

// classifyDiscordStatus treats any 2xx other than 204 as an API error.
func classifyDiscordStatus(status int) string {
	if status >= 200 && status < 300 {
		return ErrorCodeAPIError
	}
	return classifyHTTPStatusCode(status)
}
